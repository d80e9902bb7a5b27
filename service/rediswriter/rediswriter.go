// Package rediswriter implements a service.Writer that publishes packed
// context snapshots to Redis as they're produced, for output=redis.
//
// Grounded directly on core/discovery.go's RedisDiscovery: same
// redis.ParseURL + Ping-on-connect construction, same
// "<namespace>:<kind>:<key>" key layout, generalized from "service
// registration records" to "context metadata records."
package rediswriter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gocaliper/caliper/logger"
	"github.com/gocaliper/caliper/service"
)

// Writer publishes service.Record values to Redis, namespaced so
// multiple caliper instances can share one database.
type Writer struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	reg       service.Registry
	log       logger.Logger
}

// New connects to addr (host:port, or a redis:// URL) and verifies the
// connection with Ping before returning, same as
// NewRedisDiscoveryWithNamespace.
func New(addr, namespace string, reg service.Registry, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.NoOp{}
	}
	if namespace == "" {
		namespace = "caliper"
	}

	opt := &redis.Options{Addr: addr}
	if parsed, err := redis.ParseURL(addr); err == nil {
		opt = parsed
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rediswriter: connecting to redis: %w", err)
	}

	return &Writer{client: client, namespace: namespace, ttl: 30 * time.Second, reg: reg, log: log}, nil
}

func (w *Writer) Name() string { return "redis" }

// record is the JSON shape stored per key; attribute ids are resolved to
// names at write time via the registry so a reader never needs one.
type record struct {
	EnvironmentID int               `json:"environment_id"`
	NodeID        int               `json:"node_id"`
	Values        map[string]string `json:"values"`
}

// WriteMetadata stores rec under "<namespace>:context:<env>:<node>",
// expiring after the same TTL RedisDiscovery uses for service records.
func (w *Writer) WriteMetadata(rec service.Record) bool {
	log := w.log
	if log == nil {
		log = logger.NoOp{}
	}

	values := make(map[string]string, len(rec.Context))
	for _, r := range rec.Context {
		name := fmt.Sprintf("%d", r.AttributeID)
		if w.reg != nil {
			if a, ok := w.reg.Get(r.AttributeID); ok {
				name = a.Name
			}
		}
		values[name] = string(r.Value)
	}

	data, err := json.Marshal(record{EnvironmentID: rec.EnvironmentID, NodeID: rec.NodeID, Values: values})
	if err != nil {
		log.Warn("rediswriter: marshal failed", map[string]interface{}{"error": err.Error()})
		return false
	}

	key := fmt.Sprintf("%s:context:%d:%d", w.namespace, rec.EnvironmentID, rec.NodeID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.client.Set(ctx, key, data, w.ttl).Err(); err != nil {
		log.Warn("rediswriter: write failed", map[string]interface{}{"error": err.Error(), "key": key})
		return false
	}
	return true
}

func (w *Writer) Close() error {
	return w.client.Close()
}

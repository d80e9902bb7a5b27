package rediswriter

import (
	"testing"

	"github.com/go-redis/redis/v8"

	"github.com/gocaliper/caliper/attribute"
	"github.com/gocaliper/caliper/query"
	"github.com/gocaliper/caliper/service"
)

func TestNewFailsFastAgainstAnUnreachableAddress(t *testing.T) {
	// No redis server is available in this environment; New must still
	// surface a connection error rather than hang or panic.
	_, err := New("127.0.0.1:1", "caliper", nil, nil)
	if err == nil {
		t.Fatal("expected New to fail against a closed port")
	}
}

func TestNameIsRedis(t *testing.T) {
	w := &Writer{client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), namespace: "caliper"}
	defer w.Close()

	if got := w.Name(); got != "redis" {
		t.Fatalf("Name() = %q, want %q", got, "redis")
	}
}

func TestWriteMetadataReturnsFalseOnWriteFailure(t *testing.T) {
	w := &Writer{
		client:    redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		namespace: "caliper",
	}
	defer w.Close()

	ok := w.WriteMetadata(service.Record{
		EnvironmentID: 1,
		NodeID:        2,
		Context:       []query.Record{{AttributeID: 1, Value: []byte("v")}},
	})
	if ok {
		t.Fatal("WriteMetadata against an unreachable redis should return false, not true")
	}
}

func TestWriteMetadataResolvesAttributeNamesBeforeMarshaling(t *testing.T) {
	reg := attribute.New(nil)
	a, err := reg.Create("request_id", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := &Writer{
		client:    redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		namespace: "caliper",
		reg:       reg,
	}
	defer w.Close()

	// Exercise the name-resolution path directly; the actual Set call
	// will fail against the unreachable address, but WriteMetadata must
	// build the values map (and therefore call reg.Get) before attempting
	// the write.
	w.WriteMetadata(service.Record{
		Context: []query.Record{{AttributeID: a.ID, Value: []byte("42")}},
	})
}

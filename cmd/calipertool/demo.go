package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gocaliper/caliper"
	"github.com/gocaliper/caliper/attribute"
)

// runDemo builds a Facade from the resolved config and walks one
// representative begin/set/end sequence, so dump/attrs/nodes always have
// something to show even with no embedder attached. Real usage attaches
// calipertool to an already-populated writer/export path instead; this
// demo sequence exists purely so the CLI is useful standalone.
func runDemo(cmd *cobra.Command) (*caliper.Facade, error) {
	if err := bindFlags(cmd); err != nil {
		return nil, err
	}
	cfg, err := buildConfig()
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	f, err := caliper.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building facade: %w", err)
	}

	if _, err := f.CreateAttribute("request_id", 0); err != nil {
		return nil, err
	}
	if _, err := f.CreateAttribute("handler", attribute.StoreAsValue); err != nil {
		return nil, err
	}

	env := f.NewEnvironment()
	if _, err := f.Begin(env, "handler", []byte("GET /status")); err != nil {
		return nil, err
	}
	if err := f.Set(env, "request_id", []byte("demo-1"), false); err != nil {
		return nil, err
	}
	if err := f.End(env, "handler"); err != nil {
		return nil, err
	}

	return f, nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/go-digitaltwin/go-avatar"
)

// config is read from the environment.
type config struct {
	// Skeleton is the JSON descriptor list of the skeleton, used when no
	// skeleton was persisted yet. SkeletonFile, when set, wins over it.
	Skeleton     string `env:"AVATAR_SKELETON"`
	SkeletonFile string `env:"AVATAR_SKELETON_FILE"`
	DriverKind   string `env:"AVATAR_DRIVER_KIND" envDefault:"imu"`

	MQTTBroker   string        `env:"AVATAR_MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	MQTTClientID string        `env:"AVATAR_MQTT_CLIENT_ID"`
	MQTTUsername string        `env:"AVATAR_MQTT_USERNAME"`
	MQTTPassword string        `env:"AVATAR_MQTT_PASSWORD"`
	MQTTPrefix   string        `env:"AVATAR_MQTT_PREFIX" envDefault:"imu"`
	MQTTQoS      uint8         `env:"AVATAR_MQTT_QOS" envDefault:"1"`
	QueryTimeout time.Duration `env:"AVATAR_QUERY_TIMEOUT" envDefault:"5s"`

	// Persistence is enabled only when Neo4jURI is set.
	Neo4jURI      string `env:"AVATAR_NEO4J_URI"`
	Neo4jDatabase string `env:"AVATAR_NEO4J_DATABASE" envDefault:"avatar"`
	Neo4jUser     string `env:"AVATAR_NEO4J_USER"`
	Neo4jPassword string `env:"AVATAR_NEO4J_PASSWORD"`
}

// loadConfig parses the given environment, or the process environment if it is
// nil.
func loadConfig(environ map[string]string) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MQTTQoS > 2 {
		return config{}, fmt.Errorf("parse env: AVATAR_MQTT_QOS must be 0, 1 or 2, not %d", cfg.MQTTQoS)
	}
	return cfg, nil
}

// skeleton returns the configured descriptor list, falling back to
// avatar.DefaultSkeleton.
func (c config) skeleton() ([]byte, error) {
	if c.SkeletonFile != "" {
		p, err := os.ReadFile(c.SkeletonFile)
		if err != nil {
			return nil, fmt.Errorf("read skeleton file: %w", err)
		}
		return p, nil
	}
	if c.Skeleton != "" {
		return []byte(c.Skeleton), nil
	}
	return []byte(avatar.DefaultSkeleton), nil
}

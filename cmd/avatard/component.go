package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-digitaltwin/go-avatar"
	"github.com/go-digitaltwin/go-avatar/mqttdriver"
	"github.com/go-digitaltwin/go-avatar/neo4jstore"
)

const (
	sensorUpdatedAspect = "avatar.sensor-updated"
	boneChangedAspect   = "avatar.bone-changed"
	setSensorInterest   = "avatar.set-sensor"
)

// Component describes the avatar deployment.
var Component = component.Descriptor{
	Name: "avatar",
	Doc:  "Keeps a skeleton of bones in sync with the IMU sensors driving them.",
	Bootstrap: func(l *component.L, linker component.Linker, options any) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		return bootstrap(l, linker, cfg)
	},
	Aspects:   []string{sensorUpdatedAspect, boneChangedAspect},
	Interests: []string{sensorUpdatedAspect, setSensorInterest},
}

func bootstrap(l *component.L, linker component.Linker, cfg config) error {
	ctx := l.GraceContext()
	logger := component.Logger(l.Context())

	store, err := openStore(l, cfg)
	if err != nil {
		return err
	}
	ds, fresh, err := loadSkeleton(ctx, cfg, store)
	if err != nil {
		return err
	}
	s, err := avatar.Build(ds)
	if err != nil {
		return fmt.Errorf("build skeleton: %w", err)
	}
	logger.Info("Skeleton loaded", slog.Int("bones", s.Len()), slog.Bool("fresh", fresh))

	logger.Debug("Opening aspect topic...", slog.String("topic-name", sensorUpdatedAspect))
	updatesOut, err := linker.LinkAspect(ctx, sensorUpdatedAspect)
	if err != nil {
		return fmt.Errorf("open aspect %q: %w", sensorUpdatedAspect, err)
	}
	l.CleanupContext(updatesOut.Shutdown)

	logger.Debug("Connecting to MQTT broker...", slog.String("broker", cfg.MQTTBroker))
	client, err := mqttdriver.Dial(ctx, mqttdriver.DialOptions{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		return fmt.Errorf("dial mqtt: %w", err)
	}
	l.CleanupBackground(func(context.Context) error {
		client.Disconnect(250)
		return nil
	})
	upstream := mqttdriver.New(client, mqttdriver.Options{
		Prefix:  cfg.MQTTPrefix,
		QoS:     cfg.MQTTQoS,
		Handler: avatar.NewUpdatePublisher(updatesOut),
	})

	a := avatar.New(s, avatar.Config{
		DriverKind: cfg.DriverKind,
		Upstream:   upstream,
		Store:      store,
	})
	if fresh && store != nil {
		if err := store.SaveDescriptors(ctx, a.Descriptors()); err != nil {
			return fmt.Errorf("save skeleton: %w", err)
		}
	}
	// Drivers that are offline right now are left unbound; their bindings can
	// be requested again once they are back.
	if err := a.ResumeBindings(ctx, ds, cfg.QueryTimeout); err != nil {
		logger.Warn("Some bindings were not resumed", slog.Any("error", err))
	}

	logger.Debug("Opening interest subscription...", slog.String("topic-name", sensorUpdatedAspect))
	updatesIn, err := linker.LinkInterest(ctx, sensorUpdatedAspect)
	if err != nil {
		return fmt.Errorf("open interest %q: %w", sensorUpdatedAspect, err)
	}
	l.CleanupBackground(updatesIn.Shutdown)

	logger.Debug("Opening aspect topic...", slog.String("topic-name", boneChangedAspect))
	changes, err := linker.LinkAspect(ctx, boneChangedAspect)
	if err != nil {
		return fmt.Errorf("open aspect %q: %w", boneChangedAspect, err)
	}
	l.CleanupContext(changes.Shutdown)

	logger.Debug("Opening interest subscription...", slog.String("topic-name", setSensorInterest))
	requests, err := linker.LinkInterest(ctx, setSensorInterest)
	if err != nil {
		return fmt.Errorf("open interest %q: %w", setSensorInterest, err)
	}
	l.CleanupBackground(requests.Shutdown)

	l.Fork("track-sensors", a.TrackSensors(updatesIn, avatar.NewBroadcaster(changes)))
	l.Fork("serve-bindings", a.ServeBindings(requests, cfg.QueryTimeout))
	logger.Info("Avatar started")
	return nil
}

// openStore returns nil if persistence is not configured.
func openStore(l *component.L, cfg config) (avatar.Store, error) {
	if cfg.Neo4jURI == "" {
		return nil, nil
	}
	ctx := l.GraceContext()
	auth := neo4j.NoAuth()
	if cfg.Neo4jUser != "" {
		auth = neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, auth)
	if err != nil {
		return nil, fmt.Errorf("open neo4j driver: %w", err)
	}
	l.CleanupContext(driver.Close)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := neo4jstore.BootstrapDatabase(ctx, driver, cfg.Neo4jDatabase); err != nil {
		return nil, fmt.Errorf("bootstrap neo4j database: %w", err)
	}
	return neo4jstore.NewStore(driver, cfg.Neo4jDatabase), nil
}

// loadSkeleton returns the descriptors of the persisted skeleton, or of the
// configured one if nothing was persisted yet; fresh reports the latter.
func loadSkeleton(ctx context.Context, cfg config, store avatar.Store) (ds []avatar.BoneDescriptor, fresh bool, err error) {
	if store != nil {
		ds, err := store.LoadDescriptors(ctx)
		if err == nil {
			return ds, false, nil
		}
		if !errors.Is(err, avatar.ErrNoSkeleton) {
			return nil, false, fmt.Errorf("load descriptors: %w", err)
		}
	}
	p, err := cfg.skeleton()
	if err != nil {
		return nil, false, err
	}
	ds, err = avatar.ParseDescriptors(p)
	if err != nil {
		return nil, false, fmt.Errorf("parse skeleton: %w", err)
	}
	return ds, true, nil
}

package mqttdriver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/go-digitaltwin/go-avatar"
)

// DialOptions configures the MQTT client opened by Dial.
type DialOptions struct {
	// Broker URL, e.g. tcp://localhost:1883.
	Broker string
	// ClientID defaults to "avatar-" followed by a random UUID.
	ClientID string
	Username string
	Password string
}

// Dial connects a new MQTT client to the broker and waits for the connection
// until ctx is done. The client reconnects automatically; close it with
// Disconnect.
func Dial(ctx context.Context, opts DialOptions) (mqtt.Client, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "avatar-" + uuid.NewString()
	}
	logger := component.Logger(ctx).With(
		slog.String("broker", opts.Broker),
		slog.String("client-id", clientID),
	)

	o := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("Lost connection to MQTT broker", slog.Any("error", err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("Connected to MQTT broker")
		})

	client := mqtt.NewClient(o)
	logger.Debug("Connecting to MQTT broker...")
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect %v: %w", opts.Broker, err)
	}
	return client, nil
}

// Announce publishes the retained ids message of h, as a driver instance does
// when it comes online.
func Announce(ctx context.Context, client mqtt.Client, prefix string, h avatar.DriverHandle, ids []string) error {
	p, err := jsonIDs(ids)
	if err != nil {
		return err
	}
	u := Upstream{prefix: prefix}
	return waitToken(ctx, client.Publish(u.IDsTopic(h), 1, true, p))
}

// Report publishes a change message of h carrying the given update.
func Report(ctx context.Context, client mqtt.Client, prefix string, h avatar.DriverHandle, update avatar.SensorUpdated) error {
	p, err := EncodeChange(update)
	if err != nil {
		return err
	}
	u := Upstream{prefix: prefix}
	return waitToken(ctx, client.Publish(u.ChangeTopic(h), 0, false, p))
}

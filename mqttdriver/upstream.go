/*
Package mqttdriver connects an avatar to sensor drivers reachable over MQTT.

Every driver instance, identified by an [avatar.DriverHandle], owns two topics
under a common prefix:

	<prefix>/<device>/<instance>/ids     retained list of the sensor ids it reports
	<prefix>/<device>/<instance>/change  one message per orientation reading

An ids message is a JSON array of strings (or a JSON string holding one). A
change message is a JSON object:

	{"id": "imu-1", "quaternion": {"w": 1, "x": 0, "y": 0, "z": 0}, "timestamp": 1709294400000}

with the timestamp in milliseconds since the Unix epoch.
*/
package mqttdriver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-digitaltwin/go-avatar"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-avatar/mqttdriver")

// Options configures an Upstream.
type Options struct {
	// Prefix is the first level of every topic (e.g. "imu").
	Prefix string
	// QoS of the subscriptions.
	QoS byte
	// Handler receives the sensor updates of every subscribed driver instance.
	Handler avatar.UpdateHandler
}

// Upstream implements avatar.Upstream on top of an MQTT client.
type Upstream struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	handler avatar.UpdateHandler
}

// New returns an Upstream using the given connected client.
func New(client mqtt.Client, opts Options) *Upstream {
	return &Upstream{
		client:  client,
		prefix:  opts.Prefix,
		qos:     opts.QoS,
		handler: opts.Handler,
	}
}

// IDsTopic returns the topic of the sensor ids list of h.
func (u *Upstream) IDsTopic(h avatar.DriverHandle) string { return u.topic(h, "ids") }

// ChangeTopic returns the topic of the orientation readings of h.
func (u *Upstream) ChangeTopic(h avatar.DriverHandle) string { return u.topic(h, "change") }

func (u *Upstream) topic(h avatar.DriverHandle, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%s", u.prefix, h.Device, h.Instance, leaf)
}

// ListSensorIDs waits for the (retained) ids message of h until ctx is done.
func (u *Upstream) ListSensorIDs(ctx context.Context, h avatar.DriverHandle) (ids []string, err error) {
	topic := u.IDsTopic(h)
	ctx, span := tracer.Start(ctx, "Upstream.ListSensorIDs", trace.WithAttributes(
		attribute.String("mqtt.topic", topic),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	logger := component.Logger(ctx).With(slog.String("topic", topic))

	payloads := make(chan []byte, 1)
	token := u.client.Subscribe(topic, u.qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case payloads <- msg.Payload():
		default: // only the first answer counts
		}
	})
	if err := waitToken(ctx, token); err != nil {
		return nil, fmt.Errorf("subscribe %v: %w", topic, err)
	}
	defer func() {
		// The answer is in (or never comes); drop the subscription regardless of ctx.
		if err := waitToken(context.WithoutCancel(ctx), u.client.Unsubscribe(topic)); err != nil {
			logger.Warn("Failed to unsubscribe from ids topic", slog.Any("error", err))
		}
	}()

	select {
	case p := <-payloads:
		ids, err := DecodeIDs(p)
		if err != nil {
			return nil, err
		}
		logger.Debug("Received sensor ids", slog.Int("count", len(ids)))
		return ids, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for %v: %w", topic, ctx.Err())
	}
}

// Subscribe starts forwarding the change messages of h to the handler.
// Undecodable messages are logged and dropped.
func (u *Upstream) Subscribe(ctx context.Context, h avatar.DriverHandle) error {
	topic := u.ChangeTopic(h)
	ctx, span := tracer.Start(ctx, "Upstream.Subscribe", trace.WithAttributes(
		attribute.String("mqtt.topic", topic),
	))
	defer span.End()
	// Callbacks outlive the request, so they keep the logger but not its context.
	logger := component.Logger(ctx).With(slog.String("topic", topic))
	handlerCtx := component.InjectLogger(context.Background(), logger)

	token := u.client.Subscribe(topic, u.qos, func(_ mqtt.Client, msg mqtt.Message) {
		update, err := DecodeChange(msg.Payload())
		if err != nil {
			logger.Warn("Dropping undecodable change message", slog.Any("error", err))
			return
		}
		if u.handler == nil {
			return
		}
		if err := u.handler.HandleSensorUpdate(handlerCtx, update); err != nil {
			logger.Warn("Failed to handle sensor update", slog.String("sensor", update.SensorID), slog.Any("error", err))
		}
	})
	if err := waitToken(ctx, token); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("subscribe %v: %w", topic, err)
	}
	return nil
}

// Unsubscribe stops forwarding the change messages of h.
func (u *Upstream) Unsubscribe(ctx context.Context, h avatar.DriverHandle) error {
	topic := u.ChangeTopic(h)
	ctx, span := tracer.Start(ctx, "Upstream.Unsubscribe", trace.WithAttributes(
		attribute.String("mqtt.topic", topic),
	))
	defer span.End()
	if err := waitToken(ctx, u.client.Unsubscribe(topic)); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("unsubscribe %v: %w", topic, err)
	}
	return nil
}

// waitToken waits for token to complete, or for ctx to be done.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

package avatar

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// TrackSensors returns a component.Proc that receives SensorUpdated messages
// from the given subscription, applies each of them to the Avatar, and hands
// every resulting BoneChanged to the broadcaster. A nil broadcaster only
// applies the updates.
//
// Updates are applied one at a time, in the order they are received.
func (a *Avatar) TrackSensors(source *pubsub.Subscription, b *Broadcaster) component.Proc {
	return gobSource[SensorUpdated](source).Stream(a.track(b))
}

// track returns the EventHandler applying sensor updates on behalf of
// TrackSensors.
func (a *Avatar) track(b *Broadcaster) EventHandler[SensorUpdated] {
	return func(ctx context.Context, u SensorUpdated) error {
		changed, ok := a.ApplyRotation(ctx, u)
		if !ok || b == nil {
			return nil
		}
		// Broadcast failures are logged by the broadcaster; they must not stop
		// the tracking of further updates.
		_ = b.Broadcast(ctx, changed)
		return nil
	}
}

// EventSource wraps a pubsub subscription and decodes incoming messages into
// events of type E.
type EventSource[E any] struct {
	subscription *pubsub.Subscription
	decode       func(p []byte, e *E) error
}

func gobSource[E any](sub *pubsub.Subscription) EventSource[E] {
	return EventSource[E]{
		subscription: sub,
		decode: func(p []byte, e *E) error {
			return gob.NewDecoder(bytes.NewReader(p)).Decode(e)
		},
	}
}

// EventHandler processes a decoded event.
type EventHandler[E any] func(ctx context.Context, e E) error

// Stream returns a component.Proc that continuously receives messages from the
// subscription, decodes them and passes them to the provided EventHandler.
//
// Messages that fail to decode are logged and skipped. A handler error stops
// the procedure.
func (s EventSource[E]) Stream(h EventHandler[E]) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			msg, err := s.subscription.Receive(l.Context())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// we're shutting down
					return
				}
				l.Fatal(fmt.Errorf("receive: %w", err))
			}
			// always ack, even if we fail to decode.
			// otherwise, we might get stuck processing
			// the same failed message
			msg.Ack()

			var e E
			if err := s.decode(msg.Body, &e); err != nil {
				logger.Warn("Dropping undecodable message",
					slog.String("msg-id", msg.LoggableID),
					slog.Any("error", err),
				)
				continue
			}

			if err := h(l.Context(), e); err != nil {
				l.Fatal(fmt.Errorf("process: %w", err))
			}
		}
	}
}

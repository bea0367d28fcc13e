package avatar

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// A Broadcaster publishes BoneChanged notifications to a fixed set of pubsub
// topics, one per downstream observer.
//
// Delivery is fire-and-forget per observer: a failing topic does not prevent
// delivery to the others, and failures are logged and counted, never retried.
type Broadcaster struct {
	sinks []*pubsub.Topic
}

// NewBroadcaster returns a Broadcaster sending to every given topic.
func NewBroadcaster(sinks ...*pubsub.Topic) *Broadcaster {
	return &Broadcaster{sinks: sinks}
}

// Broadcast sends c to every sink concurrently and waits for all sends to
// complete. It returns the failures of all sinks, joined, after having logged
// each of them.
func (b *Broadcaster) Broadcast(ctx context.Context, c BoneChanged) error {
	correlationID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "Broadcaster.Broadcast", trace.WithAttributes(
		attribute.String("bone.id", c.BoneID),
		attribute.String("correlation.id", correlationID),
		attribute.Int("sinks", len(b.sinks)),
	))
	defer span.End()
	logger := component.Logger(ctx).With(
		slog.String("bone", c.BoneID),
		slog.String("correlation-id", correlationID),
	)

	logger.Debug("Encoding BoneChanged message using gob...")
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(c); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Every sink gets its own goroutine and its own error slot; a plain Group
	// does not cancel the other sends when one of them fails.
	var g errgroup.Group
	errs := make([]error, len(b.sinks))
	for i, sink := range b.sinks {
		g.Go(func() error {
			msg := &pubsub.Message{
				Body: body.Bytes(),
				Metadata: map[string]string{
					"boneID":        c.BoneID,
					"correlationID": correlationID,
				},
			}
			if err := sink.Send(ctx, msg); err != nil {
				errs[i] = fmt.Errorf("send to sink %d: %w", i, err)
				logger.Warn("Failed to broadcast BoneChanged message", slog.Int("sink", i), slog.Any("error", err))
				measureBroadcastFailure(ctx)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("BoneChanged message broadcast successfully")
	return nil
}

package avatar

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
)

// SensorUpdated notifies about the latest absolute orientation reported by a
// sensor.
type SensorUpdated struct {
	SensorID    string
	Orientation Orientation
	// The time, in UTC, the sensor took the reading.
	Timestamp time.Time
}

// BoneChanged notifies about a bone whose orientation was updated following a
// SensorUpdated notification.
type BoneChanged struct {
	BoneID   string
	SensorID string
	// Relative is the orientation now stored on the bone, relative to its parent.
	Relative Orientation
	// Absolute is the orientation reported by the sensor.
	Absolute Orientation
	// Timestamp is copied from the SensorUpdated notification.
	Timestamp time.Time
}

// An UpdateHandler consumes sensor updates pushed by an upstream driver.
type UpdateHandler interface {
	HandleSensorUpdate(ctx context.Context, u SensorUpdated) error
}

// UpdatePublisher is an UpdateHandler that forwards every sensor update to a
// pubsub topic, gob-encoded, for a TrackSensors procedure to consume.
type UpdatePublisher struct {
	topic *pubsub.Topic
}

// NewUpdatePublisher returns an UpdatePublisher sending to the given topic.
func NewUpdatePublisher(topic *pubsub.Topic) *UpdatePublisher {
	return &UpdatePublisher{topic: topic}
}

// HandleSensorUpdate implements UpdateHandler.
//
// The sensor id is included as metadata on the message, so brokers that
// partition by key keep the updates of a single sensor in order.
func (p *UpdatePublisher) HandleSensorUpdate(ctx context.Context, u SensorUpdated) error {
	ctx, span := tracer.Start(ctx, "UpdatePublisher.HandleSensorUpdate", trace.WithAttributes(
		attribute.String("sensor.id", u.SensorID),
	))
	defer span.End()

	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(u); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	msg := &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{"sensorID": u.SensorID}}
	if err := p.topic.Send(ctx, msg); err != nil {
		err := fmt.Errorf("send: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

package avatar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-avatar")
var meter = otel.Meter("github.com/go-digitaltwin/go-avatar")

const (
	// outcomeKey labels rotation updates as "applied" or "dropped".
	outcomeKey = "outcome"
	// kindKey labels failed bindings with the Kind of their error, or "other"
	// for failures outside the taxonomy (e.g. a failing upstream subscribe).
	kindKey = "kind"
)

var (
	// rotationUpdates counts sensor updates, labelled by outcomeKey.
	rotationUpdates metric.Int64Counter
	// bindDuration measures successful SetSensor transactions, including the
	// upstream round trips.
	bindDuration metric.Float64Histogram
	// bindFailures counts failed SetSensor transactions, labelled by kindKey.
	bindFailures metric.Int64Counter
	// unsubscribeFailures counts upstream unsubscribe calls that failed and were
	// ignored.
	unsubscribeFailures metric.Int64Counter
	// broadcastFailures counts BoneChanged messages a sink failed to receive.
	broadcastFailures metric.Int64Counter
	// storeFailures counts failed attempts to save the skeleton after a binding.
	storeFailures metric.Int64Counter
)

func init() {
	var err error
	rotationUpdates, err = meter.Int64Counter(
		"avatar.rotation.updates",
		metric.WithDescription("The number of sensor updates received, applied or dropped."),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.rotation.updates' instrument")
	}

	bindDuration, err = meter.Float64Histogram(
		"avatar.bind.duration",
		metric.WithDescription("The duration of a successful sensor binding, including upstream round trips."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.bind.duration' instrument")
	}

	bindFailures, err = meter.Int64Counter(
		"avatar.bind.failures",
		metric.WithDescription("The number of sensor bindings that have failed."),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.bind.failures' instrument")
	}

	unsubscribeFailures, err = meter.Int64Counter(
		"avatar.unsubscribe.failures",
		metric.WithDescription("The number of upstream unsubscribe calls that have failed."),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.unsubscribe.failures' instrument")
	}

	broadcastFailures, err = meter.Int64Counter(
		"avatar.broadcast.failures",
		metric.WithDescription("The number of BoneChanged messages that could not be sent to a sink."),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.broadcast.failures' instrument")
	}

	storeFailures, err = meter.Int64Counter(
		"avatar.store.failures",
		metric.WithDescription("The number of failed attempts to save the skeleton."),
	)
	if err != nil {
		panic("avatar: failed to init 'avatar.store.failures' instrument")
	}
}

var (
	appliedSet = attribute.NewSet(attribute.String(outcomeKey, "applied"))
	droppedSet = attribute.NewSet(attribute.String(outcomeKey, "dropped"))
)

func measureRotation(ctx context.Context, applied bool) {
	attrs := droppedSet
	if applied {
		attrs = appliedSet
	}
	rotationUpdates.Add(ctx, 1, metric.WithAttributeSet(attrs))
}

// measureBind records the duration of a successful binding, or counts a failed
// one labelled with the Kind of its error.
func measureBind(ctx context.Context, err error, d time.Duration) {
	if err == nil {
		// We use floating-point division here for higher precision (instead of the
		// Millisecond method).
		bindDuration.Record(ctx, float64(d)/float64(time.Millisecond))
		return
	}
	kind := "other"
	if k := KindOf(err); k != 0 {
		kind = k.String()
	}
	attrs := attribute.NewSet(attribute.String(kindKey, kind))
	bindFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
}

func measureUnsubscribeFailure(ctx context.Context) {
	unsubscribeFailures.Add(ctx, 1)
}

func measureBroadcastFailure(ctx context.Context) {
	broadcastFailures.Add(ctx, 1)
}

func measureStoreFailure(ctx context.Context) {
	storeFailures.Add(ctx, 1)
}

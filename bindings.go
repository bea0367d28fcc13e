package avatar

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// SetSensorRequested asks an Avatar to bind a bone to a sensor, as SetSensor
// does.
type SetSensorRequested struct {
	BoneID   string
	SensorID string
	// Driver is nil to rebind the bone without any upstream interaction.
	Driver *DriverHandle
}

// ServeBindings returns a component.Proc that receives SetSensorRequested
// messages from the given subscription and applies each of them with
// SetSensor, one at a time. Every request is given at most timeout to complete
// (no limit if timeout is not positive).
//
// Rejected requests are logged; they never stop the procedure.
func (a *Avatar) ServeBindings(source *pubsub.Subscription, timeout time.Duration) component.Proc {
	return gobSource[SetSensorRequested](source).Stream(a.serve(timeout))
}

func (a *Avatar) serve(timeout time.Duration) EventHandler[SetSensorRequested] {
	return func(ctx context.Context, r SetSensorRequested) error {
		if err := a.setSensorWithin(ctx, timeout, r.BoneID, r.SensorID, r.Driver); err != nil {
			component.Logger(ctx).Warn("Binding request rejected",
				slog.String("bone", r.BoneID),
				slog.String("sensor", r.SensorID),
				slog.Any("error", err),
			)
		}
		return nil
	}
}

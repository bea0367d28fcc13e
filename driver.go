package avatar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
)

// A DriverHandle identifies one upstream driver instance able to report the
// orientation of one or more sensors. Handles are comparable; two handles are
// the same instance iff all their fields are equal.
type DriverHandle struct {
	// Driver names the kind of upstream driver (e.g. "imu").
	Driver string `json:"driver"`
	// Device identifies the device hosting the driver.
	Device string `json:"device,omitempty"`
	// Instance identifies the driver instance on that device.
	Instance string `json:"instance,omitempty"`
}

func (h DriverHandle) String() string {
	return fmt.Sprintf("%s@%s/%s", h.Driver, h.Device, h.Instance)
}

// Upstream is the remote side of sensor drivers. The Avatar calls it
// synchronously while binding sensors to bones, so implementations should
// honour the context's deadline.
type Upstream interface {
	// ListSensorIDs returns the ids of the sensors the driver instance reports.
	// A nil list with a nil error means the driver gave no usable answer.
	ListSensorIDs(ctx context.Context, h DriverHandle) ([]string, error)
	// Subscribe starts the delivery of sensor updates from the driver instance.
	Subscribe(ctx context.Context, h DriverHandle) error
	// Unsubscribe stops the delivery of sensor updates from the driver instance.
	Unsubscribe(ctx context.Context, h DriverHandle) error
}

// subscriptions tracks which driver instance every bound sensor id belongs to,
// and the other way around. A handle has an entry in sensors iff its set is
// not empty, which is also when the handle is subscribed upstream.
//
// The zero value is ready to use. It is not safe for concurrent use; the
// Avatar only touches it while holding its bind lock.
type subscriptions struct {
	handles map[string]DriverHandle
	sensors map[DriverHandle]map[string]struct{}
}

// handleOf returns the handle sensorID is bound to.
func (s *subscriptions) handleOf(sensorID string) (DriverHandle, bool) {
	h, ok := s.handles[sensorID]
	return h, ok
}

// subscribed reports whether at least one sensor id is bound to h.
func (s *subscriptions) subscribed(h DriverHandle) bool {
	return len(s.sensors[h]) != 0
}

// add records that sensorID is bound to h. The caller must have subscribed h
// upstream beforehand, and must have unbound sensorID from any other handle.
func (s *subscriptions) add(sensorID string, h DriverHandle) {
	if s.handles == nil {
		s.handles = make(map[string]DriverHandle)
		s.sensors = make(map[DriverHandle]map[string]struct{})
	}
	set := s.sensors[h]
	if set == nil {
		set = make(map[string]struct{})
		s.sensors[h] = set
	}
	set[sensorID] = struct{}{}
	s.handles[sensorID] = h
}

// unbind removes sensorID from the handle it is bound to, if any. When that
// handle is left without sensor ids it is unsubscribed upstream and forgotten.
//
// A failing unsubscribe is logged and otherwise ignored: the local records are
// removed regardless, so a transient failure does not leave a binding stuck.
func (s *subscriptions) unbind(ctx context.Context, up Upstream, sensorID string) {
	h, ok := s.handles[sensorID]
	if !ok {
		return
	}
	delete(s.handles, sensorID)
	set := s.sensors[h]
	delete(set, sensorID)
	if len(set) != 0 {
		return
	}
	delete(s.sensors, h)

	logger := component.Logger(ctx).With(slog.String("driver", h.String()))
	logger.Debug("No sensors left for driver, unsubscribing...")
	if err := up.Unsubscribe(ctx, h); err != nil {
		logger.Warn("Failed to unsubscribe from driver", slog.Any("error", err))
		measureUnsubscribeFailure(ctx)
		return
	}
	logger.Info("Unsubscribed from driver")
}

// snapshot returns a copy of the sensor id to handle mapping.
func (s *subscriptions) snapshot() map[string]DriverHandle {
	m := make(map[string]DriverHandle, len(s.handles))
	for id, h := range s.handles {
		m[id] = h
	}
	return m
}

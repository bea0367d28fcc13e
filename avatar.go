package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config configures an Avatar.
type Config struct {
	// DriverKind is the only DriverHandle.Driver accepted by SetSensor.
	DriverKind string
	// Upstream is queried and subscribed to while binding sensors to bones. It
	// may be nil if SetSensor is never called with a driver handle.
	Upstream Upstream
	// Store, if not nil, receives the descriptor list of the skeleton after
	// every successful SetSensor.
	Store Store
}

// An Avatar keeps a Skeleton in sync with the sensors driving its bones.
//
// It coordinates two flows. Binding requests (SetSensor) rebind a bone to a
// sensor id and adjust the upstream subscriptions accordingly, as a single
// transaction that either succeeds or leaves no trace. Sensor updates
// (ApplyRotation) record the latest orientation reported by a sensor on the
// bone it drives.
//
// Binding requests are serialised with each other for their whole duration,
// including the upstream round trips. Sensor updates only wait for the short
// skeleton mutations of a binding request, never for its upstream calls.
//
// An Avatar is safe for concurrent use.
type Avatar struct {
	kind     string
	upstream Upstream
	store    Store

	// bindMu serialises binding transactions and guards subs.
	bindMu sync.Mutex
	subs   subscriptions

	// mu guards the indexes and the orientations of skeleton.
	mu       sync.Mutex
	skeleton *Skeleton
}

// New returns an Avatar managing the given skeleton. The Avatar takes
// ownership of the skeleton; do not use it directly afterwards.
func New(s *Skeleton, cfg Config) *Avatar {
	return &Avatar{
		kind:     cfg.DriverKind,
		upstream: cfg.Upstream,
		store:    cfg.Store,
		skeleton: s,
	}
}

// SetSensor binds the bone identified by boneID to sensorID.
//
// If driver is not nil, the sensor must be one the driver instance reports:
// the handle must be of the configured driver kind (WrongDriverKind), the
// driver must answer the query for its sensor ids (QueryFailed) and sensorID
// must be among them (UnknownSensorID). The driver is subscribed to upstream
// when sensorID is the first sensor bound to it. A sensor already bound to the
// same driver is left as is; one bound to another driver is moved.
//
// If driver is nil, the bone is rebound without any upstream interaction.
//
// In both cases, once the bone is bound to sensorID, the sensor id it was bound
// to before is released: removed from the skeleton's sensor index and unbound
// from its driver, unsubscribing the driver when no other sensor is bound to
// it.
//
// The bone keeps its previous sensor id until the upstream side of the
// binding succeeded, so sensor updates never reach a bone through a binding
// that ends up rejected. On failure, the skeleton and the subscriptions are
// left exactly as they were. Failures to validate the request are reported as
// for Skeleton.RebindSensor.
func (a *Avatar) SetSensor(ctx context.Context, boneID, sensorID string, driver *DriverHandle) (err error) {
	attrs := []attribute.KeyValue{
		attribute.String("bone.id", boneID),
		attribute.String("sensor.id", sensorID),
	}
	if driver != nil {
		attrs = append(attrs, attribute.Stringer("driver", driver))
	}
	ctx, span := tracer.Start(ctx, "Avatar.SetSensor", trace.WithAttributes(attrs...))
	defer span.End()
	logger := component.Logger(ctx).With(
		slog.String("bone", boneID),
		slog.String("sensor", sensorID),
	)
	ctx = component.InjectLogger(ctx, logger)

	a.bindMu.Lock()
	defer a.bindMu.Unlock()

	defer func(start time.Time) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		measureBind(ctx, err, time.Since(start))
	}(time.Now())

	// Only binding transactions modify the sensor index, and they are
	// serialised by bindMu: the rebind stays valid until it is committed below.
	a.mu.Lock()
	bone, err := a.skeleton.checkRebind(boneID, sensorID)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	bound := false
	if driver != nil {
		if bound, err = a.bind(ctx, sensorID, *driver); err != nil {
			return err
		}
	}

	a.mu.Lock()
	previous := a.skeleton.rebind(bone, sensorID)
	a.mu.Unlock()
	if previous != sensorID {
		logger.Debug("Releasing previous sensor...", slog.String("previous", previous))
		a.subs.unbind(ctx, a.upstream, previous)
	} else if !bound {
		logger.Debug("Bone already bound to sensor")
		return nil
	}
	logger.Info("Bone bound to sensor", slog.String("previous", previous))

	a.persist(ctx)
	return nil
}

// bind binds sensorID to the driver instance h, subscribing to h first if it
// has no sensor bound yet. Nothing is recorded unless bind succeeds, and
// changed is false if sensorID was already bound to h.
func (a *Avatar) bind(ctx context.Context, sensorID string, h DriverHandle) (changed bool, err error) {
	if h.Driver != a.kind {
		return false, newError(WrongDriverKind, h.Driver)
	}
	if a.upstream == nil {
		return false, &Error{Kind: QueryFailed, Ref: h.String(), Err: errors.New("no upstream configured")}
	}

	logger := component.Logger(ctx).With(slog.String("driver", h.String()))
	logger.Debug("Querying driver for its sensor ids...")
	ids, err := a.upstream.ListSensorIDs(ctx, h)
	if err != nil {
		return false, &Error{Kind: QueryFailed, Ref: h.String(), Err: err}
	}
	if ids == nil {
		return false, &Error{Kind: QueryFailed, Ref: h.String(), Err: errors.New("no sensor id list")}
	}
	if !slices.Contains(ids, sensorID) {
		return false, newError(UnknownSensorID, sensorID)
	}

	current, bound := a.subs.handleOf(sensorID)
	if bound && current == h {
		logger.Debug("Sensor already bound to driver")
		return false, nil
	}

	// Subscribe before touching any record, so a failure leaves nothing to undo.
	if !a.subs.subscribed(h) {
		logger.Debug("Subscribing to driver...")
		if err := a.upstream.Subscribe(ctx, h); err != nil {
			return false, fmt.Errorf("subscribe %v: %w", h, err)
		}
		logger.Info("Subscribed to driver")
	}
	if bound {
		a.subs.unbind(ctx, a.upstream, sensorID)
	}
	a.subs.add(sensorID, h)
	return true, nil
}

// persist saves the current descriptor list to the configured Store. A failure
// does not fail the binding that triggered it; it is only logged.
func (a *Avatar) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveDescriptors(ctx, a.descriptors()); err != nil {
		component.Logger(ctx).Warn("Failed to save skeleton", slog.Any("error", err))
		measureStoreFailure(ctx)
	}
}

// ApplyRotation records the absolute orientation carried by u on the bone
// driven by u.SensorID, and returns the resulting change. Updates of sensors
// not bound to any bone are dropped and reported by ok == false.
func (a *Avatar) ApplyRotation(ctx context.Context, u SensorUpdated) (c BoneChanged, ok bool) {
	a.mu.Lock()
	b, ok := a.skeleton.ApplyRotation(u.SensorID, u.Orientation)
	if ok {
		c = BoneChanged{
			BoneID:    b.id,
			SensorID:  b.sensorID,
			Relative:  b.orientation,
			Absolute:  u.Orientation,
			Timestamp: u.Timestamp,
		}
	}
	a.mu.Unlock()
	measureRotation(ctx, ok)
	return c, ok
}

// HandleSensorUpdate applies u as ApplyRotation does. It lets an Avatar be fed
// directly by an upstream driver.
func (a *Avatar) HandleSensorUpdate(ctx context.Context, u SensorUpdated) error {
	a.ApplyRotation(ctx, u)
	return nil
}

// Orientation returns the current orientation of the bone with the given id,
// relative to its parent.
func (a *Avatar) Orientation(boneID string) (Orientation, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.skeleton.Bone(boneID)
	if b == nil {
		return Orientation{}, false
	}
	return b.orientation, true
}

// SensorID returns the sensor id the bone with the given id is bound to.
func (a *Avatar) SensorID(boneID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.skeleton.Bone(boneID)
	if b == nil {
		return "", false
	}
	return b.sensorID, true
}

// Descriptors returns the canonical descriptor list of the managed skeleton.
// Unlike Skeleton.Descriptors, every bone whose sensor is bound to a driver
// carries the handle of that driver. Descriptors waits for a pending SetSensor
// to complete.
func (a *Avatar) Descriptors() []BoneDescriptor {
	a.bindMu.Lock()
	defer a.bindMu.Unlock()
	return a.descriptors()
}

// descriptors implements Descriptors. The caller must hold bindMu.
func (a *Avatar) descriptors() []BoneDescriptor {
	a.mu.Lock()
	ds := a.skeleton.Descriptors()
	a.mu.Unlock()
	for i, d := range ds {
		if h, ok := a.subs.handleOf(d.SensorID); ok {
			ds[i].Driver = &h
		}
	}
	return ds
}

// ResumeBindings binds every bone of ds carrying a driver handle to its sensor
// through that driver, as SetSensor does. It restores the upstream
// subscriptions of a skeleton loaded from a Store. Every binding is given at
// most timeout to complete (no limit if timeout is not positive).
//
// A failing binding does not prevent the others; the failures are returned
// joined.
func (a *Avatar) ResumeBindings(ctx context.Context, ds []BoneDescriptor, timeout time.Duration) error {
	var errs []error
	for _, d := range ds {
		if d.Driver == nil {
			continue
		}
		if err := a.setSensorWithin(ctx, timeout, d.ID, d.SensorID, d.Driver); err != nil {
			component.Logger(ctx).Warn("Failed to resume binding",
				slog.String("bone", d.ID),
				slog.String("sensor", d.SensorID),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Errorf("bone %q: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (a *Avatar) setSensorWithin(ctx context.Context, timeout time.Duration, boneID, sensorID string, driver *DriverHandle) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.SetSensor(ctx, boneID, sensorID, driver)
}

// Bindings returns a copy of the current sensor id to driver handle bindings.
func (a *Avatar) Bindings() map[string]DriverHandle {
	a.bindMu.Lock()
	defer a.bindMu.Unlock()
	return a.subs.snapshot()
}

func (a *Avatar) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.skeleton.String()
}

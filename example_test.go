package avatar_test

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/danielorbach/go-component"
	"github.com/danielorbach/go-component/loader"
	"github.com/go-digitaltwin/go-avatar"
)

// A skeleton is usually parsed from its JSON descriptor list. Ids are
// lower-cased and a bone without a sensor id is driven by the sensor sharing
// its id.
func ExampleParse() {
	s, err := avatar.Parse([]byte(`[
		{"id": "Torso", "sensorId": "imu-0"},
		{"id": "UpperArm", "sensorId": "imu-1", "parentId": "torso"},
		{"id": "ForeArm", "parentId": "upperarm"}
	]`))
	if err != nil {
		panic(err)
	}
	fmt.Println(s)
	// Output:
	// torso:imu-0 {
	//   upperarm:imu-1 {
	//     forearm:forearm
	//   }
	// }
}

func ExampleBuild_errors() {
	_, err := avatar.Build([]avatar.BoneDescriptor{
		{ID: "torso"},
		{ID: "arm", ParentID: "torso"},
		{ID: "hand", ParentID: "wrist"},
	})
	fmt.Println(err)
	fmt.Println(avatar.KindOf(err) == avatar.UnreachableNodes)
	// Output:
	// unreachable nodes "hand"
	// true
}

// Bones store their orientation relative to their parent, while sensors report
// absolute orientations.
func ExampleAvatar_ApplyRotation() {
	var b avatar.SkeletonBuilder
	b.Bone("upperarm", "imu-1", "").Bone("forearm", "imu-2", "upperarm")
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	a := avatar.New(s, avatar.Config{DriverKind: "imu"})

	ctx := context.Background()
	a.ApplyRotation(ctx, avatar.SensorUpdated{SensorID: "imu-1", Orientation: avatar.AngleAxis(math.Pi/2, 0, 0, 1)})
	c, ok := a.ApplyRotation(ctx, avatar.SensorUpdated{SensorID: "imu-2", Orientation: avatar.AngleAxis(math.Pi/2, 0, 0, 1)})
	fmt.Println(c.BoneID, ok, c.Relative.ApproxEqual(avatar.Identity, 1e-12))

	_, ok = a.ApplyRotation(ctx, avatar.SensorUpdated{SensorID: "imu-9", Orientation: avatar.Identity})
	fmt.Println(ok)
	// Output:
	// forearm true true
	// false
}

func ExampleAvatar_SetSensor() {
	a := avatar.New(mustParse(avatar.DefaultSkeleton), avatar.Config{DriverKind: "imu"})

	// Without a driver handle, the bone is rebound without any upstream
	// interaction.
	if err := a.SetSensor(context.Background(), "root", "glove", nil); err != nil {
		panic(err)
	}
	fmt.Println(a)

	err := a.SetSensor(context.Background(), "hip", "glove", nil)
	fmt.Println(err)
	// Output:
	// root:glove
	// unknown bone "hip"
}

func mustParse(s string) *avatar.Skeleton {
	sk, err := avatar.Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return sk
}

// Component describes an exemplar avatar deployment: it tracks the sensor
// updates received on its interest and broadcasts bone changes on its aspect.
var Component = component.Descriptor{
	Name: "avatar",
	Doc:  "Keeps a skeleton in sync with the sensors driving its bones.",
	Bootstrap: func(l *component.L, linker component.Linker, options any) error {
		const (
			updatesInterest = "avatar.sensor-updated"
			changesAspect   = "avatar.bone-changed"
		)
		logger := component.Logger(l.Context())

		logger.Debug("Opening interest subscription...", slog.String("topic-name", updatesInterest))
		updates, err := linker.LinkInterest(l.GraceContext(), updatesInterest)
		if err != nil {
			return fmt.Errorf("open interest %q: %w", updatesInterest, err)
		}
		l.CleanupBackground(updates.Shutdown)

		logger.Debug("Opening aspect topic...", slog.String("topic-name", changesAspect))
		changes, err := linker.LinkAspect(l.GraceContext(), changesAspect)
		if err != nil {
			return fmt.Errorf("open aspect %q: %w", changesAspect, err)
		}
		l.CleanupContext(changes.Shutdown)

		a := avatar.New(mustParse(avatar.DefaultSkeleton), avatar.Config{DriverKind: "imu"})
		l.Fork("track-sensors", a.TrackSensors(updates, avatar.NewBroadcaster(changes)))
		return nil
	},
	Aspects:   []string{"avatar.bone-changed"},
	Interests: []string{"avatar.sensor-updated"},
}

// This example never runs; a deployable executable must know how to load its
// component descriptors.
func ExampleAvatar_TrackSensors() {
	loader.ParseFlags(&Component)
}

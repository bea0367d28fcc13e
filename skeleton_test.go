package avatar

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

// checkInvariants verifies the structural invariants every skeleton holds:
// both indexes have one entry per bone, keys are lower-cased, parent pointers
// match tree edges, and only the root lacks a parent.
func checkInvariants(t *testing.T, s *Skeleton) {
	t.Helper()

	var bones []*Bone
	Inspect(s, func(b *Bone) bool {
		if b != nil {
			bones = append(bones, b)
		}
		return true
	})
	if len(bones) != len(s.byID) || len(bones) != len(s.bySensor) {
		t.Errorf("tree has %d bones, byID has %d entries and bySensor has %d", len(bones), len(s.byID), len(s.bySensor))
	}
	roots := 0
	for _, b := range bones {
		if s.byID[b.ID()] != b {
			t.Errorf("byID[%q] does not point at its bone", b.ID())
		}
		if s.bySensor[b.SensorID()] != b {
			t.Errorf("bySensor[%q] does not point at bone %q", b.SensorID(), b.ID())
		}
		if b.ID() != strings.ToLower(b.ID()) || b.SensorID() != strings.ToLower(b.SensorID()) {
			t.Errorf("bone %q (sensor %q) is not lower-cased", b.ID(), b.SensorID())
		}
		if b.IsRoot() {
			roots++
			continue
		}
		if b.Parent().Child(b.ID()) != b {
			t.Errorf("parent %q of bone %q does not own it", b.Parent().ID(), b.ID())
		}
	}
	if roots != 1 {
		t.Errorf("found %d parentless bones, want 1", roots)
	}
}

func TestSkeletonLookups(t *testing.T) {
	s := mustBuild(t, complexHierarchy())

	b := s.Bone("ab3c2d0e0")
	if b == nil || b.SensorID() != "ab3c2d0e0-sensor" || len(b.Children()) != 0 {
		t.Errorf("Bone(ab3c2d0e0) = %v, want leaf bound to ab3c2d0e0-sensor", b)
	}
	if s.Bone("a") != s.Root() {
		t.Errorf("Bone(a) is not the root")
	}
	if s.Bone("n") != nil {
		t.Errorf("Bone(n) = %v, want nil", s.Bone("n"))
	}
	if s.BoneBySensorID("ab2-sensor") != s.Bone("ab2") {
		t.Errorf("BoneBySensorID(ab2-sensor) is not Bone(ab2)")
	}
	if s.BoneBySensorID("ab2") != nil {
		t.Errorf("BoneBySensorID(ab2) = %v, want nil", s.BoneBySensorID("ab2"))
	}
}

func TestBoneChildrenIsACopy(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	children := s.Root().Children()
	delete(children, "ab0")
	if s.Root().Child("ab0") == nil {
		t.Errorf("deleting from Children() removed a child from the bone")
	}
}

func TestRebindSensor(t *testing.T) {
	tests := []struct {
		name     string
		boneID   string
		sensorID string
		kind     Kind
		ref      string
	}{
		{name: "empty-bone-id", boneID: "", sensorID: "sensor", kind: NullArgument, ref: "bone id"},
		{name: "empty-sensor-id", boneID: "a", sensorID: "", kind: InvalidArgument, ref: "sensor id"},
		{name: "unknown-bone", boneID: "unknown", sensorID: "sensor", kind: UnknownBone, ref: "unknown"},
		{name: "sensor-in-use", boneID: "a", sensorID: "ab0-sensor", kind: SensorIDInUse, ref: "ab0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustBuild(t, complexHierarchy())
			before := s.Descriptors()
			_, err := s.RebindSensor(tt.boneID, tt.sensorID)
			if KindOf(err) != tt.kind {
				t.Fatalf("RebindSensor(%q, %q) = %v, want kind %v", tt.boneID, tt.sensorID, err, tt.kind)
			}
			if e := err.(*Error); e.Ref != tt.ref {
				t.Errorf("Ref = %q, want %q", e.Ref, tt.ref)
			}
			if diff := cmp.Diff(before, s.Descriptors()); diff != "" {
				t.Errorf("failed RebindSensor modified the skeleton (-want +got):\n%s", diff)
			}
			checkInvariants(t, s)
		})
	}
}

func TestRebindSensorInUseMessage(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	_, err := s.RebindSensor("a", "ab0-sensor")
	if want := `sensor id in use by bone "ab0"`; err == nil || err.Error() != want {
		t.Errorf("RebindSensor() error = %v, want %q", err, want)
	}
}

func TestRebindSensorIdempotent(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	previous, err := s.RebindSensor("ab0", "ab0-sensor")
	if err != nil {
		t.Fatal(err)
	}
	if previous != "ab0-sensor" {
		t.Errorf("RebindSensor() = %q, want %q", previous, "ab0-sensor")
	}
	if s.Bone("ab0") != s.BoneBySensorID("ab0-sensor") {
		t.Errorf("Bone(ab0) is no longer bound to ab0-sensor")
	}
	checkInvariants(t, s)
}

func TestRebindSensorKeepsOldKey(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	previous, err := s.RebindSensor("ab0", "new-sensor")
	if err != nil {
		t.Fatal(err)
	}
	if previous != "ab0-sensor" {
		t.Errorf("RebindSensor() = %q, want %q", previous, "ab0-sensor")
	}
	b := s.Bone("ab0")
	if b.SensorID() != "new-sensor" {
		t.Errorf("SensorID() = %q, want %q", b.SensorID(), "new-sensor")
	}
	if s.BoneBySensorID("new-sensor") != b {
		t.Errorf("BoneBySensorID(new-sensor) is not ab0")
	}
	// The previous key is an alias until the caller releases it.
	if s.BoneBySensorID("ab0-sensor") != b {
		t.Errorf("BoneBySensorID(ab0-sensor) is not ab0")
	}
}

func TestCheckRebindLeavesSkeleton(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	before := s.Descriptors()

	b, err := s.checkRebind("ab1", "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if b != s.Bone("ab1") {
		t.Errorf("checkRebind() = %v, want bone ab1", b)
	}
	if _, err := s.checkRebind("ab1", "ab0-sensor"); KindOf(err) != SensorIDInUse {
		t.Errorf("checkRebind(ab1, ab0-sensor) = %v, want kind %v", err, SensorIDInUse)
	}
	if s.BoneBySensorID("fresh") != nil {
		t.Errorf("checkRebind indexed the sensor id fresh")
	}
	if diff := cmp.Diff(before, s.Descriptors()); diff != "" {
		t.Errorf("checkRebind modified the skeleton (-want +got):\n%s", diff)
	}
	checkInvariants(t, s)
}

func TestRebindDropsPreviousKey(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	b := s.Bone("ab1")

	if previous := s.rebind(b, "ab1-sensor"); previous != "ab1-sensor" {
		t.Errorf("rebind(same sensor) = %q, want %q", previous, "ab1-sensor")
	}
	if s.BoneBySensorID("ab1-sensor") != b {
		t.Errorf("rebind(same sensor) released ab1-sensor")
	}

	if previous := s.rebind(b, "fresh"); previous != "ab1-sensor" {
		t.Errorf("rebind() = %q, want %q", previous, "ab1-sensor")
	}
	if s.BoneBySensorID("fresh") != b {
		t.Errorf("BoneBySensorID(fresh) is not ab1")
	}
	if s.BoneBySensorID("ab1-sensor") != nil {
		t.Errorf("rebind kept ab1-sensor in the index")
	}
	checkInvariants(t, s)
}

func TestApplyRotation(t *testing.T) {
	s := mustBuild(t, []BoneDescriptor{
		{ID: "arm", SensorID: "1"},
		{ID: "forearm", SensorID: "2", ParentID: "arm"},
	})

	arm := AngleAxis(math.Pi/4, 1, 0, 0)
	if b, ok := s.ApplyRotation("1", arm); !ok || b.ID() != "arm" {
		t.Fatalf("ApplyRotation(1) = %v, %v; want arm, true", b, ok)
	}
	if got := s.Bone("arm").Orientation(); !got.ApproxEqual(arm, tolerance) {
		t.Errorf("arm orientation = %+v, want %+v", got, arm)
	}

	if _, ok := s.ApplyRotation("2", AngleAxis(math.Pi/2, 1, 0, 0)); !ok {
		t.Fatalf("ApplyRotation(2) dropped the update")
	}
	want := AngleAxis(math.Pi/4, 1, 0, 0)
	if got := s.Bone("forearm").Orientation(); !got.ApproxEqual(want, tolerance) {
		t.Errorf("forearm orientation = %+v, want %+v", got, want)
	}
}

func TestApplyRotationRoot(t *testing.T) {
	s := mustBuild(t, []BoneDescriptor{{ID: "root"}})
	r := AngleAxis(math.Pi/2, 1, 0, 0)
	s.ApplyRotation("root", r)
	if got := s.Root().Orientation(); !got.ApproxEqual(r, tolerance) {
		t.Errorf("root orientation = %+v, want %+v", got, r)
	}
}

func TestApplyRotationComposition(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	p := AngleAxis(0.3, 0, 1, 0)
	r := AngleAxis(1.1, 1, 0, 1)
	s.ApplyRotation("ab3-sensor", p)
	s.ApplyRotation("ab3c2-sensor", r)
	want := Compose(r, Inverse(p))
	if got := s.Bone("ab3c2").Orientation(); !got.ApproxEqual(want, tolerance) {
		t.Errorf("ab3c2 orientation = %+v, want %+v", got, want)
	}
}

func TestApplyRotationIdentity(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	for _, d := range s.Descriptors() {
		s.ApplyRotation(d.SensorID, Identity)
	}
	Inspect(s, func(b *Bone) bool {
		if b != nil && !b.Orientation().ApproxEqual(Identity, tolerance) {
			t.Errorf("bone %q orientation = %+v, want Identity", b.ID(), b.Orientation())
		}
		return b != nil
	})
}

func TestApplyRotationUnknownSensor(t *testing.T) {
	s := mustBuild(t, complexHierarchy())
	b, ok := s.ApplyRotation("nobody", AngleAxis(1, 1, 0, 0))
	if ok || b != nil {
		t.Errorf("ApplyRotation(nobody) = %v, %v; want nil, false", b, ok)
	}
	Inspect(s, func(b *Bone) bool {
		if b != nil && b.Orientation() != Identity {
			t.Errorf("bone %q orientation changed to %+v", b.ID(), b.Orientation())
		}
		return b != nil
	})
}

func TestDescriptorsRoundTrip(t *testing.T) {
	for name, ds := range map[string][]BoneDescriptor{
		"default": {{ID: "root", SensorID: "root"}},
		"complex": complexHierarchy(),
		"defaulted-and-mixed-case": {
			{ID: "Hips"},
			{ID: "Spine", SensorID: "IMU-7", ParentID: "hips"},
			{ID: "Head", ParentID: "SPINE"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := mustBuild(t, ds)
			dump := s.Descriptors()
			rebuilt := mustBuild(t, dump)
			if diff := cmp.Diff(dump, rebuilt.Descriptors()); diff != "" {
				t.Errorf("Descriptors() of rebuilt skeleton mismatch (-want +got):\n%s", diff)
			}
			if s.String() != rebuilt.String() {
				t.Errorf("String() of rebuilt skeleton = %q, want %q", rebuilt.String(), s.String())
			}
			if !s.Equal(rebuilt) {
				t.Errorf("rebuilt skeleton is not Equal to the original")
			}
			checkInvariants(t, rebuilt)
		})
	}
}

func TestDescriptorsCanonical(t *testing.T) {
	s := mustBuild(t, []BoneDescriptor{
		{ID: "Head", ParentID: "spine"},
		{ID: "Hips"},
		{ID: "Spine", SensorID: "IMU-7", ParentID: "hips"},
	})
	want := []BoneDescriptor{
		{ID: "hips", SensorID: "hips"},
		{ID: "spine", SensorID: "imu-7", ParentID: "hips"},
		{ID: "head", SensorID: "head", ParentID: "spine"},
	}
	if diff := cmp.Diff(want, s.Descriptors()); diff != "" {
		t.Errorf("Descriptors() mismatch (-want +got):\n%s", diff)
	}
}

func TestSkeletonEqual(t *testing.T) {
	a := mustBuild(t, complexHierarchy())
	b := mustBuild(t, complexHierarchy())
	if !a.Equal(b) {
		t.Errorf("skeletons built from the same descriptors are not Equal")
	}
	if _, err := b.RebindSensor("ab1c0", "elsewhere"); err != nil {
		t.Fatal(err)
	}
	if a.Equal(b) {
		t.Errorf("skeletons with different sensor ids are Equal")
	}
	c := mustBuild(t, []BoneDescriptor{{ID: "a", SensorID: "a-sensor"}})
	if a.Equal(c) {
		t.Errorf("skeletons with different children are Equal")
	}
}

/*
Package storetest provides a suite of tests designed to assess skeleton stores
(e.g. in-memory, neo4j).

The tests operate on the specific store via the [avatar.Store] interface to
check functional correctness and compliance with the behaviours defined by that
interface.

Call storetest.Run in its own test to invoke the test-suite:

	func TestStore(t *testing.T) {
		store := NewStore(driver, "avatar") // Create a new, empty store.
		storetest.Run(t, store)
	}

The test cases in this suite focus on the basic persistence operations:

  - Loading from a store nothing was saved to.
  - Saving skeletons and loading them back, in order, over time.
  - Keeping the driver handle of bound sensors, and forgetting it once the
    sensor is unbound.

So, specific store implementations are encouraged to perform additional tests
which are specific to the underlying storage.
*/
package storetest

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/go-digitaltwin/go-avatar"
)

type testCase struct {
	// Subtest name.
	name string
	// A path leading to the test-case's file and line in the source code.
	location string
	// The descriptor list saved to the tested store. A nil list saves nothing.
	save []avatar.BoneDescriptor
	// A list of checks to run on the descriptor list loaded afterwards.
	checks []check
}

var cases = []testCase{
	{
		name:     "load-empty-store",
		location: locateSource(),
		checks: []check{
			failsWith(avatar.ErrNoSkeleton),
		},
	},
	{
		name:     "save-default-skeleton",
		location: locateSource(),
		save:     []avatar.BoneDescriptor{{ID: "root", SensorID: "root"}},
		checks: []check{
			loads(avatar.BoneDescriptor{ID: "root", SensorID: "root"}),
			builds(),
		},
	},
	{
		name:     "overwrite-with-arm",
		location: locateSource(),
		save: []avatar.BoneDescriptor{
			{ID: "torso", SensorID: "imu-0"},
			{ID: "upperarm", SensorID: "imu-1", ParentID: "torso"},
			{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
			{ID: "hand", SensorID: "imu-3", ParentID: "forearm"},
		},
		checks: []check{
			loads(
				avatar.BoneDescriptor{ID: "torso", SensorID: "imu-0"},
				avatar.BoneDescriptor{ID: "upperarm", SensorID: "imu-1", ParentID: "torso"},
				avatar.BoneDescriptor{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
				avatar.BoneDescriptor{ID: "hand", SensorID: "imu-3", ParentID: "forearm"},
			),
			builds(),
		},
	},
	{
		name:     "rebind-sensor",
		location: locateSource(),
		save: []avatar.BoneDescriptor{
			{ID: "torso", SensorID: "imu-0"},
			{ID: "upperarm", SensorID: "glove", ParentID: "torso"},
			{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
			{ID: "hand", SensorID: "imu-3", ParentID: "forearm"},
		},
		checks: []check{
			loads(
				avatar.BoneDescriptor{ID: "torso", SensorID: "imu-0"},
				avatar.BoneDescriptor{ID: "upperarm", SensorID: "glove", ParentID: "torso"},
				avatar.BoneDescriptor{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
				avatar.BoneDescriptor{ID: "hand", SensorID: "imu-3", ParentID: "forearm"},
			),
			builds(),
		},
	},
	{
		name:     "bind-drivers",
		location: locateSource(),
		save: []avatar.BoneDescriptor{
			{ID: "torso", SensorID: "imu-0", Driver: &avatar.DriverHandle{Driver: "imu", Device: "vest", Instance: "0"}},
			{ID: "upperarm", SensorID: "glove", ParentID: "torso", Driver: &avatar.DriverHandle{Driver: "imu"}},
			{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
			{ID: "hand", SensorID: "imu-3", ParentID: "forearm", Driver: &avatar.DriverHandle{Driver: "imu", Device: "vest", Instance: "0"}},
		},
		checks: []check{
			loads(
				avatar.BoneDescriptor{ID: "torso", SensorID: "imu-0", Driver: &avatar.DriverHandle{Driver: "imu", Device: "vest", Instance: "0"}},
				avatar.BoneDescriptor{ID: "upperarm", SensorID: "glove", ParentID: "torso", Driver: &avatar.DriverHandle{Driver: "imu"}},
				avatar.BoneDescriptor{ID: "forearm", SensorID: "imu-2", ParentID: "upperarm"},
				avatar.BoneDescriptor{ID: "hand", SensorID: "imu-3", ParentID: "forearm", Driver: &avatar.DriverHandle{Driver: "imu", Device: "vest", Instance: "0"}},
			),
			builds(),
		},
	},
	{
		name:     "shrink-to-wide-tree",
		location: locateSource(),
		save: []avatar.BoneDescriptor{
			{ID: "pelvis", SensorID: "p"},
			{ID: "leftleg", SensorID: "l", ParentID: "pelvis"},
			{ID: "rightleg", SensorID: "r", ParentID: "pelvis"},
		},
		checks: []check{
			loads(
				avatar.BoneDescriptor{ID: "pelvis", SensorID: "p"},
				avatar.BoneDescriptor{ID: "leftleg", SensorID: "l", ParentID: "pelvis"},
				avatar.BoneDescriptor{ID: "rightleg", SensorID: "r", ParentID: "pelvis"},
			),
			builds(),
		},
	},
}

// Run executes a sequence of test cases on a skeleton store. It verifies that
// the store loads exactly what was last saved to it.
//
// The store must be empty when Run is called. All test-cases run in-order, on
// the same store, because each case loads what its predecessors left behind;
// that is, a test case cannot run if the previous case had failed.
func Run(t *testing.T, store avatar.Store) {
	t.Helper()

	ctx := context.Background()
	for _, c := range cases {
		t.Logf("Read the source for test-case %v at %v", c.name, c.location)
		if c.save != nil {
			if err := store.SaveDescriptors(ctx, c.save); err != nil {
				t.Fatalf("SaveDescriptors(%v) failed: %v", c.name, err)
			}
		}
		ds, err := store.LoadDescriptors(ctx)
		for _, check := range c.checks {
			if problem := check(ds, err); problem != "" {
				t.Errorf("Check %v: %v", c.name, problem)
			}
		}
		if t.Failed() {
			t.FailNow()
		}
	}
}

// Call this function to set the location of every test-case in the source file.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}

package storetest

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/go-avatar"
)

// A check is any function that returns unexpected problems with the result of
// loading a descriptor list from the tested store.
type check func(ds []avatar.BoneDescriptor, err error) (problem string)

// Checks that loading failed with the given error.
func failsWith(target error) check {
	return func(ds []avatar.BoneDescriptor, err error) string {
		if !errors.Is(err, target) {
			return fmt.Sprintf("LoadDescriptors() error = %v, want %v", err, target)
		}
		if ds != nil {
			return fmt.Sprintf("LoadDescriptors() = %v alongside an error, want nil", ds)
		}
		return ""
	}
}

// Checks that loading succeeded with exactly the given descriptors, in order.
//
// Stores must preserve the saved order: it decides the order of siblings in
// the skeleton built from the list.
func loads(want ...avatar.BoneDescriptor) check {
	return func(ds []avatar.BoneDescriptor, err error) string {
		if err != nil {
			return fmt.Sprintf("LoadDescriptors() failed: %v", err)
		}
		if diff := cmp.Diff(want, ds); diff != "" {
			return fmt.Sprintf("LoadDescriptors() mismatch (-want +got):\n%v", diff)
		}
		return ""
	}
}

// Checks that the loaded descriptors form a valid skeleton.
func builds() check {
	return func(ds []avatar.BoneDescriptor, err error) string {
		if err != nil {
			return ""
		}
		if _, err := avatar.Build(ds); err != nil {
			return fmt.Sprintf("Build(loaded descriptors) failed: %v", err)
		}
		return ""
	}
}

package avatar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrNoSkeleton is returned by a Store that has no skeleton saved yet.
var ErrNoSkeleton = errors.New("avatar: no skeleton saved")

// A Store persists the descriptor list of a skeleton, including the driver
// handle of every bound sensor (see Avatar.Descriptors). Pass the loaded list
// to Avatar.ResumeBindings to subscribe to those drivers again after a
// restart.
type Store interface {
	// LoadDescriptors returns the last saved descriptor list, in the order it
	// was saved, or ErrNoSkeleton.
	LoadDescriptors(ctx context.Context) ([]BoneDescriptor, error)
	// SaveDescriptors replaces the saved descriptor list.
	SaveDescriptors(ctx context.Context, ds []BoneDescriptor) error
}

// LoadSkeleton builds the skeleton last saved to the given Store.
func LoadSkeleton(ctx context.Context, s Store) (*Skeleton, error) {
	ds, err := s.LoadDescriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	return Build(ds)
}

// MemoryStore is a Store keeping the descriptor list in memory.
//
// The zero value is an empty store ready for use. A MemoryStore is safe for
// concurrent use.
type MemoryStore struct {
	mu sync.Mutex
	ds []BoneDescriptor
}

// LoadDescriptors implements Store.
func (m *MemoryStore) LoadDescriptors(context.Context) ([]BoneDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ds == nil {
		return nil, ErrNoSkeleton
	}
	return cloneDescriptors(m.ds), nil
}

// SaveDescriptors implements Store.
func (m *MemoryStore) SaveDescriptors(_ context.Context, ds []BoneDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ds = cloneDescriptors(ds)
	if m.ds == nil {
		m.ds = []BoneDescriptor{}
	}
	return nil
}

// cloneDescriptors returns a deep copy of ds.
func cloneDescriptors(ds []BoneDescriptor) []BoneDescriptor {
	ds = slices.Clone(ds)
	for i, d := range ds {
		if d.Driver != nil {
			h := *d.Driver
			ds[i].Driver = &h
		}
	}
	return ds
}

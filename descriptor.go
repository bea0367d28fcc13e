package avatar

import (
	"encoding/json"
	"fmt"
)

// DefaultSkeleton is the descriptor list of a skeleton made of a single bone,
// "root", bound to the sensor id "root". Use it when no skeleton is configured.
const DefaultSkeleton = `[{"id":"root","sensorId":"root"}]`

// A BoneDescriptor describes a single bone of a skeleton before it is
// assembled. An empty ParentID marks the root of the skeleton; an empty
// SensorID defaults to the bone's own ID.
//
// In JSON, a descriptor is an object with the string fields "id", "sensorId"
// and "parentId"; the latter two may be absent or null. The misspelled
// "parendId" is accepted as a synonym of "parentId" for compatibility with
// older skeleton files. The optional "driver" object holds the Driver handle.
type BoneDescriptor struct {
	ID       string `json:"id"`
	SensorID string `json:"sensorId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	// Driver, if not nil, is the driver instance the bone's sensor is bound to.
	// Build ignores it; see Avatar.ResumeBindings.
	Driver *DriverHandle `json:"driver,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *BoneDescriptor) UnmarshalJSON(p []byte) error {
	var raw struct {
		ID       string        `json:"id"`
		SensorID string        `json:"sensorId"`
		ParentID string        `json:"parentId"`
		Legacy   string        `json:"parendId"`
		Driver   *DriverHandle `json:"driver"`
	}
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	parent := raw.ParentID
	if parent == "" {
		parent = raw.Legacy
	}
	*d = BoneDescriptor{ID: raw.ID, SensorID: raw.SensorID, ParentID: parent, Driver: raw.Driver}
	return nil
}

// ParseDescriptors decodes a JSON array of bone descriptors.
func ParseDescriptors(p []byte) ([]BoneDescriptor, error) {
	var ds []BoneDescriptor
	if err := json.Unmarshal(p, &ds); err != nil {
		return nil, fmt.Errorf("decode descriptors: %w", err)
	}
	return ds, nil
}

// Parse decodes a JSON array of bone descriptors and builds the skeleton they
// describe. See Build for the validation rules.
func Parse(p []byte) (*Skeleton, error) {
	ds, err := ParseDescriptors(p)
	if err != nil {
		return nil, err
	}
	return Build(ds)
}

package avatar

// A Skeleton is a validated tree of bones together with two indexes: bones by
// their id and bones by the id of the sensor driving them.
//
// Skeletons are created by Build (or Parse, or a SkeletonBuilder) and are
// never partially constructed. Afterwards only RebindSensor and ApplyRotation
// modify them.
//
// A Skeleton is not safe for concurrent use. The Avatar coordinator serialises
// access to the skeleton it manages; use its methods when sharing a skeleton
// between goroutines.
type Skeleton struct {
	root     *Bone
	byID     map[string]*Bone
	bySensor map[string]*Bone
}

// Root returns the only bone of s without a parent.
func (s *Skeleton) Root() *Bone { return s.root }

// Len returns the number of bones in s.
func (s *Skeleton) Len() int { return len(s.byID) }

// Bone returns the bone with the given id, or nil. The id must match exactly;
// ids are lower-cased when the skeleton is built, not when it is queried.
func (s *Skeleton) Bone(id string) *Bone { return s.byID[id] }

// BoneBySensorID returns the bone bound to the given sensor id, or nil. Like
// Bone, the lookup is exact.
func (s *Skeleton) BoneBySensorID(sensorID string) *Bone { return s.bySensor[sensorID] }

// RebindSensor binds the bone identified by boneID to sensorID and returns the
// sensor id the bone was bound to before.
//
// It fails with NullArgument if boneID is empty, with InvalidArgument if
// sensorID is empty, with UnknownBone if no bone has the given id, and with
// SensorIDInUse if another bone is already bound to sensorID; the Ref of the
// latter names the owning bone. Rebinding a bone to the sensor id it already
// has succeeds without changing anything.
//
// RebindSensor does not remove the previous sensor id from the sensor index:
// the old key keeps pointing at the bone until the caller decides to drop it.
// The Avatar coordinator never leaves such an alias behind: it commits a
// rebind only once the new binding is known to succeed, and drops the old key
// in the same step.
func (s *Skeleton) RebindSensor(boneID, sensorID string) (previous string, err error) {
	b, err := s.checkRebind(boneID, sensorID)
	if err != nil {
		return "", err
	}
	previous = b.sensorID
	b.sensorID = sensorID
	s.bySensor[sensorID] = b
	return previous, nil
}

// checkRebind returns the bone RebindSensor(boneID, sensorID) would rebind, or
// the error it would fail with. It does not modify s.
func (s *Skeleton) checkRebind(boneID, sensorID string) (*Bone, error) {
	if boneID == "" {
		return nil, newError(NullArgument, "bone id")
	}
	if sensorID == "" {
		return nil, newError(InvalidArgument, "sensor id")
	}
	b := s.byID[boneID]
	if b == nil {
		return nil, newError(UnknownBone, boneID)
	}
	if owner := s.bySensor[sensorID]; owner != nil && owner != b {
		return nil, newError(SensorIDInUse, owner.id)
	}
	return b, nil
}

// ApplyRotation records the absolute orientation reported by the given sensor
// on the bone it drives. The bone stores the orientation relative to the
// current orientation of its parent.
//
// Updates from sensors not bound to any bone are dropped: ApplyRotation then
// returns nil and false.
func (s *Skeleton) ApplyRotation(sensorID string, absolute Orientation) (*Bone, bool) {
	b := s.bySensor[sensorID]
	if b == nil {
		return nil, false
	}
	b.setRotation(absolute)
	return b, true
}

// Descriptors returns the canonical descriptor list of s: bones in depth-first
// order, every parent before its children and siblings in the order they were
// assembled. Building a skeleton from the result yields a skeleton equal to s.
func (s *Skeleton) Descriptors() []BoneDescriptor {
	ds := make([]BoneDescriptor, 0, s.Len())
	Inspect(s, func(b *Bone) bool {
		if b == nil {
			return false
		}
		d := BoneDescriptor{ID: b.id, SensorID: b.sensorID}
		if b.parent != nil {
			d.ParentID = b.parent.id
		}
		ds = append(ds, d)
		return true
	})
	return ds
}

// Equal reports whether s and o describe the same tree, as defined by
// Bone.Equal.
func (s *Skeleton) Equal(o *Skeleton) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.root.Equal(o.root)
}

// String formats the whole tree; see Bone.String.
func (s *Skeleton) String() string { return s.root.String() }

// rebind binds b to sensorID and removes the sensor id b was bound to before
// from the index, in one step. The caller must have validated the rebind with
// checkRebind.
func (s *Skeleton) rebind(b *Bone, sensorID string) (previous string) {
	previous = b.sensorID
	if previous == sensorID {
		return previous
	}
	if s.bySensor[previous] == b {
		delete(s.bySensor, previous)
	}
	b.sensorID = sensorID
	s.bySensor[sensorID] = b
	return previous
}

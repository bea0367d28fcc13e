package avatar

import (
	"slices"
	"strings"
)

// A SkeletonBuilder accumulates bone descriptors using fluent calls and builds
// the Skeleton they describe.
// The zero value is ready to use.
// Do not copy a non-zero SkeletonBuilder.
type SkeletonBuilder struct {
	descriptors []BoneDescriptor
	// address of receiver - to detect copies by value.
	addr *SkeletonBuilder
}

// Bone appends a single descriptor to b's list. Pass an empty parentID for the
// root and an empty sensorID to default it to the bone's id.
func (b *SkeletonBuilder) Bone(id, sensorID, parentID string) *SkeletonBuilder {
	return b.Descriptors(BoneDescriptor{ID: id, SensorID: sensorID, ParentID: parentID})
}

// Descriptors appends the given descriptors to b's list, in order.
func (b *SkeletonBuilder) Descriptors(d ...BoneDescriptor) *SkeletonBuilder {
	b.copyCheck()
	b.descriptors = append(b.descriptors, d...)
	return b
}

// Reset resets the builder to be empty.
func (b *SkeletonBuilder) Reset() {
	b.descriptors = nil
	b.addr = nil
}

// Build validates the accumulated descriptors and assembles them into a
// Skeleton. The builder is left untouched, so further calls to Build yield
// independent skeletons.
func (b *SkeletonBuilder) Build() (*Skeleton, error) {
	return Build(b.descriptors)
}

func (b *SkeletonBuilder) copyCheck() {
	if b.addr == nil {
		b.addr = b
	} else if b.addr != b {
		panic("avatar: illegal use of non-zero SkeletonBuilder copied by value")
	}
}

// Build assembles the tree described by the given descriptors.
//
// Exactly one descriptor must have an empty parent id; it becomes the root. The
// rest of the tree is assembled recursively from the root by consuming, for
// every bone, the descriptors whose parent id matches the bone's id (case
// insensitively). Bone ids and sensor ids are lower-cased and must be unique;
// an empty sensor id defaults to the bone's id. Descriptors left over once the
// root's subtree is complete are unreachable from the root, meaning they form
// a cycle or an island, and fail the build.
//
// The first violation aborts the build and is reported as an *Error whose Kind
// is one of NoRootFound, MultipleRootsFound, InvalidID, DuplicateID,
// DuplicateSensorID or UnreachableNodes. No partial skeleton is ever returned.
//
// Every bone of a built skeleton starts at the Identity orientation.
func Build(descriptors []BoneDescriptor) (*Skeleton, error) {
	root, pool, err := extractRoot(descriptors)
	if err != nil {
		return nil, err
	}

	a := assembler{
		pool: pool,
		s: &Skeleton{
			byID:     make(map[string]*Bone, len(descriptors)),
			bySensor: make(map[string]*Bone, len(descriptors)),
		},
	}
	r, err := a.assemble(root)
	if err != nil {
		return nil, err
	}
	if len(a.pool) != 0 {
		ids := make([]string, len(a.pool))
		for i, d := range a.pool {
			ids[i] = d.ID
		}
		return nil, newError(UnreachableNodes, strings.Join(ids, ","))
	}
	a.s.root = r
	return a.s, nil
}

// extractRoot finds the only descriptor without a parent and returns it along
// with a fresh pool holding every other descriptor, in order.
func extractRoot(descriptors []BoneDescriptor) (BoneDescriptor, []BoneDescriptor, error) {
	i := slices.IndexFunc(descriptors, isRoot)
	if i < 0 {
		return BoneDescriptor{}, nil, newError(NoRootFound, "")
	}
	if slices.ContainsFunc(descriptors[i+1:], isRoot) {
		return BoneDescriptor{}, nil, newError(MultipleRootsFound, "")
	}
	pool := make([]BoneDescriptor, 0, len(descriptors)-1)
	pool = append(pool, descriptors[:i]...)
	pool = append(pool, descriptors[i+1:]...)
	return descriptors[i], pool, nil
}

func isRoot(d BoneDescriptor) bool { return d.ParentID == "" }

// An assembler consumes descriptors from its pool while it grows a skeleton.
type assembler struct {
	pool []BoneDescriptor
	s    *Skeleton
}

func (a *assembler) assemble(d BoneDescriptor) (*Bone, error) {
	if d.ID == "" {
		return nil, newError(InvalidID, "")
	}
	id := strings.ToLower(d.ID)
	if _, seen := a.s.byID[id]; seen {
		return nil, newError(DuplicateID, id)
	}
	sensorID := d.SensorID
	if sensorID == "" {
		sensorID = id
	}
	sensorID = strings.ToLower(sensorID)
	if _, seen := a.s.bySensor[sensorID]; seen {
		return nil, newError(DuplicateSensorID, sensorID)
	}

	// Claim both keys before descending, so a descendant reusing either one is
	// reported as a duplicate.
	b := newBone(id, sensorID, nil)
	a.s.byID[id] = b
	a.s.bySensor[sensorID] = b

	for _, cd := range a.takeChildren(id) {
		c, err := a.assemble(cd)
		if err != nil {
			return nil, err
		}
		b.attach(c)
	}
	return b, nil
}

// takeChildren removes from the pool every descriptor whose parent is id and
// returns them in the order they were found.
func (a *assembler) takeChildren(id string) []BoneDescriptor {
	var children []BoneDescriptor
	a.pool = slices.DeleteFunc(a.pool, func(d BoneDescriptor) bool {
		if strings.ToLower(d.ParentID) == id {
			children = append(children, d)
			return true
		}
		return false
	})
	return children
}

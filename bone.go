package avatar

import (
	"maps"
	"strings"
)

// A Bone is a single rigid segment of a Skeleton.
//
// Each bone owns its children, mapped by their ids, and refers back to its
// parent; the root of the skeleton has no parent. Its orientation is stored
// relative to the orientation of its parent (absolute, for the root).
//
// Bones are created by the skeleton builder and live as long as their
// Skeleton. Only the sensor id and the orientation change afterwards, and only
// through the Skeleton that holds the bone.
type Bone struct {
	id          string
	sensorID    string
	orientation Orientation

	parent   *Bone
	children map[string]*Bone
	// Child ids in the order they were assembled, for stable formatting.
	order []string
}

func newBone(id, sensorID string, parent *Bone) *Bone {
	return &Bone{
		id:          id,
		sensorID:    sensorID,
		orientation: Identity,
		parent:      parent,
	}
}

// attach makes c a child of b.
func (b *Bone) attach(c *Bone) {
	if b.children == nil {
		b.children = make(map[string]*Bone)
	}
	c.parent = b
	b.children[c.id] = c
	b.order = append(b.order, c.id)
}

// ID returns the unique, lower-cased id of the bone.
func (b *Bone) ID() string { return b.id }

// SensorID returns the id of the sensor currently driving the bone.
func (b *Bone) SensorID() string { return b.sensorID }

// Orientation returns the latest orientation of the bone relative to its
// parent, or its absolute orientation if b is the root.
func (b *Bone) Orientation() Orientation { return b.orientation }

// Parent returns the parent of b, or nil if b is the root.
func (b *Bone) Parent() *Bone { return b.parent }

// IsRoot reports whether b has no parent.
func (b *Bone) IsRoot() bool { return b.parent == nil }

// Child returns the direct child of b with the given id, or nil.
func (b *Bone) Child(id string) *Bone { return b.children[id] }

// Children returns the direct children of b mapped by their ids. The returned
// map is a copy; modifying it does not affect b.
func (b *Bone) Children() map[string]*Bone {
	if len(b.children) == 0 {
		return map[string]*Bone{}
	}
	return maps.Clone(b.children)
}

// childList returns the children of b in assembly order.
func (b *Bone) childList() []*Bone {
	l := make([]*Bone, 0, len(b.order))
	for _, id := range b.order {
		l = append(l, b.children[id])
	}
	return l
}

// setRotation stores the given absolute orientation relative to the current
// orientation of the parent.
func (b *Bone) setRotation(absolute Orientation) {
	parent := Identity
	if b.parent != nil {
		parent = b.parent.orientation
	}
	b.orientation = RelativeTo(absolute, parent)
}

// Equal reports whether b and o have the same id, the same sensor id and equal
// children, recursively. Orientations are not compared.
func (b *Bone) Equal(o *Bone) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.id != o.id || b.sensorID != o.sensorID || len(b.children) != len(o.children) {
		return false
	}
	for id, c := range b.children {
		if !c.Equal(o.children[id]) {
			return false
		}
	}
	return true
}

// String formats the subtree rooted at b as "id:sensorId", followed by its
// children in braces, one per line and indented by two spaces per level.
func (b *Bone) String() string {
	var sb strings.Builder
	b.format(&sb, "")
	return sb.String()
}

func (b *Bone) format(sb *strings.Builder, prefix string) {
	sb.WriteString(prefix)
	sb.WriteString(b.id)
	sb.WriteByte(':')
	sb.WriteString(b.sensorID)
	if len(b.order) == 0 {
		return
	}
	sb.WriteString(" {\n")
	for i, c := range b.childList() {
		c.format(sb, prefix+"  ")
		if i < len(b.order)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(prefix)
	sb.WriteByte('}')
}

package avatar

// A Visitor defines a Visit method invoked for each Bone encountered by Walk.
// If the result visitor w is not nil, Walk visits each child of the bone with
// the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(bone *Bone) (w Visitor)
}

// Walk traverses a Skeleton in depth-first order, starting from its root; the
// skeleton must not be nil.
func Walk(v Visitor, s *Skeleton) {
	WalkSubtree(v, s.root)
}

// WalkSubtree traverses the subtree rooted at the given bone in depth-first
// order: It starts by calling v.Visit(bone). If the visitor w returned by
// v.Visit(bone) is not nil, WalkSubtree is invoked recursively with visitor w
// for each child of the bone, in assembly order, followed by a call of
// w.Visit(nil).
func WalkSubtree(v Visitor, bone *Bone) {
	if v = v.Visit(bone); v == nil {
		return
	}
	for _, c := range bone.childList() {
		WalkSubtree(v, c)
	}
	v.Visit(nil)
}

type inspector func(bone *Bone) bool

func (f inspector) Visit(bone *Bone) Visitor {
	if f(bone) {
		return f
	}
	return nil
}

// Inspect traverses a Skeleton in depth-first order: It starts by calling
// f(root); the skeleton must not be nil. If f returns true, Inspect invokes f
// recursively for each child of the bone, followed by a call of f(nil).
func Inspect(s *Skeleton, f func(bone *Bone) bool) {
	Walk(inspector(f), s)
}

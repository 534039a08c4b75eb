package safecall

import "github.com/henrybell/cloud-debug-java/jvm"

// objectTracker remembers, by identity, every object an evaluation has
// created. Mutation is only ever permitted on tracked objects; entries
// are never removed while the owning Caller lives, so an object once
// created by the evaluation stays writable for its whole duration.
type objectTracker struct {
	objects map[*jvm.Object]struct{}
}

func newObjectTracker() *objectTracker {
	return &objectTracker{objects: make(map[*jvm.Object]struct{})}
}

func (t *objectTracker) Track(obj *jvm.Object) {
	if obj == nil {
		return
	}
	t.objects[obj] = struct{}{}
}

func (t *objectTracker) Tracked(obj *jvm.Object) bool {
	_, ok := t.objects[obj]
	return ok
}

func (t *objectTracker) Len() int { return len(t.objects) }

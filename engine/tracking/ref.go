package tracking

import (
	"fmt"
	"log/slog"

	"github.com/hubastard/grove-ar/engine/logging"
)

// ID is the engine's identity for an object. Two refs with the same ID refer
// to the same engine object.
type ID uint64

// Ref is an acquired, reference-counted engine handle. Whoever holds a Ref
// owns exactly one engine reference and must call Release once.
type Ref struct {
	id       ID
	release  func(ID)
	released bool
}

// NewRef is used by engine implementations to hand out an acquired handle.
// release is called exactly once, on the first Release.
func NewRef(id ID, release func(ID)) *Ref {
	return &Ref{id: id, release: release}
}

func (r *Ref) ID() ID { return r.id }

// Released reports whether Release has been called.
func (r *Ref) Released() bool { return r == nil || r.released }

// Release gives the reference back to the engine. A nil Ref is a no-op.
// Releasing twice is a programming error; it is logged and ignored so the
// engine never sees a double release.
func (r *Ref) Release() {
	if r == nil {
		return
	}
	if r.released {
		logging.Logger().Error("double release of engine handle", slog.Uint64("id", uint64(r.id)))
		return
	}
	r.released = true
	if r.release != nil {
		r.release(r.id)
	}
}

func (r *Ref) String() string {
	if r == nil {
		return "Ref(nil)"
	}
	return fmt.Sprintf("Ref(%d)", r.id)
}

// ReleaseAll releases every ref in refs.
func ReleaseAll(refs []*Ref) {
	for _, r := range refs {
		r.Release()
	}
}

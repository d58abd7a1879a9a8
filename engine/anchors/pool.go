// Package anchors keeps the user-placed anchors: a bounded, insertion
// ordered pool where the oldest anchor is evicted to make room for a new one.
package anchors

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// DefaultCapacity is the number of anchors kept before eviction starts.
const DefaultCapacity = 20

var (
	ErrNoAcceptableHit   = errors.New("no acceptable hit result")
	ErrAnchorCreate      = errors.New("anchor creation failed")
	ErrAnchorNotTracking = errors.New("new anchor is not tracking")
)

// Source is the part of the engine the pool talks to.
type Source interface {
	tracking.TrackableSource
	tracking.AnchorSource
}

// ColoredAnchor is an anchor, the trackable it was attached to and the color
// its model is drawn with. The pool owns both handles.
type ColoredAnchor struct {
	ID        uuid.UUID
	Anchor    *tracking.Ref
	Trackable *tracking.Ref
	Color     colors.Color
}

func (a *ColoredAnchor) release() {
	a.Anchor.Release()
	a.Trackable.Release()
}

// Pool is not safe for concurrent use; it belongs to the render thread.
type Pool struct {
	capacity int
	anchors  []*ColoredAnchor
}

// NewPool returns an empty pool. capacity <= 0 selects DefaultCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{capacity: capacity}
}

func (p *Pool) Cap() int { return p.capacity }
func (p *Pool) Len() int { return len(p.anchors) }

// TryAttach picks the first hit that is acceptable for its trackable kind and
// creates an anchor there. Hits are expected nearest first.
//
// TryAttach takes ownership of every hit's trackable: the selected one moves
// into the returned ColoredAnchor and the rest are released. On error nothing
// is attached and all handles are released.
func (p *Pool) TryAttach(src Source, camera posemath.Pose, hits []tracking.HitResult) (*ColoredAnchor, error) {
	defer tracking.ReleaseHits(hits)

	i := selectHit(src, camera, hits)
	if i < 0 {
		return nil, ErrNoAcceptableHit
	}
	hit := hits[i]

	anchor, err := src.NewAnchorFromHit(hit)
	if err != nil {
		return nil, errors.Wrap(ErrAnchorCreate, err.Error())
	}
	if st := src.TrackingState(anchor); st != tracking.TrackingStateTracking {
		anchor.Release()
		return nil, errors.Wrapf(ErrAnchorNotTracking, "state %s", st)
	}

	hits[i].Trackable = nil
	ca := &ColoredAnchor{
		ID:        uuid.New(),
		Anchor:    anchor,
		Trackable: hit.Trackable,
	}
	ca.Color = ColorFor(src, ca.Trackable)
	return ca, nil
}

// selectHit returns the index of the first acceptable hit, or -1.
func selectHit(src Source, camera posemath.Pose, hits []tracking.HitResult) int {
	for i, h := range hits {
		switch src.Kind(h.Trackable) {
		case tracking.KindPlane:
			if !src.IsPoseInPolygon(h.Trackable, h.Pose) {
				continue
			}
			// Hits from behind the plane are rejected.
			if posemath.DistanceToPlane(h.Pose, camera) < 0 {
				continue
			}
			return i
		case tracking.KindPoint:
			if src.PointOrientationMode(h.Trackable) == tracking.OrientationEstimatedSurfaceNormal {
				return i
			}
		case tracking.KindInstantPlacementPoint:
			return i
		}
	}
	return -1
}

// Add appends a, evicting the oldest anchor first when the pool is full.
// Exactly one anchor is evicted per Add.
func (p *Pool) Add(a *ColoredAnchor) {
	if a == nil {
		return
	}
	if len(p.anchors) >= p.capacity {
		oldest := p.anchors[0]
		oldest.release()
		p.anchors[0] = nil
		p.anchors = p.anchors[1:]
		logging.Logger().Debug("anchor evicted", slog.String("id", oldest.ID.String()))
	}
	p.anchors = append(p.anchors, a)
}

// RefreshColors recomputes the color of every tracking anchor from the kind
// of its trackable. Instant placement points change color once they switch to
// full tracking.
func (p *Pool) RefreshColors(src Source) {
	for _, a := range p.anchors {
		if src.TrackingState(a.Anchor) == tracking.TrackingStateTracking {
			a.Color = ColorFor(src, a.Trackable)
		}
	}
}

// Tracking returns the anchors currently tracking, oldest first.
func (p *Pool) Tracking(src Source) []*ColoredAnchor {
	var out []*ColoredAnchor
	for _, a := range p.anchors {
		if src.TrackingState(a.Anchor) == tracking.TrackingStateTracking {
			out = append(out, a)
		}
	}
	return out
}

// Snapshot returns the anchor IDs in insertion order.
func (p *Pool) Snapshot() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.anchors))
	for i, a := range p.anchors {
		ids[i] = a.ID
	}
	return ids
}

// Clear releases every anchor.
func (p *Pool) Clear() {
	for i, a := range p.anchors {
		a.release()
		p.anchors[i] = nil
	}
	p.anchors = p.anchors[:0]
}

// ColorFor maps a trackable to the color its anchored model is drawn with.
func ColorFor(src Source, t *tracking.Ref) colors.Color {
	switch src.Kind(t) {
	case tracking.KindPoint:
		return colors.PointBlue
	case tracking.KindPlane:
		return colors.PlaneGreen
	case tracking.KindInstantPlacementPoint:
		switch src.InstantPlacementMethod(t) {
		case tracking.InstantPlacementFullTracking:
			return colors.InstantFullTrackingYellow
		case tracking.InstantPlacementScreenspaceWithApproximateDistance:
			return colors.InstantApproximateWhite
		}
	}
	return colors.Transparent
}

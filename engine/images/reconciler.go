// Package images maps tracked entities that have a stable identity
// (augmented images, faces) to long-lived records, and enumerates the
// transient ones (planes) that are redrawn straight from the engine.
package images

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// Source is the part of the engine the reconciler talks to.
type Source interface {
	tracking.TrackableSource
	tracking.AnchorSource
}

// Policy describes how one trackable kind is reconciled.
type Policy struct {
	Kind tracking.TrackableKind
	// Key returns the stable identifier of t.
	Key func(src Source, t *tracking.Ref) int64
	// WantAnchor makes the reconciler create an anchor at the center pose
	// when an entity is first seen tracking.
	WantAnchor bool
}

// Record is the persistent state for one tracked entity. Entity and Anchor
// are owned by the reconciler; Anchor is nil when the policy keeps none.
type Record struct {
	ID     uuid.UUID
	Key    int64
	Entity *tracking.Ref
	Anchor *tracking.Ref
}

func (r *Record) release() {
	r.Entity.Release()
	r.Anchor.Release()
}

// Reconciler keeps at most one record per key. A record exists from the
// first TRACKING observation of its key until a STOPPED observation.
type Reconciler struct {
	policy  Policy
	records map[int64]*Record
}

func New(p Policy) *Reconciler {
	return &Reconciler{policy: p, records: map[int64]*Record{}}
}

// NewImageReconciler keys augmented images by database index and anchors
// each one at its center pose.
func NewImageReconciler() *Reconciler {
	return New(Policy{
		Kind:       tracking.KindAugmentedImage,
		Key:        func(src Source, t *tracking.Ref) int64 { return int64(src.ImageIndex(t)) },
		WantAnchor: true,
	})
}

// NewFaceReconciler keys faces by engine identity. Faces are drawn from their
// own pose, so no anchor is kept.
func NewFaceReconciler() *Reconciler {
	return New(Policy{
		Kind: tracking.KindAugmentedFace,
		Key:  func(_ Source, t *tracking.Ref) int64 { return int64(t.ID()) },
	})
}

// Reconcile applies the trackables updated in the last frame. Every handle in
// the updated list is either moved into a record or released before return.
func (r *Reconciler) Reconcile(src Source) error {
	updated, err := src.UpdatedTrackables(r.policy.Kind)
	if err != nil {
		return errors.Wrapf(err, "updated %s trackables", r.policy.Kind)
	}
	for _, t := range updated {
		if !r.apply(src, t) {
			t.Release()
		}
	}
	return nil
}

// apply reports whether t was moved into a record.
func (r *Reconciler) apply(src Source, t *tracking.Ref) bool {
	key := r.policy.Key(src, t)
	log := logging.Logger().With(slog.String("kind", r.policy.Kind.String()), slog.Int64("key", key))

	switch src.TrackingState(t) {
	case tracking.TrackingStatePaused:
		// Detected but not yet tracked.
		log.Info("detected")
		return false

	case tracking.TrackingStateTracking:
		if _, ok := r.records[key]; ok {
			return false
		}
		rec := &Record{ID: uuid.New(), Key: key, Entity: t}
		if r.policy.WantAnchor {
			anchor, err := src.NewAnchor(t, src.CenterPose(t))
			if err != nil {
				log.Warn("anchor for tracked entity", slog.Any("err", err))
				return false
			}
			rec.Anchor = anchor
		}
		r.records[key] = rec
		log.Info("tracking", slog.String("record", rec.ID.String()))
		return true

	case tracking.TrackingStateStopped:
		if rec, ok := r.records[key]; ok {
			rec.release()
			delete(r.records, key)
			log.Info("stopped")
		}
	}
	return false
}

// Visible returns the records whose entity is tracking right now, in key
// order. The records stay owned by the reconciler.
func (r *Reconciler) Visible(src Source) []*Record {
	var out []*Record
	for _, key := range slices.Sorted(maps.Keys(r.records)) {
		rec := r.records[key]
		if src.TrackingState(rec.Entity) == tracking.TrackingStateTracking {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Reconciler) Len() int { return len(r.records) }

func (r *Reconciler) Has(key int64) bool {
	_, ok := r.records[key]
	return ok
}

// Clear releases every record.
func (r *Reconciler) Clear() {
	for key, rec := range r.records {
		rec.release()
		delete(r.records, key)
	}
}

// Planes returns every plane that is tracking and not subsumed by another
// plane. The caller owns the returned refs.
func Planes(src tracking.TrackableSource) ([]*tracking.Ref, error) {
	all, err := src.AllTrackables(tracking.KindPlane)
	if err != nil {
		return nil, errors.Wrap(err, "all planes")
	}
	planes := all[:0]
	for _, p := range all {
		if sub := src.AcquireSubsumedBy(p); sub != nil {
			sub.Release()
			p.Release()
			continue
		}
		if src.TrackingState(p) != tracking.TrackingStateTracking {
			p.Release()
			continue
		}
		planes = append(planes, p)
	}
	return planes, nil
}

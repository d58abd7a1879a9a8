package tracking

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRefReleasesOnce(t *testing.T) {
	calls := map[ID]int{}
	r := NewRef(7, func(id ID) { calls[id]++ })

	assert.False(t, r.Released())
	r.Release()
	r.Release()
	assert.True(t, r.Released())
	assert.Equal(t, 1, calls[7])
}

func TestNilRef(t *testing.T) {
	var r *Ref
	assert.NotPanics(t, r.Release)
	assert.True(t, r.Released())
	assert.Equal(t, "Ref(nil)", r.String())
}

func TestReleaseHits(t *testing.T) {
	released := 0
	rel := func(ID) { released++ }
	hits := []HitResult{
		{ID: 1, Trackable: NewRef(10, rel)},
		{ID: 2, Trackable: nil},
		{ID: 3, Trackable: NewRef(11, rel)},
	}
	ReleaseHits(hits)
	assert.Equal(t, 2, released)
}

func TestErrEngineCallWrapping(t *testing.T) {
	err := errors.Wrap(ErrEngineCall, "update")
	assert.True(t, errors.Is(err, ErrEngineCall))
	assert.Equal(t, "update: tracking engine call failed", err.Error())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "TRACKING", TrackingStateTracking.String())
	assert.Equal(t, "STOPPED", TrackingStateStopped.String())
	assert.Equal(t, "plane", KindPlane.String())
	assert.Equal(t, "forehead_left", RegionForeheadLeft.String())
	assert.True(t, Mesh{Vertices: []float32{0}}.Empty())
}

func TestTextRoundTrip(t *testing.T) {
	var s TrackingState
	assert.NoError(t, s.UnmarshalText([]byte("paused")))
	assert.Equal(t, TrackingStatePaused, s)
	assert.Error(t, s.UnmarshalText([]byte("lost")))

	var k TrackableKind
	assert.NoError(t, k.UnmarshalText([]byte("instant_placement_point")))
	assert.Equal(t, KindInstantPlacementPoint, k)
	assert.Error(t, k.UnmarshalText([]byte("not_valid")))

	r, err := ParseFaceRegion("nose_tip")
	assert.NoError(t, err)
	assert.Equal(t, RegionNoseTip, r)
}

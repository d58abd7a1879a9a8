package replay

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/tracking"
)

const sampleScript = `{
  "depth_supported": true,
  "frames": [
    {"camera": {"state": "TRACKING", "pose": [0,0,0,1, 0,1.5,0]},
     "images": [{"index": 3, "state": "PAUSED"}],
     "planes": [{"id": 1, "state": "TRACKING", "polygon": [-1,-1, 1,-1, 1,1, -1,1]}]},
    {"camera": {"state": "TRACKING", "pose": [0,0,0,1, 0,1.5,0]},
     "light": [0.9, 0.8, 0.7, 0.5],
     "point_cloud": [0,0,0,1],
     "images": [{"index": 3, "state": "TRACKING", "extent_x": 0.2, "extent_z": 0.3}],
     "planes": [{"id": 2, "state": "TRACKING", "subsumed_by": 1}]},
    {"fail": true, "camera": {"state": "PAUSED"}}
  ]
}`

func loadSample(t *testing.T) *Engine {
	t.Helper()
	s, err := Load(strings.NewReader(sampleScript))
	require.NoError(t, err)
	e := New(s)
	require.NoError(t, e.Resume())
	return e
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader(`{"frames": [{"camra": {}}]}`))
	assert.Error(t, err)
}

func TestLoadFileChecksExtension(t *testing.T) {
	_, err := LoadFile("script.yaml")
	assert.ErrorContains(t, err, ".json")
}

func TestUpdateRequiresResume(t *testing.T) {
	e := New(nil)
	err := e.Update()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tracking.ErrEngineCall))
}

func TestUpdatedVersusAll(t *testing.T) {
	e := loadSample(t)
	require.NoError(t, e.Update())

	updated, err := e.UpdatedTrackables(tracking.KindAugmentedImage)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, tracking.TrackingStatePaused, e.TrackingState(updated[0]))
	assert.Equal(t, 3, e.ImageIndex(updated[0]))
	tracking.ReleaseAll(updated)

	require.NoError(t, e.Update())
	planes, err := e.UpdatedTrackables(tracking.KindPlane)
	require.NoError(t, err)
	assert.Len(t, planes, 1)
	tracking.ReleaseAll(planes)

	all, err := e.AllTrackables(tracking.KindPlane)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sub := e.AcquireSubsumedBy(all[1])
	require.NotNil(t, sub)
	assert.Equal(t, all[0].ID(), sub.ID())
	assert.Nil(t, e.AcquireSubsumedBy(all[0]))
	sub.Release()
	tracking.ReleaseAll(all)

	assert.Zero(t, e.OutstandingTotal())
	assert.Zero(t, e.DoubleReleases())
}

func TestFrameData(t *testing.T) {
	e := loadSample(t)
	require.NoError(t, e.Update())

	state, _ := e.LightEstimate()
	assert.Equal(t, tracking.LightEstimateNotValid, state)
	_, err := e.AcquirePointCloud()
	assert.True(t, errors.Is(err, tracking.ErrUnavailable))

	require.NoError(t, e.Update())
	state, cc := e.LightEstimate()
	assert.Equal(t, tracking.LightEstimateValid, state)
	assert.Equal(t, [4]float32{0.9, 0.8, 0.7, 0.5}, cc)

	pc, err := e.AcquirePointCloud()
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1}, e.PointCloudPoints(pc))
	pc.Release()

	cam, err := e.AcquireCamera()
	require.NoError(t, err)
	assert.Equal(t, tracking.TrackingStateTracking, e.TrackingState(cam))
	assert.InDelta(t, 1.5, e.CameraPose(cam).Translation.Y, 1e-6)
	cam.Release()

	err = e.Update()
	require.Error(t, err)
	assert.Equal(t, 2, e.Frame())
}

func TestHoldsLastFrameAfterScriptEnds(t *testing.T) {
	e := New(&Script{Frames: []Frame{{
		Camera: Camera{State: tracking.TrackingStateTracking},
		Images: []Image{{Index: 1, State: tracking.TrackingStateTracking}},
	}}})
	require.NoError(t, e.Resume())
	require.NoError(t, e.Update())
	require.NoError(t, e.Update())

	updated, err := e.UpdatedTrackables(tracking.KindAugmentedImage)
	require.NoError(t, err)
	assert.Empty(t, updated)
	all, err := e.AllTrackables(tracking.KindAugmentedImage)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	tracking.ReleaseAll(all)
}

func TestPlaneHitsNearestFirst(t *testing.T) {
	square := []float32{-1, -1, 1, -1, 1, 1, -1, 1}
	e := New(&Script{Frames: []Frame{{
		Camera: Camera{Pose: [7]float32{0, 0, 0, 1, 0, 1, 0}},
		Planes: []Plane{
			{ID: 1, Pose: [7]float32{0, 0, 0, 1, 0, -3, 0}, Polygon: square},
			{ID: 2, Pose: [7]float32{0, 0, 0, 1, 0, 0, 0}, Polygon: square},
			{ID: 3, State: tracking.TrackingStatePaused, Polygon: square},
		},
	}}})
	e.SetDisplayGeometry(0, 100, 100)
	require.NoError(t, e.Resume())
	require.NoError(t, e.Update())

	hits, err := e.HitTest(50, 50)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	near, _ := e.EntityID(tracking.KindPlane, 2)
	assert.Equal(t, near, hits[0].Trackable.ID())
	assert.Less(t, hits[0].Distance, hits[1].Distance)
	assert.True(t, e.IsPoseInPolygon(hits[0].Trackable, hits[0].Pose))

	outside := posemath.Pose{Translation: hits[0].Pose.Translation}
	outside.Translation.X = 5
	assert.False(t, e.IsPoseInPolygon(hits[0].Trackable, outside))

	tracking.ReleaseHits(hits)
	assert.Zero(t, e.OutstandingTotal())
}

func TestQueuedAndInstantHits(t *testing.T) {
	e := New(&Script{Frames: []Frame{{}}})
	require.NoError(t, e.Resume())
	require.NoError(t, e.Update())

	e.QueueHits(HitSpec{Kind: tracking.KindPoint, Entity: 9})
	hits, err := e.HitTest(0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, tracking.KindPoint, e.Kind(hits[0].Trackable))
	tracking.ReleaseHits(hits)

	hits, err = e.HitTestInstantPlacement(0.5, 0.5, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, tracking.KindInstantPlacementPoint, e.Kind(hits[0].Trackable))
	assert.Equal(t, tracking.InstantPlacementScreenspaceWithApproximateDistance,
		e.InstantPlacementMethod(hits[0].Trackable))
	assert.InDelta(t, 1, hits[0].Distance, 1e-5)

	anchor, err := e.NewAnchorFromHit(hits[0])
	require.NoError(t, err)
	assert.Equal(t, []tracking.ID{anchor.ID()}, e.AnchorsCreated())
	anchor.Release()
	tracking.ReleaseHits(hits)
}

func TestAnchorKnobs(t *testing.T) {
	e := New(nil)
	img := tracking.NewRef(5, nil)

	e.FailAnchors = 1
	_, err := e.NewAnchor(img, posemath.IdentityPose())
	assert.True(t, errors.Is(err, tracking.ErrEngineCall))

	e.AnchorState = tracking.TrackingStatePaused
	a, err := e.NewAnchor(img, posemath.IdentityPose())
	require.NoError(t, err)
	assert.Equal(t, tracking.TrackingStatePaused, e.TrackingState(a))
	e.SetState(a.ID(), tracking.TrackingStateTracking)
	assert.Equal(t, tracking.TrackingStateTracking, e.TrackingState(a))
	a.Release()
	assert.Equal(t, 1, e.Released(a.ID()))
}

func TestTransformCoordinatesRotation(t *testing.T) {
	e := New(nil)
	got := e.TransformCoordinates2D(posemath.NDCBasis)
	assert.Equal(t, [6]float32{0.5, 0.5, 1, 0.5, 0.5, 0}, got)

	e.SetDisplayGeometry(1, 10, 20)
	got = e.TransformCoordinates2D(posemath.NDCBasis)
	assert.Equal(t, [6]float32{0.5, 0.5, 0.5, 0, 0, 0.5}, got)
	assert.Equal(t, 2, e.Calls("TransformCoordinates2D"))
}

func TestGeometryChangeReportedByNextGoodFrame(t *testing.T) {
	e := New(&Script{Frames: []Frame{{}, {Fail: true}, {}, {}}})
	require.NoError(t, e.Resume())
	require.NoError(t, e.Update())
	assert.False(t, e.DisplayGeometryChanged())

	e.SetDisplayGeometry(1, 10, 20)
	require.Error(t, e.Update())
	require.NoError(t, e.Update())
	assert.True(t, e.DisplayGeometryChanged(), "pending change kept across the failed frame")

	require.NoError(t, e.Update())
	assert.False(t, e.DisplayGeometryChanged())
}

func TestConfigureValidatesImages(t *testing.T) {
	e := New(nil)
	err := e.Configure(tracking.Config{ImageDatabase: &tracking.ImageDatabase{
		Images: []tracking.DatabaseImage{{Name: "bad", Width: 2, Height: 2, Stride: 2, Gray: []byte{1}}},
	}})
	assert.Error(t, err)

	require.NoError(t, e.Configure(tracking.Config{DepthMode: tracking.DepthModeAutomatic}))
	cfg, n := e.Config()
	assert.Equal(t, tracking.DepthModeAutomatic, cfg.DepthMode)
	assert.Equal(t, 1, n)
}

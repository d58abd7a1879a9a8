package ar

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/grove-ar/engine/assets"
	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/core"
	"github.com/hubastard/grove-ar/engine/scene"
	"github.com/hubastard/grove-ar/engine/tracking"
	"github.com/hubastard/grove-ar/engine/tracking/replay"
)

// recorder is a core.Renderer that records draw submissions.
type recorder struct {
	initErr    error
	calls      []string
	background []bool
	correction [][4]float32
	images     []core.AugmentedImage
	faces      []core.Face
	objects    []core.Object
	texts      []string
}

func (r *recorder) Init() error              { return r.initErr }
func (r *recorder) Resize(w, h int)          {}
func (r *recorder) Clear(_, _, _, _ float32) {}
func (r *recorder) Shutdown()                {}

func (r *recorder) DrawBackground(f *scene.FrameContext, depth bool) {
	r.calls = append(r.calls, "background")
	r.background = append(r.background, depth)
}

func (r *recorder) DrawAugmentedImage(f *scene.FrameContext, img core.AugmentedImage) {
	r.calls = append(r.calls, "image")
	r.correction = append(r.correction, f.ColorCorrection)
	r.images = append(r.images, img)
}

func (r *recorder) DrawFace(f *scene.FrameContext, fc core.Face) {
	r.calls = append(r.calls, "face")
	r.faces = append(r.faces, fc)
}

func (r *recorder) DrawPlane(f *scene.FrameContext, p core.Plane) {
	r.calls = append(r.calls, "plane")
}

func (r *recorder) DrawObject(f *scene.FrameContext, o core.Object) {
	r.calls = append(r.calls, "object")
	r.objects = append(r.objects, o)
}

func (r *recorder) DrawPointCloud(f *scene.FrameContext, points []float32) {
	r.calls = append(r.calls, "point_cloud")
}

func (r *recorder) DrawText(text string, x, y float32, c colors.Color) {
	r.texts = append(r.texts, text)
}

func (r *recorder) reset() { *r = recorder{initErr: r.initErr} }

var square = []float32{-1, -1, 1, -1, 1, 1, -1, 1}

func trackingFrame() replay.Frame {
	light := [4]float32{0.9, 0.8, 0.7, 0.5}
	return replay.Frame{
		Camera:     replay.Camera{Pose: [7]float32{0, 0, 0, 1, 0, 1, 0}},
		Light:      &light,
		PointCloud: []float32{0, 0, 0, 1},
		Images:     []replay.Image{{Index: 3, ExtentX: 0.2, ExtentZ: 0.3}},
		Planes:     []replay.Plane{{ID: 1, Polygon: square}},
	}
}

// start returns a resumed app over a replay engine with a 100x100 display.
func start(t *testing.T, s *replay.Script, opts Options) (*App, *replay.Engine, *recorder) {
	t.Helper()
	e := replay.New(s)
	app := New(func() (tracking.Engine, error) { return e, nil }, opts)
	r := &recorder{}
	require.True(t, app.OnSurfaceCreated(r))
	app.OnDisplayGeometryChanged(0, 100, 100)
	require.NoError(t, app.OnResume())
	require.Equal(t, StateResumed, app.State())
	return app, e, r
}

func assertNoLeaks(t *testing.T, app *App, e *replay.Engine) {
	t.Helper()
	app.Destroy()
	assert.Zero(t, e.OutstandingTotal(), "outstanding %v", e.Outstanding())
	assert.Zero(t, e.DoubleReleases())
}

func TestLifecycle(t *testing.T) {
	e := replay.New(nil)
	created := 0
	app := New(func() (tracking.Engine, error) { created++; return e, nil }, Options{})

	require.NoError(t, app.OnResume())
	assert.Equal(t, StateUninitialized, app.State(), "resume waits for the surface")
	assert.Zero(t, created)

	require.True(t, app.OnSurfaceCreated(&recorder{}))
	assert.Equal(t, StateResumed, app.State())
	assert.True(t, e.Resumed())

	require.NoError(t, app.OnResume())
	assert.Equal(t, 1, e.Calls("Resume"))

	app.OnPause()
	app.OnPause()
	assert.Equal(t, StatePaused, app.State())
	assert.Equal(t, 1, e.Calls("Pause"))

	require.NoError(t, app.OnResume())
	assert.Equal(t, StateResumed, app.State())
	_, configured := e.Config()
	assert.Equal(t, 1, configured)
	assert.Equal(t, 1, created)

	app.Destroy()
	app.Destroy()
	assert.Equal(t, StateDestroyed, app.State())
	assert.Equal(t, 1, e.Calls("Destroy"))
	assert.True(t, errors.Is(app.OnResume(), ErrDestroyed))
}

func TestPauseBeforeSurfaceCancelsResume(t *testing.T) {
	e := replay.New(nil)
	app := New(func() (tracking.Engine, error) { return e, nil }, Options{})
	require.NoError(t, app.OnResume())
	app.OnPause()
	require.True(t, app.OnSurfaceCreated(&recorder{}))
	assert.Equal(t, StateUninitialized, app.State())
	assert.Zero(t, e.Calls("Resume"))
}

func TestSurfaceInitFailure(t *testing.T) {
	app := New(func() (tracking.Engine, error) { return replay.New(nil), nil }, Options{})
	assert.False(t, app.OnSurfaceCreated(&recorder{initErr: errors.New("no GL")}))
	app.OnDrawFrame(false, false)
}

func TestResumeFailuresAreReturned(t *testing.T) {
	e := replay.New(nil)
	e.ConfigureErr = errors.New("unsupported")
	app := New(func() (tracking.Engine, error) { return e, nil }, Options{})
	require.True(t, app.OnSurfaceCreated(&recorder{}))
	err := app.OnResume()
	require.Error(t, err)
	assert.True(t, errors.Is(err, tracking.ErrEngineCall))
	assert.Equal(t, StateUninitialized, app.State())

	e.ConfigureErr = nil
	e.ResumeErr = errors.New("camera busy")
	err = app.OnResume()
	assert.True(t, errors.Is(err, tracking.ErrEngineCall))
	assert.Equal(t, StateConfigured, app.State())

	e.ResumeErr = nil
	require.NoError(t, app.OnResume())
	assert.Equal(t, StateResumed, app.State())
}

func TestConfigureAndSettings(t *testing.T) {
	app, e, _ := start(t, &replay.Script{DepthSupported: true}, Options{FaceTracking: true})
	cfg, n := e.Config()
	assert.Equal(t, 1, n)
	assert.Equal(t, tracking.DepthModeAutomatic, cfg.DepthMode)
	assert.Equal(t, tracking.InstantPlacementDisabled, cfg.InstantPlacementMode)
	assert.Equal(t, tracking.FaceMode3DMesh, cfg.FaceMode)
	assert.True(t, app.IsDepthSupported())

	app.OnSettingsChange(true)
	cfg, n = e.Config()
	assert.Equal(t, 2, n)
	assert.Equal(t, tracking.InstantPlacementLocalYUp, cfg.InstantPlacementMode)

	app.OnPause()
	app.OnSettingsChange(false)
	cfg, n = e.Config()
	assert.Equal(t, 3, n)
	assert.Equal(t, tracking.InstantPlacementDisabled, cfg.InstantPlacementMode)
	assert.Equal(t, StatePaused, app.State())
}

func TestSettingsBeforeSessionAreStored(t *testing.T) {
	e := replay.New(nil)
	app := New(func() (tracking.Engine, error) { return e, nil }, Options{})
	app.OnSettingsChange(true)
	require.True(t, app.OnSurfaceCreated(&recorder{}))
	require.NoError(t, app.OnResume())
	cfg, n := e.Config()
	assert.Equal(t, 1, n)
	assert.Equal(t, tracking.InstantPlacementLocalYUp, cfg.InstantPlacementMode)
	assert.Equal(t, tracking.DepthModeDisabled, cfg.DepthMode)
}

func TestDrawOrder(t *testing.T) {
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{trackingFrame()}}, Options{})

	app.OnDrawFrame(false, false)
	app.OnTouched(50, 50)
	require.Equal(t, 1, app.Anchors().Len())
	r.reset()

	app.OnDrawFrame(true, true)
	want := []string{"background", "image", "plane", "object", "point_cloud"}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Fatalf("draw order (-want +got):\n%s", diff)
	}
	assert.Equal(t, []bool{false}, r.background, "depth visualization needs depth support")
	assert.False(t, r.objects[0].DepthOcclusion)
	assert.Equal(t, colors.PlaneGreen, r.objects[0].Color)
	assert.Equal(t, [4]float32{0.9, 0.8, 0.7, 0.5}, r.correction[0])
	assert.Equal(t, 3, r.images[0].Index)
	assert.Equal(t, colors.Tint(3, 0.1), r.images[0].Tint)
	assert.InDelta(t, 0.2, r.images[0].ExtentX, 1e-6)
	assert.True(t, app.HasDetectedPlanes())

	assertNoLeaks(t, app, e)
}

func TestFacesDrawnAfterImagesWhenEnabled(t *testing.T) {
	frame := trackingFrame()
	frame.Faces = []replay.Face{{
		ID:      1,
		Regions: map[string][7]float32{"nose_tip": {0, 0, 0, 1, 0, 0, 1}},
		Mesh:    &tracking.Mesh{Vertices: []float32{0, 0, 0}, Normals: []float32{0, 1, 0}, UVs: []float32{0, 0}, Indices: []uint16{0}},
	}}
	app, e, r := start(t, &replay.Script{DepthSupported: true, Frames: []replay.Frame{frame}}, Options{FaceTracking: true})

	app.OnDrawFrame(true, false)
	want := []string{"background", "image", "face", "plane", "point_cloud"}
	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Fatalf("draw order (-want +got):\n%s", diff)
	}
	assert.Equal(t, []bool{true}, r.background)
	require.Len(t, r.faces, 1)
	assert.InDelta(t, 1, r.faces[0].Regions[0].At(2, 3), 1e-6)
	assert.False(t, r.faces[0].Mesh.Empty())

	assertNoLeaks(t, app, e)
}

func TestCameraNotTrackingDrawsBackgroundOnly(t *testing.T) {
	frame := trackingFrame()
	frame.Camera.State = tracking.TrackingStatePaused
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{frame}}, Options{})

	app.OnDrawFrame(false, false)
	assert.Equal(t, []string{"background"}, r.calls)
	assert.Equal(t, 1, app.images.Len(), "records follow the engine while nothing is drawn")
	assertNoLeaks(t, app, e)
}

func TestImageStoppedWhileCameraLostIsReleased(t *testing.T) {
	lost := trackingFrame()
	lost.Camera.State = tracking.TrackingStatePaused
	lost.Images = []replay.Image{{Index: 3, State: tracking.TrackingStateStopped}}
	back := trackingFrame()
	back.Images = nil
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{trackingFrame(), lost, back}}, Options{})

	app.OnDrawFrame(false, false)
	require.Equal(t, 1, app.images.Len())
	anchor := e.AnchorsCreated()[0]

	app.OnDrawFrame(false, false)
	assert.Zero(t, app.images.Len())
	assert.NotContains(t, e.Outstanding(), anchor, "image anchor released on STOPPED")

	r.calls = nil
	app.OnDrawFrame(false, false)
	assert.NotContains(t, r.calls, "image")
	assert.Zero(t, app.images.Len())
	assertNoLeaks(t, app, e)
}

func TestStatusMessage(t *testing.T) {
	lost := trackingFrame()
	lost.Camera.State = tracking.TrackingStatePaused
	lost.Planes = nil
	searching := trackingFrame()
	searching.Planes = nil
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{lost, searching, trackingFrame()}}, Options{})

	for range 3 {
		app.OnDrawFrame(false, false)
	}
	assert.Equal(t, []string{MessageNotTracking, MessageSearching}, r.texts)
	assert.Empty(t, app.StatusMessage())

	app.OnPause()
	assert.Empty(t, app.StatusMessage())
	assertNoLeaks(t, app, e)
}

func TestUpdateFailureSkipsFrame(t *testing.T) {
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{{Fail: true}, trackingFrame()}}, Options{})

	app.OnDrawFrame(false, false)
	assert.Empty(t, r.calls)
	assert.Equal(t, StateResumed, app.State())

	app.OnDrawFrame(false, false)
	assert.Equal(t, []string{"background", "image", "plane", "point_cloud"}, r.calls)
	assertNoLeaks(t, app, e)
}

func TestInvalidLightFallsBackToNeutral(t *testing.T) {
	frame := trackingFrame()
	frame.Light = nil
	frame.PointCloud = nil
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{frame}}, Options{})

	app.OnDrawFrame(false, false)
	assert.Equal(t, scene.NeutralColorCorrection, r.correction[0])
	assert.NotContains(t, r.calls, "point_cloud")
	assertNoLeaks(t, app, e)
}

func TestImageLifecycleThroughFrames(t *testing.T) {
	s := &replay.Script{}
	for i := 0; i < 5; i++ {
		f := trackingFrame()
		f.Planes = nil
		s.Frames = append(s.Frames, f)
	}
	stopped := trackingFrame()
	stopped.Planes = nil
	stopped.Images[0].State = tracking.TrackingStateStopped
	s.Frames = append(s.Frames, stopped)

	app, e, r := start(t, s, Options{})
	for i := 0; i < 5; i++ {
		r.reset()
		app.OnDrawFrame(false, false)
		assert.Contains(t, r.calls, "image", "frame %d", i+1)
	}
	created := e.AnchorsCreated()
	require.Len(t, created, 1)

	r.reset()
	app.OnDrawFrame(false, false)
	assert.NotContains(t, r.calls, "image")
	assert.Equal(t, 1, e.Released(created[0]))
	assert.Len(t, e.AnchorsCreated(), 1)
	assertNoLeaks(t, app, e)
}

func TestTwentyOneTouchesKeepTwenty(t *testing.T) {
	frame := trackingFrame()
	frame.Images = nil
	app, e, _ := start(t, &replay.Script{Frames: []replay.Frame{frame}}, Options{})
	app.OnDrawFrame(false, false)

	for i := 0; i < 21; i++ {
		app.OnTouched(50, 50)
	}
	created := e.AnchorsCreated()
	require.Len(t, created, 21)
	assert.Equal(t, 20, app.Anchors().Len())
	assert.Equal(t, 1, e.Released(created[0]))
	assert.Zero(t, e.Released(created[20]))
	assertNoLeaks(t, app, e)
}

func TestInstantPlacementTouch(t *testing.T) {
	frame := trackingFrame()
	frame.Planes = nil
	app, e, r := start(t, &replay.Script{Frames: []replay.Frame{frame}}, Options{InstantPlacement: true})
	app.OnDrawFrame(false, false)

	app.OnTouched(50, 50)
	require.Equal(t, 1, app.Anchors().Len())
	assert.Equal(t, 1, e.Calls("HitTestInstantPlacement"))
	assert.Zero(t, e.Calls("HitTest"))

	r.reset()
	app.OnDrawFrame(false, false)
	require.Len(t, r.objects, 1)
	assert.Equal(t, colors.InstantApproximateWhite, r.objects[0].Color)
	assertNoLeaks(t, app, e)
}

func TestTouchIgnoredWhenNotResumed(t *testing.T) {
	app, e, _ := start(t, &replay.Script{Frames: []replay.Frame{trackingFrame()}}, Options{})
	app.OnDrawFrame(false, false)
	app.OnPause()
	app.OnTouched(50, 50)
	assert.Zero(t, e.Calls("HitTest"))
	assertNoLeaks(t, app, e)
}

func TestUVRecomputedOnlyOnGeometryChange(t *testing.T) {
	app, e, _ := start(t, &replay.Script{Frames: []replay.Frame{trackingFrame()}}, Options{})
	for i := 0; i < 4; i++ {
		app.OnDrawFrame(false, false)
	}
	assert.Equal(t, 1, e.Calls("TransformCoordinates2D"))

	app.OnDisplayGeometryChanged(1, 100, 100)
	for i := 0; i < 4; i++ {
		app.OnDrawFrame(false, false)
	}
	assert.Equal(t, 2, e.Calls("TransformCoordinates2D"))
	assertNoLeaks(t, app, e)
}

func TestGeometryChangeSurvivesFailedFrame(t *testing.T) {
	app, e, _ := start(t, &replay.Script{Frames: []replay.Frame{
		trackingFrame(),
		{Fail: true},
		trackingFrame(),
	}}, Options{})
	app.OnDrawFrame(false, false)
	before := app.uv.UV()

	app.OnDisplayGeometryChanged(1, 100, 100)
	app.OnDrawFrame(false, false)
	assert.Equal(t, 1, e.Calls("TransformCoordinates2D"), "failed frame draws nothing")

	app.OnDrawFrame(false, false)
	assert.Equal(t, 2, e.Calls("TransformCoordinates2D"))
	assert.Equal(t, 2, app.uv.Recomputes())
	assert.NotEqual(t, before, app.uv.UV(), "rotated display samples the camera image differently")
	assertNoLeaks(t, app, e)
}

func pngAsset(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.Gray{Y: 200})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageDatabaseFromAssets(t *testing.T) {
	store := assets.NewStore(fstest.MapFS{
		"sample_database.imgdb": {Data: []byte{0xAB}},
		"default.png":           {Data: pngAsset(t)},
	})

	_, e, _ := start(t, nil, Options{Assets: store, Database: DatabaseOptions{Path: "sample_database.imgdb"}})
	cfg, _ := e.Config()
	require.NotNil(t, cfg.ImageDatabase)
	assert.Equal(t, []byte{0xAB}, cfg.ImageDatabase.Serialized)

	_, e, _ = start(t, nil, Options{Assets: store, Database: DatabaseOptions{UseSingleImage: true, SingleImage: "default.png"}})
	cfg, _ = e.Config()
	require.Len(t, cfg.ImageDatabase.Images, 1)
	img := cfg.ImageDatabase.Images[0]
	assert.Equal(t, "default.png", img.Name)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 4, img.Stride)
	assert.InDelta(t, 200, img.Gray[1*4+1], 1)
}

func TestMissingDatabaseFailsResume(t *testing.T) {
	store := assets.NewStore(fstest.MapFS{})
	app := New(func() (tracking.Engine, error) { return replay.New(nil), nil },
		Options{Assets: store, Database: DatabaseOptions{Path: "sample_database.imgdb"}})
	require.True(t, app.OnSurfaceCreated(&recorder{}))
	err := app.OnResume()
	assert.True(t, errors.Is(err, assets.ErrResourceLoad))
	assert.Equal(t, StateUninitialized, app.State())
}

// Package ar drives one AR session: it owns the session lifecycle, runs the
// per-frame reconciliation and issues the draw submissions in a fixed order.
//
// All methods must be called from the render thread. Host events (touch,
// settings) reach it through core.EventQueue.
package ar

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/anchors"
	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/core"
	"github.com/hubastard/grove-ar/engine/face"
	"github.com/hubastard/grove-ar/engine/images"
	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/profiler"
	"github.com/hubastard/grove-ar/engine/scene"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// Status lines shown over the camera image.
const (
	MessageSearching   = "Searching for surfaces..."
	MessageNotTracking = "Tracking lost. Move the device slowly."
)

const statusMargin = 16

// ErrDestroyed is returned when resuming a destroyed app.
var ErrDestroyed = errors.New("session destroyed")

// SessionFactory creates the tracking session on first resume.
type SessionFactory func() (tracking.Engine, error)

// Options tune the app. Zero values select the defaults.
type Options struct {
	MaxAnchors int
	// ApproximateDistance is the distance in meters used for instant
	// placement before depth is known.
	ApproximateDistance float32
	TintIntensity       float32
	Near, Far           float32
	FaceTracking        bool
	InstantPlacement    bool

	// Assets is used to load the image database; nil disables image
	// tracking.
	Assets   AssetSource
	Database DatabaseOptions
}

func (o *Options) defaults() {
	if o.MaxAnchors <= 0 {
		o.MaxAnchors = anchors.DefaultCapacity
	}
	if o.ApproximateDistance <= 0 {
		o.ApproximateDistance = 1
	}
	if o.TintIntensity <= 0 {
		o.TintIntensity = 0.1
	}
	if o.Near <= 0 {
		o.Near = 0.1
	}
	if o.Far <= o.Near {
		o.Far = 100
	}
}

type geometry struct {
	rotation, width, height int
	set                     bool
}

// App is the frame orchestrator.
type App struct {
	opts       Options
	newSession SessionFactory

	session  tracking.Engine
	state    State
	renderer core.Renderer
	database *tracking.ImageDatabase

	surfaceReady  bool
	resumePending bool
	geometry      geometry

	instantPlacement  bool
	hasDetectedPlanes bool
	cameraTracking    bool

	uv     *scene.UVCache
	pool   *anchors.Pool
	images *images.Reconciler
	faces  *images.Reconciler
}

func New(newSession SessionFactory, opts Options) *App {
	opts.defaults()
	return &App{
		opts:             opts,
		newSession:       newSession,
		instantPlacement: opts.InstantPlacement,
		uv:               scene.NewUVCache(),
		pool:             anchors.NewPool(opts.MaxAnchors),
		images:           images.NewImageReconciler(),
		faces:            images.NewFaceReconciler(),
	}
}

func (a *App) State() State { return a.state }

// HasDetectedPlanes reports whether a tracking plane has been drawn since
// the session was created.
func (a *App) HasDetectedPlanes() bool { return a.hasDetectedPlanes }

func (a *App) IsDepthSupported() bool {
	return a.session != nil && a.session.IsDepthModeSupported(tracking.DepthModeAutomatic)
}

// StatusMessage is the hint for the current frame, or "" when there is
// nothing to say.
func (a *App) StatusMessage() string {
	switch {
	case a.state != StateResumed:
		return ""
	case !a.cameraTracking:
		return MessageNotTracking
	case !a.hasDetectedPlanes:
		return MessageSearching
	}
	return ""
}

// Anchors exposes the anchor pool.
func (a *App) Anchors() *anchors.Pool { return a.pool }

// OnSurfaceCreated initializes the renderer. It returns false when rendering
// is unavailable. A resume requested before the surface existed runs now.
func (a *App) OnSurfaceCreated(r core.Renderer) bool {
	if err := r.Init(); err != nil {
		logging.Logger().Error("renderer init", slog.Any("err", err))
		return false
	}
	a.renderer = r
	a.surfaceReady = true
	if a.resumePending {
		a.resumePending = false
		if err := a.OnResume(); err != nil {
			logging.Logger().Error("deferred resume", slog.Any("err", err))
			return false
		}
	}
	return true
}

// OnDisplayGeometryChanged records the display geometry and forwards it to
// the session if there is one. The cached UV transform is recomputed on the
// next drawn frame even if the engine's own flag is lost to a failed update.
func (a *App) OnDisplayGeometryChanged(rotation, width, height int) {
	a.geometry = geometry{rotation: rotation, width: width, height: height, set: true}
	a.uv.Invalidate()
	if a.session != nil {
		a.session.SetDisplayGeometry(rotation, width, height)
	}
}

// OnResume creates and configures the session on first use, then resumes
// it. Resuming a resumed session is a no-op; resuming before the surface
// exists is deferred until OnSurfaceCreated.
func (a *App) OnResume() error {
	switch {
	case a.state == StateDestroyed:
		return ErrDestroyed
	case a.state == StateResumed:
		return nil
	case !a.surfaceReady:
		a.resumePending = true
		logging.Logger().Info("resume deferred until surface is created")
		return nil
	}

	if a.state == StateUninitialized {
		if err := a.initSession(); err != nil {
			return err
		}
	}
	if err := a.session.Resume(); err != nil {
		return errors.Wrap(err, "resume session")
	}
	a.state = StateResumed
	logging.Logger().Info("session resumed")
	return nil
}

func (a *App) initSession() error {
	if a.session == nil {
		s, err := a.newSession()
		if err != nil {
			return errors.Wrap(err, "create session")
		}
		a.session = s
	}
	if a.database == nil && a.opts.Assets != nil {
		db, err := LoadImageDatabase(a.opts.Assets, a.opts.Database)
		if err != nil {
			return err
		}
		a.database = db
	}
	if err := a.configure(); err != nil {
		return err
	}
	a.state = StateConfigured
	if g := a.geometry; g.set {
		a.session.SetDisplayGeometry(g.rotation, g.width, g.height)
	}
	return nil
}

func (a *App) configure() error {
	cfg := tracking.Config{ImageDatabase: a.database}
	if a.IsDepthSupported() {
		cfg.DepthMode = tracking.DepthModeAutomatic
	}
	if a.instantPlacement {
		cfg.InstantPlacementMode = tracking.InstantPlacementLocalYUp
	}
	if a.opts.FaceTracking {
		cfg.FaceMode = tracking.FaceMode3DMesh
	}
	if err := a.session.Configure(cfg); err != nil {
		return errors.Wrap(err, "configure session")
	}
	return nil
}

// OnPause pauses a resumed session. Anything else is a no-op, including a
// resume that is still waiting for the surface.
func (a *App) OnPause() {
	a.resumePending = false
	if a.state != StateResumed {
		return
	}
	if err := a.session.Pause(); err != nil {
		logging.Logger().Warn("pause session", slog.Any("err", err))
	}
	a.state = StatePaused
	logging.Logger().Info("session paused")
}

// OnSettingsChange applies the instant placement toggle, reconfiguring a
// live session.
func (a *App) OnSettingsChange(instantPlacement bool) {
	a.instantPlacement = instantPlacement
	if a.session == nil || a.state == StateUninitialized || a.state == StateDestroyed {
		return
	}
	if err := a.configure(); err != nil {
		logging.Logger().Warn("reconfigure session", slog.Any("err", err))
	}
}

// Destroy releases every held handle and the session. Later calls are
// no-ops.
func (a *App) Destroy() {
	if a.state == StateDestroyed {
		return
	}
	a.pool.Clear()
	a.images.Clear()
	a.faces.Clear()
	if a.session != nil {
		a.session.Destroy()
		a.session = nil
	}
	a.hasDetectedPlanes = false
	a.resumePending = false
	a.state = StateDestroyed
	logging.Logger().Info("session destroyed")
}

// OnTouched hit-tests the tap and attaches an anchor to the first acceptable
// hit.
func (a *App) OnTouched(x, y float32) {
	if a.state != StateResumed {
		return
	}
	log := logging.Logger().With(slog.Float64("x", float64(x)), slog.Float64("y", float64(y)))

	var (
		hits []tracking.HitResult
		err  error
	)
	if a.instantPlacement {
		hits, err = a.session.HitTestInstantPlacement(x, y, a.opts.ApproximateDistance)
	} else {
		hits, err = a.session.HitTest(x, y)
	}
	if err != nil {
		log.Warn("hit test", slog.Any("err", err))
		return
	}

	cam, err := a.session.AcquireCamera()
	if err != nil {
		tracking.ReleaseHits(hits)
		log.Warn("camera for hit test", slog.Any("err", err))
		return
	}
	camPose := a.session.CameraPose(cam)
	cam.Release()

	ca, err := a.pool.TryAttach(a.session, camPose, hits)
	if err != nil {
		log.Debug("no anchor placed", slog.Any("err", err))
		return
	}
	a.pool.Add(ca)
	log.Debug("anchor placed", slog.String("id", ca.ID.String()), slog.Int("anchors", a.pool.Len()))
}

// OnDrawFrame advances the session one frame and draws it. Failures are
// local: the frame is cut short and the session keeps running.
func (a *App) OnDrawFrame(depthVisualization, depthOcclusion bool) {
	if a.state != StateResumed || a.renderer == nil {
		return
	}
	s, r := a.session, a.renderer
	log := logging.Logger()

	end := profiler.Start("ar.update")
	err := s.Update()
	end()
	if err != nil {
		log.Warn("frame update", slog.Any("err", err))
		return
	}

	f := scene.FrameContext{UV: a.uv.Update(s, s.DisplayGeometryChanged())}

	cam, err := s.AcquireCamera()
	if err != nil {
		log.Warn("acquire camera", slog.Any("err", err))
		return
	}
	defer cam.Release()
	f.View = s.CameraViewMatrix(cam)
	f.Projection = s.CameraProjectionMatrix(cam, a.opts.Near, a.opts.Far)
	f.CameraPose = s.CameraPose(cam)

	depthSupported := a.IsDepthSupported()
	r.DrawBackground(&f, depthVisualization && depthSupported)
	st := s.TrackingState(cam)
	a.cameraTracking = st == tracking.TrackingStateTracking
	defer a.drawStatus()
	// Records follow the engine every frame so a STOPPED entity is released
	// even while nothing is drawn.
	a.reconcile()
	if !a.cameraTracking {
		log.Debug("camera not tracking", slog.String("state", st.String()))
		return
	}

	if state, cc := s.LightEstimate(); state == tracking.LightEstimateValid {
		f.ColorCorrection = cc
	} else {
		f.ColorCorrection = scene.NeutralColorCorrection
	}

	a.drawImages(&f)
	if a.opts.FaceTracking {
		a.drawFaces(&f)
	}
	a.drawPlanes(&f)
	a.drawAnchors(&f, depthOcclusion && depthSupported)
	a.drawPointCloud(&f)
}

func (a *App) drawStatus() {
	if msg := a.StatusMessage(); msg != "" {
		a.renderer.DrawText(msg, statusMargin, statusMargin, colors.White)
	}
}

func (a *App) reconcile() {
	defer profiler.Start("ar.reconcile")()
	log := logging.Logger()
	if err := a.images.Reconcile(a.session); err != nil {
		log.Warn("reconcile images", slog.Any("err", err))
	}
	if !a.opts.FaceTracking {
		return
	}
	if err := a.faces.Reconcile(a.session); err != nil {
		log.Warn("reconcile faces", slog.Any("err", err))
	}
}

func (a *App) drawImages(f *scene.FrameContext) {
	defer profiler.Start("ar.images")()
	s := a.session
	for _, rec := range a.images.Visible(s) {
		index := s.ImageIndex(rec.Entity)
		ex, ez := s.ImageExtent(rec.Entity)
		a.renderer.DrawAugmentedImage(f, core.AugmentedImage{
			Index:   index,
			Model:   s.AnchorPose(rec.Anchor).Matrix(),
			ExtentX: ex,
			ExtentZ: ez,
			Tint:    colors.Tint(index, a.opts.TintIntensity),
		})
	}
}

func (a *App) drawFaces(f *scene.FrameContext) {
	defer profiler.Start("ar.faces")()
	s := a.session
	for _, rec := range a.faces.Visible(s) {
		a.renderer.DrawFace(f, core.Face{
			Model:   s.CenterPose(rec.Entity).Matrix(),
			Mesh:    s.FaceMesh(rec.Entity),
			Regions: face.Resolve(s, rec.Entity, posemath.Identity()),
		})
	}
}

func (a *App) drawPlanes(f *scene.FrameContext) {
	defer profiler.Start("ar.planes")()
	s := a.session
	planes, err := images.Planes(s)
	if err != nil {
		logging.Logger().Warn("enumerate planes", slog.Any("err", err))
		return
	}
	defer tracking.ReleaseAll(planes)
	for _, p := range planes {
		pose := s.CenterPose(p)
		n := posemath.PlaneNormal(pose)
		a.renderer.DrawPlane(f, core.Plane{
			Model:   pose.Matrix(),
			Normal:  [3]float32{float32(n.X), float32(n.Y), float32(n.Z)},
			Polygon: s.PlanePolygon(p),
		})
	}
	if len(planes) > 0 {
		a.hasDetectedPlanes = true
	}
}

func (a *App) drawAnchors(f *scene.FrameContext, occlusion bool) {
	defer profiler.Start("ar.anchors")()
	s := a.session
	a.pool.RefreshColors(s)
	for _, ca := range a.pool.Tracking(s) {
		a.renderer.DrawObject(f, core.Object{
			Model:          s.AnchorPose(ca.Anchor).Matrix(),
			Color:          ca.Color,
			DepthOcclusion: occlusion,
		})
	}
}

func (a *App) drawPointCloud(f *scene.FrameContext) {
	defer profiler.Start("ar.point_cloud")()
	s := a.session
	pc, err := s.AcquirePointCloud()
	if err != nil {
		if !errors.Is(err, tracking.ErrUnavailable) {
			logging.Logger().Debug("point cloud", slog.Any("err", err))
		}
		return
	}
	defer pc.Release()
	a.renderer.DrawPointCloud(f, s.PointCloudPoints(pc))
}

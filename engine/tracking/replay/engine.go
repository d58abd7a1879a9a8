// Package replay is a scripted tracking engine. It replays frame snapshots
// deterministically and keeps a ledger of every handle it hands out, so
// callers can prove each acquisition is matched by exactly one release.
package replay

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/tracking"
)

const cameraID tracking.ID = 1

var _ tracking.Engine = (*Engine)(nil)

type entityKey struct {
	kind tracking.TrackableKind
	id   uint64
}

type object struct {
	kind        tracking.TrackableKind
	anchor      bool
	state       tracking.TrackingState
	pose        posemath.Pose
	imageIndex  int
	extentX     float32
	extentZ     float32
	polygon     []float32
	subsumedBy  tracking.ID
	orientation tracking.OrientationMode
	method      tracking.InstantPlacementMethod
	regions     map[tracking.FaceRegion]posemath.Pose
	mesh        tracking.Mesh
	points      []float32
}

// Engine implements tracking.Engine over a Script.
type Engine struct {
	// DepthSupported is reported by IsDepthModeSupported(DepthModeAutomatic).
	DepthSupported bool
	// FailAnchors makes the next N anchor creations fail.
	FailAnchors int
	// AnchorState is the state new anchors start in.
	AnchorState tracking.TrackingState
	// ConfigureErr and ResumeErr, when set, are returned by Configure and
	// Resume.
	ConfigureErr error
	ResumeErr    error

	script *Script
	cursor int
	frame  *Frame

	objects map[tracking.ID]*object
	ids     map[entityKey]tracking.ID
	order   map[tracking.TrackableKind][]tracking.ID
	updated map[tracking.TrackableKind][]tracking.ID
	nextID  tracking.ID
	queued  [][]HitSpec

	config     tracking.Config
	configured int
	resumed    bool
	destroyed  bool
	rotation   int
	width      int
	height     int

	// geometryPending is set by SetDisplayGeometry and reported by the next
	// successful Update, the way a device engine reports it.
	geometryPending bool
	geometryChanged bool

	ledger
}

// New returns an engine that will replay s.
func New(s *Script) *Engine {
	if s == nil {
		s = &Script{}
	}
	e := &Engine{
		DepthSupported: s.DepthSupported,
		script:         s,
		cursor:         -1,
		objects:        map[tracking.ID]*object{cameraID: {kind: tracking.KindNotValid}},
		ids:            map[entityKey]tracking.ID{},
		order:          map[tracking.TrackableKind][]tracking.ID{},
		updated:        map[tracking.TrackableKind][]tracking.ID{},
		nextID:         100,
		ledger:         newLedger(),
	}
	return e
}

// --- session ---

func (e *Engine) Configure(cfg tracking.Config) error {
	e.count("Configure")
	if e.destroyed {
		return errors.Wrap(tracking.ErrEngineCall, "configure: session destroyed")
	}
	if e.ConfigureErr != nil {
		return errors.Wrap(tracking.ErrEngineCall, e.ConfigureErr.Error())
	}
	if db := cfg.ImageDatabase; db != nil && len(db.Serialized) == 0 {
		for _, img := range db.Images {
			if img.Width <= 0 || img.Height <= 0 || len(img.Gray) < img.Stride*img.Height {
				return errors.Wrapf(tracking.ErrEngineCall, "add image %q", img.Name)
			}
		}
	}
	e.config = cfg
	e.configured++
	return nil
}

func (e *Engine) Resume() error {
	e.count("Resume")
	if e.destroyed {
		return errors.Wrap(tracking.ErrEngineCall, "resume: session destroyed")
	}
	if e.ResumeErr != nil {
		return errors.Wrap(tracking.ErrEngineCall, e.ResumeErr.Error())
	}
	e.resumed = true
	return nil
}

func (e *Engine) Pause() error {
	e.count("Pause")
	e.resumed = false
	return nil
}

func (e *Engine) Destroy() {
	e.count("Destroy")
	e.resumed = false
	e.destroyed = true
}

func (e *Engine) SetDisplayGeometry(rotation, width, height int) {
	e.count("SetDisplayGeometry")
	e.rotation, e.width, e.height = rotation, width, height
	e.geometryPending = true
}

func (e *Engine) IsDepthModeSupported(mode tracking.DepthMode) bool {
	return mode == tracking.DepthModeDisabled || e.DepthSupported
}

// Config returns the last applied configuration and how many times
// Configure succeeded.
func (e *Engine) Config() (tracking.Config, int) { return e.config, e.configured }

func (e *Engine) Resumed() bool   { return e.resumed }
func (e *Engine) Destroyed() bool { return e.destroyed }

// --- frame ---

func (e *Engine) Update() error {
	e.count("Update")
	if e.destroyed || !e.resumed {
		return errors.Wrap(tracking.ErrEngineCall, "update: session not resumed")
	}
	for k := range e.updated {
		delete(e.updated, k)
	}
	e.cursor++

	var f Frame
	switch {
	case e.cursor < len(e.script.Frames):
		f = e.script.Frames[e.cursor]
	case len(e.script.Frames) > 0:
		last := e.script.Frames[len(e.script.Frames)-1]
		f = Frame{Camera: last.Camera, Light: last.Light, PointCloud: last.PointCloud}
	}
	e.frame = &f
	e.geometryChanged = f.GeometryChanged || e.geometryPending
	if f.Fail {
		// A pending geometry change is reported by the next frame that
		// succeeds.
		return errors.Wrapf(tracking.ErrEngineCall, "update frame %d", e.cursor)
	}
	e.geometryPending = false
	e.apply(&f)
	return nil
}

// Frame returns the index of the current frame, -1 before the first Update.
func (e *Engine) Frame() int { return e.cursor }

func (e *Engine) apply(f *Frame) {
	cam := e.objects[cameraID]
	cam.state = f.Camera.State
	cam.pose = poseOf(f.Camera.Pose)

	for _, img := range f.Images {
		o := e.entity(tracking.KindAugmentedImage, uint64(img.Index))
		o.state, o.pose, o.imageIndex = img.State, poseOf(img.Pose), img.Index
		o.extentX, o.extentZ = img.ExtentX, img.ExtentZ
		e.markUpdated(tracking.KindAugmentedImage, uint64(img.Index))
	}
	for _, p := range f.Planes {
		o := e.entity(tracking.KindPlane, p.ID)
		o.state, o.pose, o.polygon = p.State, poseOf(p.Pose), p.Polygon
		o.subsumedBy = 0
		if p.SubsumedBy != 0 {
			e.entity(tracking.KindPlane, p.SubsumedBy)
			o.subsumedBy = e.ids[entityKey{tracking.KindPlane, p.SubsumedBy}]
		}
		e.markUpdated(tracking.KindPlane, p.ID)
	}
	for _, p := range f.Points {
		o := e.entity(tracking.KindPoint, p.ID)
		o.state, o.pose, o.orientation = p.State, poseOf(p.Pose), p.Orientation
		e.markUpdated(tracking.KindPoint, p.ID)
	}
	for _, fc := range f.Faces {
		o := e.entity(tracking.KindAugmentedFace, fc.ID)
		o.state, o.pose = fc.State, poseOf(fc.Pose)
		o.regions = map[tracking.FaceRegion]posemath.Pose{}
		for name, raw := range fc.Regions {
			if r, err := tracking.ParseFaceRegion(name); err == nil {
				o.regions[r] = poseOf(raw)
			}
		}
		if fc.Mesh != nil {
			o.mesh = *fc.Mesh
		}
		e.markUpdated(tracking.KindAugmentedFace, fc.ID)
	}
	e.queued = append(e.queued[:0], f.Hits...)
}

func (e *Engine) entity(kind tracking.TrackableKind, id uint64) *object {
	key := entityKey{kind, id}
	if oid, ok := e.ids[key]; ok {
		return e.objects[oid]
	}
	oid := e.newID()
	e.ids[key] = oid
	o := &object{kind: kind, pose: posemath.IdentityPose()}
	e.objects[oid] = o
	e.order[kind] = append(e.order[kind], oid)
	return o
}

func (e *Engine) markUpdated(kind tracking.TrackableKind, id uint64) {
	oid := e.ids[entityKey{kind, id}]
	for _, u := range e.updated[kind] {
		if u == oid {
			return
		}
	}
	e.updated[kind] = append(e.updated[kind], oid)
}

func (e *Engine) newID() tracking.ID {
	e.nextID++
	return e.nextID
}

func (e *Engine) DisplayGeometryChanged() bool {
	return e.frame != nil && e.geometryChanged
}

// TransformCoordinates2D maps NDC to texture space for the current display
// rotation: texture V grows downwards and each quarter turn rotates the
// result about the texture center.
func (e *Engine) TransformCoordinates2D(ndc [6]float32) [6]float32 {
	e.count("TransformCoordinates2D")
	var out [6]float32
	for i := 0; i < 6; i += 2 {
		u, v := (ndc[i]+1)/2, (1-ndc[i+1])/2
		for r := 0; r < ((e.rotation%4)+4)%4; r++ {
			u, v = v, 1-u
		}
		out[i], out[i+1] = u, v
	}
	return out
}

func (e *Engine) AcquireCamera() (*tracking.Ref, error) {
	if e.frame == nil {
		return nil, errors.Wrap(tracking.ErrUnavailable, "camera")
	}
	return e.acquire(cameraID), nil
}

func (e *Engine) CameraViewMatrix(cam *tracking.Ref) posemath.Mat4 {
	return e.objects[cameraID].pose.Inverse().Matrix()
}

func (e *Engine) CameraProjectionMatrix(cam *tracking.Ref, near, far float32) posemath.Mat4 {
	aspect := float32(1)
	if e.width > 0 && e.height > 0 {
		aspect = float32(e.width) / float32(e.height)
	}
	return posemath.Perspective(math.Pi/3, aspect, near, far)
}

func (e *Engine) CameraPose(cam *tracking.Ref) posemath.Pose {
	return e.objects[cameraID].pose
}

func (e *Engine) LightEstimate() (tracking.LightEstimateState, [4]float32) {
	if e.frame == nil || e.frame.Light == nil {
		return tracking.LightEstimateNotValid, [4]float32{}
	}
	return tracking.LightEstimateValid, *e.frame.Light
}

func (e *Engine) AcquirePointCloud() (*tracking.Ref, error) {
	if e.frame == nil || e.frame.PointCloud == nil {
		return nil, errors.Wrap(tracking.ErrUnavailable, "point cloud")
	}
	id := e.newID()
	e.objects[id] = &object{points: e.frame.PointCloud}
	return e.acquire(id), nil
}

func (e *Engine) PointCloudPoints(pc *tracking.Ref) []float32 {
	if o := e.lookup(pc); o != nil {
		return o.points
	}
	return nil
}

// --- trackables ---

func (e *Engine) UpdatedTrackables(kind tracking.TrackableKind) ([]*tracking.Ref, error) {
	return e.acquireAll(e.updated[kind]), nil
}

func (e *Engine) AllTrackables(kind tracking.TrackableKind) ([]*tracking.Ref, error) {
	return e.acquireAll(e.order[kind]), nil
}

func (e *Engine) acquireAll(ids []tracking.ID) []*tracking.Ref {
	refs := make([]*tracking.Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, e.acquire(id))
	}
	return refs
}

func (e *Engine) Kind(t *tracking.Ref) tracking.TrackableKind {
	if o := e.lookup(t); o != nil {
		return o.kind
	}
	return tracking.KindNotValid
}

func (e *Engine) TrackingState(t *tracking.Ref) tracking.TrackingState {
	if o := e.lookup(t); o != nil {
		return o.state
	}
	return tracking.TrackingStateStopped
}

func (e *Engine) CenterPose(t *tracking.Ref) posemath.Pose {
	if o := e.lookup(t); o != nil {
		return o.pose
	}
	return posemath.IdentityPose()
}

func (e *Engine) ImageIndex(image *tracking.Ref) int {
	if o := e.lookup(image); o != nil {
		return o.imageIndex
	}
	return -1
}

func (e *Engine) ImageExtent(image *tracking.Ref) (float32, float32) {
	if o := e.lookup(image); o != nil {
		return o.extentX, o.extentZ
	}
	return 0, 0
}

func (e *Engine) AcquireSubsumedBy(plane *tracking.Ref) *tracking.Ref {
	if o := e.lookup(plane); o != nil && o.subsumedBy != 0 {
		return e.acquire(o.subsumedBy)
	}
	return nil
}

func (e *Engine) PlanePolygon(plane *tracking.Ref) []float32 {
	if o := e.lookup(plane); o != nil {
		return o.polygon
	}
	return nil
}

func (e *Engine) IsPoseInPolygon(plane *tracking.Ref, p posemath.Pose) bool {
	o := e.lookup(plane)
	if o == nil {
		return false
	}
	local := o.pose.InverseTransform(p.Translation)
	return pointInPolygon(local.X, local.Z, o.polygon)
}

// pointInPolygon is the even-odd ray casting test over XZ pairs.
func pointInPolygon(x, z float64, poly []float32) bool {
	n := len(poly) / 2
	in := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, zi := float64(poly[2*i]), float64(poly[2*i+1])
		xj, zj := float64(poly[2*j]), float64(poly[2*j+1])
		if (zi > z) != (zj > z) && x < (xj-xi)*(z-zi)/(zj-zi)+xi {
			in = !in
		}
	}
	return in
}

func (e *Engine) PointOrientationMode(point *tracking.Ref) tracking.OrientationMode {
	if o := e.lookup(point); o != nil {
		return o.orientation
	}
	return tracking.OrientationInitializedToIdentity
}

func (e *Engine) InstantPlacementMethod(point *tracking.Ref) tracking.InstantPlacementMethod {
	if o := e.lookup(point); o != nil {
		return o.method
	}
	return tracking.InstantPlacementNotTracking
}

func (e *Engine) RegionPose(face *tracking.Ref, region tracking.FaceRegion) posemath.Pose {
	e.count("RegionPose")
	if o := e.lookup(face); o != nil {
		if p, ok := o.regions[region]; ok {
			return p
		}
		return o.pose
	}
	return posemath.IdentityPose()
}

func (e *Engine) FaceMesh(face *tracking.Ref) tracking.Mesh {
	if o := e.lookup(face); o != nil {
		return o.mesh
	}
	return tracking.Mesh{}
}

// SetState overrides the tracking state of the object behind id, e.g. to
// make an anchor stop tracking.
func (e *Engine) SetState(id tracking.ID, s tracking.TrackingState) {
	if o, ok := e.objects[id]; ok {
		o.state = s
	}
}

// SetMethod overrides the tracking method of an instant placement point.
func (e *Engine) SetMethod(id tracking.ID, m tracking.InstantPlacementMethod) {
	if o, ok := e.objects[id]; ok {
		o.method = m
	}
}

// EntityID returns the engine ID assigned to a scripted entity.
func (e *Engine) EntityID(kind tracking.TrackableKind, scriptID uint64) (tracking.ID, bool) {
	id, ok := e.ids[entityKey{kind, scriptID}]
	return id, ok
}

// --- anchors ---

func (e *Engine) NewAnchor(t *tracking.Ref, pose posemath.Pose) (*tracking.Ref, error) {
	e.count("NewAnchor")
	if t.Released() {
		return nil, errors.Wrap(tracking.ErrEngineCall, "new anchor: trackable released")
	}
	return e.newAnchor(pose)
}

func (e *Engine) NewAnchorFromHit(hit tracking.HitResult) (*tracking.Ref, error) {
	e.count("NewAnchorFromHit")
	if hit.Trackable.Released() {
		return nil, errors.Wrap(tracking.ErrEngineCall, "new anchor from hit: trackable released")
	}
	return e.newAnchor(hit.Pose)
}

func (e *Engine) newAnchor(pose posemath.Pose) (*tracking.Ref, error) {
	if e.FailAnchors > 0 {
		e.FailAnchors--
		return nil, errors.Wrap(tracking.ErrEngineCall, "new anchor")
	}
	id := e.newID()
	e.objects[id] = &object{anchor: true, state: e.AnchorState, pose: pose}
	e.anchorsCreated = append(e.anchorsCreated, id)
	return e.acquire(id), nil
}

func (e *Engine) AnchorPose(anchor *tracking.Ref) posemath.Pose {
	if o := e.lookup(anchor); o != nil {
		return o.pose
	}
	return posemath.IdentityPose()
}

// QueueHits scripts the result of the next hit test issued before the next
// Update. Queued results are served before hits carried by the script frame.
func (e *Engine) QueueHits(hits ...HitSpec) {
	e.queued = append([][]HitSpec{hits}, e.queued...)
}

// --- hit testing ---

func (e *Engine) HitTest(x, y float32) ([]tracking.HitResult, error) {
	e.count("HitTest")
	if e.frame == nil || !e.resumed {
		return nil, errors.Wrap(tracking.ErrEngineCall, "hit test: no frame")
	}
	if specs, ok := e.nextQueued(); ok {
		return e.hitsFrom(specs), nil
	}
	return e.planeHits(x, y), nil
}

func (e *Engine) HitTestInstantPlacement(x, y, approxDistance float32) ([]tracking.HitResult, error) {
	e.count("HitTestInstantPlacement")
	if e.frame == nil || !e.resumed {
		return nil, errors.Wrap(tracking.ErrEngineCall, "instant placement hit test: no frame")
	}
	if specs, ok := e.nextQueued(); ok {
		return e.hitsFrom(specs), nil
	}
	u, v := e.normalized(x, y)
	d := float64(approxDistance)
	cam := e.objects[cameraID].pose
	pose := posemath.Pose{
		Rotation:    cam.Rotation,
		Translation: cam.Transform(r3.Vec{X: u * d, Y: -v * d, Z: -d}),
	}
	return e.hitsFrom([]HitSpec{{
		Kind:   tracking.KindInstantPlacementPoint,
		Pose:   pose.Raw(),
		Method: tracking.InstantPlacementScreenspaceWithApproximateDistance,
	}}), nil
}

func (e *Engine) nextQueued() ([]HitSpec, bool) {
	if len(e.queued) == 0 {
		return nil, false
	}
	specs := e.queued[0]
	e.queued = e.queued[1:]
	return specs, true
}

func (e *Engine) hitsFrom(specs []HitSpec) []tracking.HitResult {
	hits := make([]tracking.HitResult, 0, len(specs))
	for _, s := range specs {
		var oid tracking.ID
		if s.Kind == tracking.KindInstantPlacementPoint {
			oid = e.newID()
			e.objects[oid] = &object{kind: s.Kind, pose: poseOf(s.Pose), method: s.Method}
		} else {
			e.entity(s.Kind, s.Entity)
			oid = e.ids[entityKey{s.Kind, s.Entity}]
		}
		hits = append(hits, tracking.HitResult{
			ID:        e.newID(),
			Pose:      poseOf(s.Pose),
			Distance:  e.distance(poseOf(s.Pose)),
			Trackable: e.acquire(oid),
		})
	}
	return hits
}

// planeHits projects the touch onto every tracking plane, offset from the
// plane center by the normalized screen position, nearest first.
func (e *Engine) planeHits(x, y float32) []tracking.HitResult {
	u, v := e.normalized(x, y)
	var hits []tracking.HitResult
	for _, id := range e.order[tracking.KindPlane] {
		o := e.objects[id]
		if o.state != tracking.TrackingStateTracking || o.subsumedBy != 0 {
			continue
		}
		pose := posemath.Pose{Rotation: o.pose.Rotation, Translation: o.pose.Transform(r3.Vec{X: u, Z: v})}
		hits = append(hits, tracking.HitResult{
			ID:        e.newID(),
			Pose:      pose,
			Distance:  e.distance(pose),
			Trackable: e.acquire(id),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (e *Engine) normalized(x, y float32) (float64, float64) {
	w, h := float64(e.width), float64(e.height)
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	return float64(x)/w - 0.5, float64(y)/h - 0.5
}

func (e *Engine) distance(p posemath.Pose) float32 {
	return float32(r3.Norm(r3.Sub(p.Translation, e.objects[cameraID].pose.Translation)))
}

// --- handles ---

func (e *Engine) acquire(id tracking.ID) *tracking.Ref {
	e.acquired[id]++
	return tracking.NewRef(id, e.release)
}

func (e *Engine) release(id tracking.ID) {
	e.released[id]++
	if e.released[id] > e.acquired[id] {
		e.doubleReleases++
	}
}

func (e *Engine) lookup(r *tracking.Ref) *object {
	if r == nil {
		return nil
	}
	return e.objects[r.ID()]
}

func poseOf(raw [7]float32) posemath.Pose {
	if raw == ([7]float32{}) {
		return posemath.IdentityPose()
	}
	return posemath.PoseFromRaw(raw)
}

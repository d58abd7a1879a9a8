// Package tracking describes the capability set this renderer consumes from
// an external AR tracking engine. The engine itself (feature detection,
// SLAM, pose estimation) is a black box behind these interfaces; the replay
// sub-package provides a scripted implementation.
//
// Every method that returns a *Ref hands ownership of one engine reference
// to the caller, who must Release it on every path.
package tracking

import (
	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/posemath"
)

var (
	// ErrEngineCall wraps any engine call that did not report success.
	ErrEngineCall = errors.New("tracking engine call failed")
	// ErrUnavailable marks data the engine has no value for this frame
	// (point cloud not ready, no camera yet). Callers skip, they don't fail.
	ErrUnavailable = errors.New("not available this frame")
)

// Session controls the engine session lifecycle.
type Session interface {
	Configure(cfg Config) error
	Resume() error
	Pause() error
	Destroy()
	SetDisplayGeometry(rotation, width, height int)
	IsDepthModeSupported(mode DepthMode) bool
}

// FrameSource exposes the snapshot produced by the last Update.
type FrameSource interface {
	Update() error
	DisplayGeometryChanged() bool
	// TransformCoordinates2D maps XY pairs from normalized device
	// coordinates to normalized camera texture coordinates.
	TransformCoordinates2D(ndc [6]float32) [6]float32
	AcquireCamera() (*Ref, error)
	CameraViewMatrix(cam *Ref) posemath.Mat4
	CameraProjectionMatrix(cam *Ref, near, far float32) posemath.Mat4
	CameraPose(cam *Ref) posemath.Pose
	LightEstimate() (LightEstimateState, [4]float32)
	AcquirePointCloud() (*Ref, error)
	// PointCloudPoints returns packed xyzc (position + confidence).
	PointCloudPoints(pc *Ref) []float32
}

// TrackableSource answers per-trackable queries. TrackingState accepts
// anchors as well as trackables.
type TrackableSource interface {
	// UpdatedTrackables lists trackables of kind whose state changed in the
	// last frame.
	UpdatedTrackables(kind TrackableKind) ([]*Ref, error)
	// AllTrackables lists every live trackable of kind.
	AllTrackables(kind TrackableKind) ([]*Ref, error)
	Kind(t *Ref) TrackableKind
	TrackingState(t *Ref) TrackingState
	CenterPose(t *Ref) posemath.Pose
	ImageIndex(image *Ref) int
	ImageExtent(image *Ref) (x, z float32)
	// AcquireSubsumedBy returns the plane that absorbed plane, or nil.
	AcquireSubsumedBy(plane *Ref) *Ref
	// PlanePolygon returns the boundary as XZ pairs in the plane's local frame.
	PlanePolygon(plane *Ref) []float32
	IsPoseInPolygon(plane *Ref, p posemath.Pose) bool
	PointOrientationMode(point *Ref) OrientationMode
	InstantPlacementMethod(point *Ref) InstantPlacementMethod
	// RegionPose returns the world-space pose of a face region.
	RegionPose(face *Ref, region FaceRegion) posemath.Pose
	FaceMesh(face *Ref) Mesh
}

// AnchorSource creates and queries anchors.
type AnchorSource interface {
	NewAnchor(t *Ref, pose posemath.Pose) (*Ref, error)
	NewAnchorFromHit(hit HitResult) (*Ref, error)
	AnchorPose(anchor *Ref) posemath.Pose
}

// HitTester ray-casts screen coordinates into the tracked world. Results are
// sorted nearest first.
type HitTester interface {
	HitTest(x, y float32) ([]HitResult, error)
	HitTestInstantPlacement(x, y, approxDistance float32) ([]HitResult, error)
}

// HitResult is one candidate from a hit test. Trackable is owned by whoever
// holds the result.
type HitResult struct {
	ID        ID
	Pose      posemath.Pose
	Distance  float32
	Trackable *Ref
}

// ReleaseHits releases the trackable of every hit.
func ReleaseHits(hits []HitResult) {
	for i := range hits {
		hits[i].Trackable.Release()
	}
}

// Engine is the full capability set.
type Engine interface {
	Session
	FrameSource
	TrackableSource
	AnchorSource
	HitTester
}

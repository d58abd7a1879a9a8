package tracking

import (
	"strings"

	"github.com/pkg/errors"
)

// TrackingState of the camera, a trackable or an anchor.
type TrackingState int

const (
	TrackingStateTracking TrackingState = iota
	TrackingStatePaused
	TrackingStateStopped
)

func (s TrackingState) String() string {
	switch s {
	case TrackingStateTracking:
		return "TRACKING"
	case TrackingStatePaused:
		return "PAUSED"
	case TrackingStateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

func (s TrackingState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TrackingState) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "TRACKING":
		*s = TrackingStateTracking
	case "PAUSED":
		*s = TrackingStatePaused
	case "STOPPED":
		*s = TrackingStateStopped
	default:
		return errors.Errorf("unknown tracking state %q", b)
	}
	return nil
}

// TrackableKind identifies what sort of physical feature a trackable is.
type TrackableKind int

const (
	KindNotValid TrackableKind = iota
	KindPlane
	KindPoint
	KindAugmentedImage
	KindAugmentedFace
	KindInstantPlacementPoint
)

func (k TrackableKind) String() string {
	switch k {
	case KindPlane:
		return "plane"
	case KindPoint:
		return "point"
	case KindAugmentedImage:
		return "augmented_image"
	case KindAugmentedFace:
		return "augmented_face"
	case KindInstantPlacementPoint:
		return "instant_placement_point"
	default:
		return "not_valid"
	}
}

func (k TrackableKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TrackableKind) UnmarshalText(b []byte) error {
	for c := KindPlane; c <= KindInstantPlacementPoint; c++ {
		if c.String() == strings.ToLower(string(b)) {
			*k = c
			return nil
		}
	}
	return errors.Errorf("unknown trackable kind %q", b)
}

// OrientationMode of a feature point.
type OrientationMode int

const (
	OrientationInitializedToIdentity OrientationMode = iota
	OrientationEstimatedSurfaceNormal
)

// InstantPlacementMethod reports how an instant placement point is tracked.
type InstantPlacementMethod int

const (
	InstantPlacementNotTracking InstantPlacementMethod = iota
	InstantPlacementScreenspaceWithApproximateDistance
	InstantPlacementFullTracking
)

type LightEstimateState int

const (
	LightEstimateNotValid LightEstimateState = iota
	LightEstimateValid
)

type DepthMode int

const (
	DepthModeDisabled DepthMode = iota
	DepthModeAutomatic
)

type InstantPlacementMode int

const (
	InstantPlacementDisabled InstantPlacementMode = iota
	InstantPlacementLocalYUp
)

type FaceMode int

const (
	FaceModeDisabled FaceMode = iota
	FaceMode3DMesh
)

// FaceRegion names a sub-region of an augmented face.
type FaceRegion int

const (
	RegionNoseTip FaceRegion = iota
	RegionForeheadLeft
	RegionForeheadRight
)

func (r FaceRegion) String() string {
	switch r {
	case RegionNoseTip:
		return "nose_tip"
	case RegionForeheadLeft:
		return "forehead_left"
	case RegionForeheadRight:
		return "forehead_right"
	default:
		return "unknown"
	}
}

// ParseFaceRegion maps a region name back to its value.
func ParseFaceRegion(name string) (FaceRegion, error) {
	for r := RegionNoseTip; r <= RegionForeheadRight; r++ {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, errors.Errorf("unknown face region %q", name)
}

// DatabaseImage is one grayscale reference image added to a database built
// at configuration time.
type DatabaseImage struct {
	Name   string
	Width  int
	Height int
	Stride int
	Gray   []byte
}

// ImageDatabase is either a pre-built serialized blob or a list of images
// to add one by one. Serialized wins when both are set.
type ImageDatabase struct {
	Serialized []byte
	Images     []DatabaseImage
}

// Config is applied with Session.Configure.
type Config struct {
	DepthMode            DepthMode
	InstantPlacementMode InstantPlacementMode
	FaceMode             FaceMode
	ImageDatabase        *ImageDatabase
}

// Mesh is the per-frame geometry of an augmented face.
type Mesh struct {
	Vertices []float32 // xyz
	Normals  []float32 // xyz
	UVs      []float32 // uv
	Indices  []uint16
}

// Empty reports whether any attribute stream is missing.
func (m Mesh) Empty() bool {
	return len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.UVs) == 0 || len(m.Indices) == 0
}

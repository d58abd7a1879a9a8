package replay

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/tracking"
)

// Script is a deterministic sequence of frame snapshots. Each Update
// advances to the next frame; after the last one the engine holds the final
// camera and light with no further trackable updates.
type Script struct {
	DepthSupported bool    `json:"depth_supported,omitempty"`
	Frames         []Frame `json:"frames"`
}

// Frame is what the engine reports for one Update. Entity lists carry only
// the trackables updated this frame; the engine remembers the rest.
type Frame struct {
	// Fail makes Update report an engine failure for this frame.
	Fail            bool        `json:"fail,omitempty"`
	GeometryChanged bool        `json:"geometry_changed,omitempty"`
	Camera          Camera      `json:"camera"`
	Light           *[4]float32 `json:"light,omitempty"`
	PointCloud      []float32   `json:"point_cloud,omitempty"`
	Images          []Image     `json:"images,omitempty"`
	Planes          []Plane     `json:"planes,omitempty"`
	Points          []Point     `json:"points,omitempty"`
	Faces           []Face      `json:"faces,omitempty"`
	// Hits are served, in order, to the hit tests issued during this frame.
	Hits [][]HitSpec `json:"hits,omitempty"`
}

type Camera struct {
	State tracking.TrackingState `json:"state"`
	Pose  [7]float32             `json:"pose"`
}

type Image struct {
	Index   int                    `json:"index"`
	State   tracking.TrackingState `json:"state"`
	Pose    [7]float32             `json:"pose"`
	ExtentX float32                `json:"extent_x,omitempty"`
	ExtentZ float32                `json:"extent_z,omitempty"`
}

type Plane struct {
	ID    uint64                 `json:"id"`
	State tracking.TrackingState `json:"state"`
	Pose  [7]float32             `json:"pose"`
	// Polygon is the boundary as XZ pairs in the plane's local frame.
	Polygon    []float32 `json:"polygon,omitempty"`
	SubsumedBy uint64    `json:"subsumed_by,omitempty"`
}

type Point struct {
	ID          uint64                   `json:"id"`
	State       tracking.TrackingState   `json:"state"`
	Pose        [7]float32               `json:"pose"`
	Orientation tracking.OrientationMode `json:"orientation,omitempty"`
}

type Face struct {
	ID      uint64                 `json:"id"`
	State   tracking.TrackingState `json:"state"`
	Pose    [7]float32             `json:"pose"`
	Regions map[string][7]float32  `json:"regions,omitempty"`
	Mesh    *tracking.Mesh         `json:"mesh,omitempty"`
}

// HitSpec scripts one hit-test candidate. Entity is the script ID of the
// plane or point hit (image index for images); instant placement hits
// create a fresh point using Method.
type HitSpec struct {
	Kind   tracking.TrackableKind          `json:"kind"`
	Entity uint64                          `json:"entity,omitempty"`
	Pose   [7]float32                      `json:"pose"`
	Method tracking.InstantPlacementMethod `json:"method,omitempty"`
}

// Load decodes a JSON script.
func Load(r io.Reader) (*Script, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode replay script")
	}
	return &s, nil
}

// LoadFile reads a JSON script from disk.
func LoadFile(path string) (*Script, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, errors.Errorf("replay script must have .json extension, got %q", ext)
	}
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, errors.Wrap(err, "read replay script")
	}
	return Load(bytes.NewReader(b))
}

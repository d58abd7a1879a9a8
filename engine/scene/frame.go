// Package scene holds the per-frame camera state shared by every draw
// submission.
package scene

import "github.com/hubastard/grove-ar/engine/posemath"

// NeutralColorCorrection is used when the light estimate is not valid.
var NeutralColorCorrection = [4]float32{1, 1, 1, 1}

// FrameContext is built at the start of a frame and dropped at its end.
type FrameContext struct {
	View            posemath.Mat4
	Projection      posemath.Mat4
	CameraPose      posemath.Pose
	ColorCorrection [4]float32
	UV              posemath.Mat3
}

// ViewProjection returns Projection*View.
func (f *FrameContext) ViewProjection() posemath.Mat4 {
	return posemath.Mul(f.Projection, f.View)
}

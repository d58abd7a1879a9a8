// Package posemath holds the pure math used to place overlays: pose to
// model matrix, plane normals, camera-to-plane distance and the screen to
// camera-texture UV transform.
package posemath

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid transform: rotate by Rotation (unit quaternion), then
// translate by Translation.
type Pose struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// IdentityPose returns the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// PoseFromRaw builds a pose from the engine's packed layout
// {qx, qy, qz, qw, tx, ty, tz}. The quaternion is normalized; a zero
// quaternion becomes the identity rotation.
func PoseFromRaw(raw [7]float32) Pose {
	q := quat.Number{
		Real: float64(raw[3]),
		Imag: float64(raw[0]),
		Jmag: float64(raw[1]),
		Kmag: float64(raw[2]),
	}
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	} else {
		q = quat.Number{Real: 1}
	}
	return Pose{
		Rotation:    q,
		Translation: r3.Vec{X: float64(raw[4]), Y: float64(raw[5]), Z: float64(raw[6])},
	}
}

// Raw returns the pose in the engine's packed layout.
func (p Pose) Raw() [7]float32 {
	return [7]float32{
		float32(p.Rotation.Imag), float32(p.Rotation.Jmag), float32(p.Rotation.Kmag), float32(p.Rotation.Real),
		float32(p.Translation.X), float32(p.Translation.Y), float32(p.Translation.Z),
	}
}

// Rotate applies only the rotation part of p to v.
func (p Pose) Rotate(v r3.Vec) r3.Vec {
	if p.Rotation == (quat.Number{}) {
		return v
	}
	return r3.Rotation(p.Rotation).Rotate(v)
}

// Transform applies p to the point v.
func (p Pose) Transform(v r3.Vec) r3.Vec {
	return r3.Add(p.Rotate(v), p.Translation)
}

// Matrix returns the model matrix for p.
func (p Pose) Matrix() Mat4 {
	x := p.Rotate(r3.Vec{X: 1})
	y := p.Rotate(r3.Vec{Y: 1})
	z := p.Rotate(r3.Vec{Z: 1})
	t := p.Translation
	return Mat4{
		float32(x.X), float32(x.Y), float32(x.Z), 0,
		float32(y.X), float32(y.Y), float32(y.Z), 0,
		float32(z.X), float32(z.Y), float32(z.Z), 0,
		float32(t.X), float32(t.Y), float32(t.Z), 1,
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{q=(%.3f %.3f %.3f %.3f) t=(%.3f %.3f %.3f)}",
		p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag, p.Rotation.Real,
		p.Translation.X, p.Translation.Y, p.Translation.Z)
}

// PlaneNormal returns the unit normal of a plane whose pose has its local
// Y axis along the normal (center pose or hit pose).
func PlaneNormal(planePose Pose) r3.Vec {
	return r3.Unit(planePose.Rotate(r3.Vec{Y: 1}))
}

// DistanceToPlane is the signed distance of the camera from the plane along
// the plane normal. Negative means the camera looks at the back face.
func DistanceToPlane(planePose, cameraPose Pose) float64 {
	n := PlaneNormal(planePose)
	d := r3.Sub(cameraPose.Translation, planePose.Translation)
	return r3.Dot(n, d)
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	if p.Rotation == (quat.Number{}) {
		p.Rotation = quat.Number{Real: 1}
	}
	inv := Pose{Rotation: quat.Conj(p.Rotation)}
	inv.Translation = r3.Scale(-1, inv.Rotate(p.Translation))
	return inv
}

// InverseTransform maps the world point v into p's local frame.
func (p Pose) InverseTransform(v r3.Vec) r3.Vec {
	return p.Inverse().Transform(v)
}

package posemath

import "math"

// Mat4 is a 4x4 matrix stored column-major (GLSL style): element (row r,
// column c) lives at index r+4*c.
type Mat4 [16]float32

// Mat3 is a 3x3 matrix stored column-major.
type Mat3 [9]float32

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Mul returns a*b.
func Mul(a, b Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r+4*c] = a[r+0]*b[0+4*c] + a[r+4]*b[1+4*c] + a[r+8]*b[2+4*c] + a[r+12]*b[3+4*c]
		}
	}
	return out
}

// MulPoint transforms the point (x, y, z, 1) and returns xyz.
func (m Mat4) MulPoint(x, y, z float32) (float32, float32, float32) {
	return m[0]*x + m[4]*y + m[8]*z + m[12],
		m[1]*x + m[5]*y + m[9]*z + m[13],
		m[2]*x + m[6]*y + m[10]*z + m[14]
}

// At returns element (row, col).
func (m Mat4) At(row, col int) float32 { return m[row+4*col] }

// At returns element (row, col).
func (m Mat3) At(row, col int) float32 { return m[row+3*col] }

// Perspective returns a right-handed OpenGL projection. fovY is in radians.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

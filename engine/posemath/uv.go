package posemath

// NDCBasis holds XY pairs in normalized device coordinates: the origin and
// one point along each principal axis. The engine maps these into camera
// texture space and UVTransform turns the result back into an affine map.
var NDCBasis = [6]float32{0, 0, 1, 0, 0, 1}

// UVTransform converts the texture-space images of NDCBasis into the 3x3
// affine transform that takes screen UVs to camera texture UVs, accounting
// for device orientation.
func UVTransform(tex [6]float32) Mat3 {
	ox, oy := tex[0], tex[1]
	return Mat3{
		tex[2] - ox, tex[3] - oy, 0,
		tex[4] - ox, tex[5] - oy, 0,
		ox, oy, 1,
	}
}

// Apply maps the 2D point (u, v) through m.
func (m Mat3) Apply(u, v float32) (float32, float32) {
	return m[0]*u + m[3]*v + m[6], m[1]*u + m[4]*v + m[7]
}

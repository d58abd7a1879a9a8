package scene

import "github.com/hubastard/grove-ar/engine/posemath"

// CoordinateMapper maps NDC points into camera texture space.
type CoordinateMapper interface {
	TransformCoordinates2D(ndc [6]float32) [6]float32
}

// UVCache holds the screen-to-camera-texture UV transform. It is only
// recomputed after a display geometry change.
type UVCache struct {
	uv         posemath.Mat3
	dirty      bool
	recomputes int
}

func NewUVCache() *UVCache {
	return &UVCache{uv: posemath.Identity3(), dirty: true}
}

// Invalidate forces a recompute on the next Update.
func (c *UVCache) Invalidate() { c.dirty = true }

// Update returns the cached transform, recomputing it first when
// geometryChanged is set or nothing has been computed yet.
func (c *UVCache) Update(src CoordinateMapper, geometryChanged bool) posemath.Mat3 {
	if geometryChanged || c.dirty {
		c.Recalculate(src)
	}
	return c.uv
}

func (c *UVCache) Recalculate(src CoordinateMapper) {
	c.uv = posemath.UVTransform(src.TransformCoordinates2D(posemath.NDCBasis))
	c.dirty = false
	c.recomputes++
}

// UV returns the cached value without touching the engine.
func (c *UVCache) UV() posemath.Mat3 { return c.uv }

// Recomputes counts how many times the transform was computed.
func (c *UVCache) Recomputes() int { return c.recomputes }

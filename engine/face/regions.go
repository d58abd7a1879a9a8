// Package face resolves the model transforms of the independently posed
// regions of an augmented face.
package face

import (
	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// Regions lists the face regions in draw order.
var Regions = [...]tracking.FaceRegion{
	tracking.RegionNoseTip,
	tracking.RegionForeheadLeft,
	tracking.RegionForeheadRight,
}

// Source answers region pose queries.
type Source interface {
	RegionPose(face *tracking.Ref, region tracking.FaceRegion) posemath.Pose
}

// RegionTransform returns the model matrix for a region sub-mesh. The engine
// reports region poses in world space, so base is normally the identity; it
// is applied on the left for hosts that draw in a different root frame.
// Nothing is cached: the mesh deforms every frame.
func RegionTransform(src Source, face *tracking.Ref, base posemath.Mat4, region tracking.FaceRegion) posemath.Mat4 {
	return posemath.Mul(base, src.RegionPose(face, region).Matrix())
}

// Resolve returns the transforms for every region, in Regions order.
func Resolve(src Source, face *tracking.Ref, base posemath.Mat4) [len(Regions)]posemath.Mat4 {
	var out [len(Regions)]posemath.Mat4
	for i, r := range Regions {
		out[i] = RegionTransform(src, face, base, r)
	}
	return out
}

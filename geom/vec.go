// Package geom holds the pure, deterministic geometry and placement-validation
// functions the rest of the simulation is built on. Nothing here touches the
// world store, the ledger, or any collaborator; every function is a plain
// transformation of its inputs, which is what makes it safe to call from
// inside a build validation even when the caller is mid-lock (see
// spatial.Analyzer's cache-first contract).
package geom

import "math"

// Vec3 is a point or extent in world space. Y is up; the ground plane is y=0.
type Vec3 struct {
	X, Y, Z float64
}

// Vec2XZ is a horizontal-plane point, used wherever movement or proximity is
// computed: movement is 2D in XZ, Y is informational only.
type Vec2XZ struct {
	X, Z float64
}

func (v Vec3) XZ() Vec2XZ {
	return Vec2XZ{X: v.X, Z: v.Z}
}

func (v Vec3) Finite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func (v Vec2XZ) Finite() bool {
	return isFinite(v.X) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DistanceXZ returns the Euclidean distance between two points projected onto
// the XZ plane.
func DistanceXZ(a, b Vec2XZ) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// NormXZ returns the distance from the origin.
func NormXZ(v Vec2XZ) float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// AABB is an axis-aligned bounding box in either 2D (XZ) or full 3D, depending
// on which fields the caller reads; MinY/MaxY are left zero for callers that
// only care about the XZ footprint.
type AABB struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// OverlapsXZ reports whether two boxes overlap in the XZ plane, each expanded
// by pad on every side first. pad may be zero for an exact test.
func (a AABB) OverlapsXZ(b AABB, pad float64) bool {
	return a.MinX-pad < b.MaxX+pad && a.MaxX+pad > b.MinX-pad &&
		a.MinZ-pad < b.MaxZ+pad && a.MaxZ+pad > b.MinZ-pad
}

// Overlaps3D reports whether two boxes overlap on all three axes.
func (a AABB) Overlaps3D(b AABB) bool {
	return a.MinX < b.MaxX && a.MaxX > b.MinX &&
		a.MinY < b.MaxY && a.MaxY > b.MinY &&
		a.MinZ < b.MaxZ && a.MaxZ > b.MinZ
}

// CenterXZ returns the XZ midpoint of the box.
func (a AABB) CenterXZ() Vec2XZ {
	return Vec2XZ{X: (a.MinX + a.MaxX) / 2, Z: (a.MinZ + a.MaxZ) / 2}
}

// RadiusXZ returns the half-diagonal of the box's XZ footprint, used as a
// cheap bounding-circle radius for distance comparisons.
func (a AABB) RadiusXZ() float64 {
	dx := (a.MaxX - a.MinX) / 2
	dz := (a.MaxZ - a.MinZ) / 2
	return math.Sqrt(dx*dx + dz*dz)
}

// Expand grows a box by d on every side.
func (a AABB) Expand(d float64) AABB {
	return AABB{
		MinX: a.MinX - d, MaxX: a.MaxX + d,
		MinY: a.MinY - d, MaxY: a.MaxY + d,
		MinZ: a.MinZ - d, MaxZ: a.MaxZ + d,
	}
}

// UnionXZ returns the smallest box (in XZ; Y passthrough from a) containing
// both inputs.
func (a AABB) UnionXZ(b AABB) AABB {
	return AABB{
		MinX: math.Min(a.MinX, b.MinX), MaxX: math.Max(a.MaxX, b.MaxX),
		MinY: a.MinY, MaxY: a.MaxY,
		MinZ: math.Min(a.MinZ, b.MinZ), MaxZ: math.Max(a.MaxZ, b.MaxZ),
	}
}

// BoundingBox computes a primitive's world-space AABB from position and
// scale: position +/- scale/2 on every axis, matching spec.md's definition
// exactly (no rotation-aware box fitting; callers needing tighter bounds for
// visuals do that downstream, not here).
func BoundingBox(position, scale Vec3) AABB {
	return AABB{
		MinX: position.X - scale.X/2, MaxX: position.X + scale.X/2,
		MinY: position.Y - scale.Y/2, MaxY: position.Y + scale.Y/2,
		MinZ: position.Z - scale.Z/2, MaxZ: position.Z + scale.Z/2,
	}
}

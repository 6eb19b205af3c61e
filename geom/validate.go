package geom

import (
	"fmt"
	"math"
)

// PrimitiveInfo is the minimal shape the validators need from a primitive:
// enough to compute bounding boxes and connectivity without depending on
// worldstore (which would create an import cycle, since worldstore calls
// into geom, not the reverse).
type PrimitiveInfo struct {
	Shape    Shape
	Position Vec3
	Scale    Vec3
}

func (p PrimitiveInfo) AABB() AABB {
	return BoundingBox(p.Position, p.Scale)
}

func (p PrimitiveInfo) Exempt() bool {
	return isExempt(p.Shape)
}

// IsConnector reports whether a primitive can register as a visible road
// between settlement nodes: any plane, or a box/cylinder thin and wide
// enough to read as a walkway (scale.y <= 0.25 and the longer of x/z >= 1.5).
func IsConnector(p PrimitiveInfo) bool {
	if !connectorEligible(p.Shape) {
		return false
	}
	if p.Shape == ShapePlane {
		return true
	}
	maxXZ := math.Max(p.Scale.X, p.Scale.Z)
	return p.Scale.Y <= 0.25 && maxXZ >= 1.5
}

// InferCategory classifies a primitive for the analyzer's dominant/missing
// category computations. Flat, wide primitives read as infrastructure
// regardless of their base shape category (a thin wide box is a road, not
// architecture), matching IsConnector's own flatness test.
func InferCategory(p PrimitiveInfo) Category {
	if IsConnector(p) {
		return CategoryInfrastructure
	}
	return baseCategory(p.Shape)
}

// ValidationError is the structured reason a pure validator rejected an
// input. Kind is one of the action/error-kind strings from spec.md §7;
// geom never imports action, so it's a plain string here and action wraps it
// into its own Error type at the pipeline boundary.
type ValidationError struct {
	Kind    string
	Message string
	// CorrectedY is set only for build/floating: the y the caller should
	// retry with.
	CorrectedY *float64
	// NearestNodeName and NearestNodeStructures are set only for
	// build/expansion-gate-active, so the caller can tell the agent which
	// node is gating the build and how far it is from opening up.
	NearestNodeName       string
	NearestNodeStructures int
}

func (e *ValidationError) Error() string { return e.Message }

const (
	KindFloating    = "build/floating"
	KindOverlap     = "build/overlap"
	KindOutOfRange  = "build/out-of-range"
	KindOrigin      = "build/origin-excluded"
	KindSettleFar   = "build/settlement-too-far"
	KindExpansion   = "build/expansion-gate-active"
	KindInvalidCoords = "validation/invalid-coords"
)

// PlacementResult is what ValidatePlacement returns: either the placement is
// valid as-is, valid with a y-snap correction the caller must apply once and
// re-validate, or rejected outright.
type PlacementResult struct {
	Valid      bool
	CorrectedY *float64
	Err        *ValidationError
}

// ValidatePlacement is the single source of "why a build was rejected"
// diagnostics for ground/stack physics and 3D overlap. Exempt shapes
// (plane, circle) always pass. For everything else, the required y is
// computed from the ground plane or from resting atop the highest
// overlapping primitive directly below; if the caller's y isn't close to
// that, a correction is returned rather than a rejection, so callers can
// snap once and re-validate (the two-pass allowance spec.md §4.1 permits).
func ValidatePlacement(shape Shape, position, scale Vec3, nearby []PrimitiveInfo) PlacementResult {
	if !position.Finite() || !scale.Finite() || scale.X <= 0 || scale.Y <= 0 || scale.Z <= 0 {
		return PlacementResult{Err: &ValidationError{Kind: KindInvalidCoords, Message: "non-finite or non-positive geometry"}}
	}

	if isExempt(shape) {
		return PlacementResult{Valid: true}
	}

	requiredY := restingY(position, scale, nearby)
	const snapTolerance = 0.01
	if math.Abs(position.Y-requiredY) > snapTolerance {
		y := requiredY
		return PlacementResult{Valid: false, CorrectedY: &y, Err: &ValidationError{
			Kind: KindFloating, Message: "primitive is not grounded or stacked", CorrectedY: &y,
		}}
	}

	return checkOverlapOnly(shape, position, scale, nearby)
}

// restingY computes the y at which a primitive of the given scale, placed at
// position, would rest: either the ground plane (scale.y/2) or the top of
// the highest non-exempt primitive whose XZ footprint overlaps this one.
func restingY(position, scale Vec3, nearby []PrimitiveInfo) float64 {
	ground := scale.Y / 2
	footprint := BoundingBox(Vec3{X: position.X, Y: 0, Z: position.Z}, Vec3{X: scale.X, Y: 1, Z: scale.Z})

	highestTop := ground
	for _, other := range nearby {
		if other.Exempt() {
			continue
		}
		otherBox := other.AABB()
		if !footprint.OverlapsXZ(otherBox, 0) {
			continue
		}
		top := otherBox.MaxY + scale.Y/2
		if top > highestTop {
			highestTop = top
		}
	}
	return highestTop
}

func checkOverlapOnly(shape Shape, position, scale Vec3, nearby []PrimitiveInfo) PlacementResult {
	self := PrimitiveInfo{Shape: shape, Position: position, Scale: scale}
	selfBox := self.AABB()
	for _, other := range nearby {
		if other.Exempt() {
			continue
		}
		if selfBox.Overlaps3D(other.AABB()) {
			return PlacementResult{Err: &ValidationError{Kind: KindOverlap, Message: "overlaps an existing primitive"}}
		}
	}
	return PlacementResult{Valid: true}
}

// CheckOriginExclusion rejects any placement too close to the world origin,
// keeping the spawn area clear for new agents.
func CheckOriginExclusion(x, z float64, policy Policy) *ValidationError {
	if NormXZ(Vec2XZ{X: x, Z: z}) < policy.MinOriginExclusion {
		return &ValidationError{Kind: KindOrigin, Message: "too close to world origin"}
	}
	return nil
}

// NearestNodeInfo is the minimal shape checkSettlementProximity needs from
// the spatial analyzer's node map to evaluate the expansion gate.
type NearestNodeInfo struct {
	Name           string
	StructureCount int
}

// CheckSettlementProximity enforces the "build near the frontier, not in the
// void" rule, plus (inside it) the expansion gate. nearestNode is consulted
// only when the placement is far enough to be frontier-distance; it may
// return ok=false if there are no nodes yet, in which case the gate is
// treated as not-yet-applicable (an empty world has no nodes to protect).
func CheckSettlementProximity(
	x, z float64,
	primitives []PrimitiveInfo,
	policy Policy,
	nearestNode func(x, z float64) (NearestNodeInfo, bool),
) *ValidationError {
	if len(primitives) < policy.SettlementThreshold {
		return nil // bootstrap: not enough world yet to have a settlement boundary
	}

	nearest := nearestDistance(x, z, primitives)
	if nearest > policy.SettlementMax {
		return &ValidationError{Kind: KindSettleFar, Message: "too far from any existing structure"}
	}

	if nearest >= policy.FrontierMin && nearestNode != nil {
		if node, ok := nearestNode(x, z); ok && node.StructureCount < policy.NodeExpansionGate {
			return &ValidationError{
				Kind:                  KindExpansion,
				Message:               fmt.Sprintf("nearest settlement node %q is too small to expand from (%d structures)", node.Name, node.StructureCount),
				NearestNodeName:       node.Name,
				NearestNodeStructures: node.StructureCount,
			}
		}
	}

	return nil
}

func nearestDistance(x, z float64, primitives []PrimitiveInfo) float64 {
	best := math.Inf(1)
	target := Vec2XZ{X: x, Z: z}
	for _, p := range primitives {
		d := DistanceXZ(target, p.Position.XZ())
		if d < best {
			best = d
		}
	}
	return best
}

// CheckBuildRangeFromAgent enforces the build-reach band: close enough to be
// plausible, far enough that agents can't build on top of themselves.
func CheckBuildRangeFromAgent(agentPos, target Vec2XZ, policy Policy) *ValidationError {
	d := DistanceXZ(agentPos, target)
	if d < policy.MinBuildRange || d > policy.MaxBuildRange {
		return &ValidationError{Kind: KindOutOfRange, Message: "target is outside build range"}
	}
	return nil
}

// NearestPrimitiveDistance exposes nearestDistance for the spatial analyzer's
// open-area sampling, which needs the same "distance to nearest build"
// computation outside of a validation call.
func NearestPrimitiveDistance(x, z float64, primitives []PrimitiveInfo) float64 {
	return nearestDistance(x, z, primitives)
}

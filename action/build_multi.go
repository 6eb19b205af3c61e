package action

import (
	"fmt"
	"math"
	"time"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

const maxMultiBatch = 5

// MultiItemResult is one entry's outcome within a BUILD_MULTI batch.
type MultiItemResult struct {
	Index     int                  `json:"index"`
	Primitive *worldstore.Primitive `json:"primitive,omitempty"`
	Error     *Error               `json:"error,omitempty"`
}

// BuildMulti pre-validates the entire batch (each entry's own geometry,
// range, and mutual contiguity) before placing anything. If pre-validation
// fails, nothing is placed. If it passes, primitives are inserted in order;
// the first insertion failure aborts the remaining batch but leaves already-
// placed primitives in the world — the only non-atomic outcome path, and it
// is surfaced via a per-item Error on the remaining entries.
func (p *Pipeline) BuildMulti(agentID string, reqs []BuildPrimitiveRequest) ([]MultiItemResult, *Error) {
	if len(reqs) < 1 || len(reqs) > maxMultiBatch {
		return nil, newErr(KindInvalidBody, "multi batch must contain 1-5 primitives")
	}

	agent, ok := p.Store.GetAgent(agentID)
	if !ok {
		return nil, newErr(KindAuthUnauthorized, "unknown agent")
	}
	if allowed, delay := p.Throttle.Allow(ClassPrimitive, agentID); !allowed {
		return nil, throttleErr(delay)
	}

	shapes := make([]geom.Shape, len(reqs))
	for i, r := range reqs {
		shape, ok := geom.ParseShape(r.Shape)
		if !ok {
			return nil, newErr(KindInvalidShape, fmt.Sprintf("unknown shape %q at index %d", r.Shape, i))
		}
		shapes[i] = shape
		if !r.Position.Finite() || !r.Scale.Finite() || r.Scale.X <= 0 || r.Scale.Y <= 0 || r.Scale.Z <= 0 {
			return nil, newErr(KindInvalidCoords, fmt.Sprintf("non-finite or non-positive geometry at index %d", i))
		}
		if verr := geom.CheckBuildRangeFromAgent(agent.Position.XZ(), r.Position.XZ(), p.Policy); verr != nil {
			return nil, toActionErr(verr)
		}
	}

	if !mutuallyConnected(reqs) {
		return nil, newErr(KindMultiDisconnected, "batch is not mutually contiguous")
	}

	if p.Ledger.GetCredits(agentID) < p.Policy.PrimitiveCost*len(reqs) {
		return nil, newErr(KindCreditsInsufficient, "not enough credits for the batch")
	}

	existing := p.Store.GetPrimitiveInfos()
	for i, r := range reqs {
		result := geom.ValidatePlacement(shapes[i], r.Position, r.Scale, existing)
		if !result.Valid && result.CorrectedY == nil {
			return nil, toActionErr(result.Err)
		}
	}

	results := make([]MultiItemResult, 0, len(reqs))
	for i, r := range reqs {
		position := r.Position
		nearby := p.Store.GetPrimitiveInfos()
		placeResult := geom.ValidatePlacement(shapes[i], position, r.Scale, nearby)
		if !placeResult.Valid && placeResult.CorrectedY != nil {
			position.Y = *placeResult.CorrectedY
			placeResult = geom.ValidatePlacement(shapes[i], position, r.Scale, nearby)
		}

		prim := worldstore.Primitive{
			ID: newID(), OwnerAgentID: agentID, OwnerAgentName: agent.Name,
			Shape: shapes[i], Position: position, Rotation: r.Rotation, Scale: r.Scale, Color: r.Color,
			CreatedAt: time.Now(),
		}

		build := func(nearby []geom.PrimitiveInfo) (worldstore.Primitive, *geom.ValidationError) {
			res := geom.ValidatePlacement(shapes[i], position, r.Scale, nearby)
			if !res.Valid {
				return worldstore.Primitive{}, res.Err
			}
			return prim, nil
		}

		placed, ok, reason := p.Ledger.DebitAndPlace(p.Store, agentID, p.Policy.PrimitiveCost, build)
		if !ok {
			results = append(results, MultiItemResult{Index: i, Error: reasonToActionErr(reason)})
			for j := i + 1; j < len(reqs); j++ {
				results = append(results, MultiItemResult{Index: j, Error: newErr(KindConcurrencyConflict, "batch aborted after an earlier item failed")})
			}
			break
		}

		if p.Persist != nil {
			_ = p.Persist.CreatePrimitiveWithCreditDebit(placed, p.Policy.PrimitiveCost)
		}
		p.publish(Event{Kind: EventPrimitiveAdded, Primitive: &placed})
		results = append(results, MultiItemResult{Index: i, Primitive: &placed})
	}

	p.Store.TouchAgent(agentID)
	return results, nil
}

// mutuallyConnected applies the §4.5 contiguity rule pairwise across the
// batch: every primitive must be XZ-connected (expanded-AABB overlap or
// center-distance within the size-aware tolerance) to at least one other
// primitive, so the whole batch forms one connected group rather than
// islands.
func mutuallyConnected(reqs []BuildPrimitiveRequest) bool {
	if len(reqs) <= 1 {
		return true
	}

	connected := make([]bool, len(reqs))
	connected[0] = true
	changed := true
	for changed {
		changed = false
		for i := range reqs {
			if connected[i] {
				continue
			}
			for j := range reqs {
				if i == j || !connected[j] {
					continue
				}
				if isContiguous(reqs[i], reqs[j]) {
					connected[i] = true
					changed = true
					break
				}
			}
		}
	}

	for _, ok := range connected {
		if !ok {
			return false
		}
	}
	return true
}

func isContiguous(a, b BuildPrimitiveRequest) bool {
	boxA := geom.BoundingBox(a.Position, a.Scale)
	boxB := geom.BoundingBox(b.Position, b.Scale)
	if boxA.OverlapsXZ(boxB, 1.5) {
		return true
	}

	maxSize := math.Max(math.Max(a.Scale.X, a.Scale.Z), math.Max(b.Scale.X, b.Scale.Z))
	tolerance := math.Max(3.5, math.Min(12, 1.5*maxSize))
	return geom.DistanceXZ(a.Position.XZ(), b.Position.XZ()) <= tolerance
}

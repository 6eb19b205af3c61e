package action

import (
	"fmt"
	"time"

	"weltgrid/economy"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

// BuildPrimitiveRequest is BUILD_PRIMITIVE's input: a single shape to place
// at the agent's request.
type BuildPrimitiveRequest struct {
	Shape    string
	Position geom.Vec3
	Rotation geom.Vec3
	Scale    geom.Vec3
	Color    string
}

// BuildPrimitive runs the full §4.4 BUILD_PRIMITIVE contract: authenticate,
// throttle, credit check, build-range, origin exclusion, settlement
// proximity/expansion gate, placement validation (with a single correctedY
// retry), then commit via DebitAndPlace. Any failure before DebitAndPlace
// leaves the world and ledger unchanged.
func (p *Pipeline) BuildPrimitive(agentID string, req BuildPrimitiveRequest) (worldstore.Primitive, *Error) {
	agent, ok := p.Store.GetAgent(agentID)
	if !ok {
		return worldstore.Primitive{}, newErr(KindAuthUnauthorized, "unknown agent")
	}

	if allowed, delay := p.Throttle.Allow(ClassPrimitive, agentID); !allowed {
		return worldstore.Primitive{}, throttleErr(delay)
	}

	shape, ok := geom.ParseShape(req.Shape)
	if !ok {
		return worldstore.Primitive{}, newErr(KindInvalidShape, fmt.Sprintf("unknown shape %q", req.Shape))
	}
	if !req.Position.Finite() || !req.Scale.Finite() || req.Scale.X <= 0 || req.Scale.Y <= 0 || req.Scale.Z <= 0 {
		return worldstore.Primitive{}, newErr(KindInvalidCoords, "non-finite or non-positive geometry")
	}

	if p.Ledger.GetCredits(agentID) < p.Policy.PrimitiveCost {
		return worldstore.Primitive{}, newErr(KindCreditsInsufficient, "not enough credits")
	}

	if verr := geom.CheckBuildRangeFromAgent(agent.Position.XZ(), req.Position.XZ(), p.Policy); verr != nil {
		return worldstore.Primitive{}, toActionErr(verr)
	}
	if verr := geom.CheckOriginExclusion(req.Position.X, req.Position.Z, p.Policy); verr != nil {
		return worldstore.Primitive{}, toActionErr(verr)
	}

	existing := p.Store.GetPrimitiveInfos()
	var nodeLookup func(x, z float64) (geom.NearestNodeInfo, bool)
	if p.Nodes != nil {
		nodeLookup = p.Nodes.NearestNode
	}
	if verr := geom.CheckSettlementProximity(req.Position.X, req.Position.Z, existing, p.Policy, nodeLookup); verr != nil {
		return worldstore.Primitive{}, withExpansionDetails(verr)
	}

	position := req.Position
	result := geom.ValidatePlacement(shape, position, req.Scale, existing)
	if !result.Valid && result.CorrectedY != nil {
		position.Y = *result.CorrectedY
		result = geom.ValidatePlacement(shape, position, req.Scale, existing)
	}
	if !result.Valid {
		return worldstore.Primitive{}, toActionErr(result.Err)
	}

	prim := worldstore.Primitive{
		ID:             newID(),
		OwnerAgentID:   agentID,
		OwnerAgentName: agent.Name,
		Shape:          shape,
		Position:       position,
		Rotation:       req.Rotation,
		Scale:          req.Scale,
		Color:          req.Color,
		CreatedAt:      time.Now(),
	}

	build := func(nearby []geom.PrimitiveInfo) (worldstore.Primitive, *geom.ValidationError) {
		r := geom.ValidatePlacement(shape, position, req.Scale, nearby)
		if !r.Valid {
			return worldstore.Primitive{}, r.Err
		}
		return prim, nil
	}

	placed, ok, reason := p.Ledger.DebitAndPlace(p.Store, agentID, p.Policy.PrimitiveCost, build)
	if !ok {
		return worldstore.Primitive{}, reasonToActionErr(reason)
	}

	if p.Persist != nil {
		if err := p.Persist.CreatePrimitiveWithCreditDebit(placed, p.Policy.PrimitiveCost); err != nil {
			return worldstore.Primitive{}, newRetryableErr(KindPersistenceUnavailable, "primitive placed but could not be persisted")
		}
	}

	p.Store.TouchAgent(agentID)
	p.publish(Event{Kind: EventPrimitiveAdded, Primitive: &placed})
	p.systemChat(fmt.Sprintf("%s built a %s at (%.0f, %.0f)", agent.Name, shape.String(), placed.Position.X, placed.Position.Z))

	return placed, nil
}

func toActionErr(verr *geom.ValidationError) *Error {
	if verr == nil {
		return nil
	}
	err := newErr(verr.Kind, verr.Message)
	if verr.CorrectedY != nil {
		err.Details = map[string]any{"correctedY": *verr.CorrectedY}
	}
	return err
}

// withExpansionDetails folds the gating node's name and structure count into
// the error's Details so a client can tell the agent which node to grow (S4
// expects the error to reference the node, not just say "gate active").
func withExpansionDetails(verr *geom.ValidationError) *Error {
	err := toActionErr(verr)
	if err != nil && verr.Kind == geom.KindExpansion {
		err.Details = map[string]any{
			"nearestNodeName":       verr.NearestNodeName,
			"nearestNodeStructures": verr.NearestNodeStructures,
		}
	}
	return err
}

func reasonToActionErr(reason economy.Reason) *Error {
	switch reason {
	case economy.ReasonInsufficientCredits:
		return newErr(KindCreditsInsufficient, "not enough credits")
	case economy.ReasonOverlap:
		return newErr(KindOverlap, "overlaps an existing primitive")
	default:
		return newErr(KindInvalidCoords, "invalid placement")
	}
}

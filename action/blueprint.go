package action

import (
	"time"

	"weltgrid/blueprint"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

const blueprintContinueBatch = 5

// BlueprintStartResult mirrors the §6 action-surface response for START.
type BlueprintStartResult struct {
	BlueprintName   string                    `json:"blueprintName"`
	TotalPrimitives int                       `json:"totalPrimitives"`
	Phases          []blueprint.ResolvedPhase `json:"phases"`
	AnchorX         float64                   `json:"anchorX"`
	AnchorZ         float64                   `json:"anchorZ"`
}

// BuildBlueprintStart resolves a catalog entry against anchor, checks that
// the anchor is within the maximum build range of the agent (the minimum
// build range is not applied) and the origin/settlement/expansion rules a
// single build would check at the anchor point, rejects on any active-plan or footprint conflict, and
// registers the plan and its reservation as one atomic unit.
func (p *Pipeline) BuildBlueprintStart(agentID string, catalog *blueprint.Catalog, name string, anchor geom.Vec2XZ) (BlueprintStartResult, *Error) {
	agent, ok := p.Store.GetAgent(agentID)
	if !ok {
		return BlueprintStartResult{}, newErr(KindAuthUnauthorized, "unknown agent")
	}
	if allowed, delay := p.Throttle.Allow(ClassBlueprintStart, agentID); !allowed {
		return BlueprintStartResult{}, throttleErr(delay)
	}

	if _, active := p.Store.GetBuildPlan(agentID); active {
		return BlueprintStartResult{}, newErr(KindBlueprintAlreadyActive, "agent already has an active blueprint plan")
	}

	def, ok := catalog.Get(name)
	if !ok {
		return BlueprintStartResult{}, newErr(KindBlueprintNotFound, "unknown blueprint name")
	}

	if d := geom.DistanceXZ(agent.Position.XZ(), anchor); d > p.Policy.MaxBuildRange {
		return BlueprintStartResult{}, newErr(KindBlueprintAnchorTooFar, "anchor is out of build range")
	}
	if verr := geom.CheckOriginExclusion(anchor.X, anchor.Z, p.Policy); verr != nil {
		return BlueprintStartResult{}, newErr(KindBlueprintAnchorOutOfRange, verr.Message)
	}

	existing := p.Store.GetPrimitiveInfos()
	var nodeLookup func(x, z float64) (geom.NearestNodeInfo, bool)
	if p.Nodes != nil {
		nodeLookup = p.Nodes.NearestNode
	}
	if verr := geom.CheckSettlementProximity(anchor.X, anchor.Z, existing, p.Policy, nodeLookup); verr != nil {
		if verr.Kind == geom.KindExpansion {
			return BlueprintStartResult{}, withExpansionDetails(verr)
		}
		return BlueprintStartResult{}, newErr(KindBlueprintAnchorOutOfRange, verr.Message)
	}

	resolved, err := def.Resolve(anchor)
	if err != nil {
		return BlueprintStartResult{}, newErr(KindInvalidBody, err.Error())
	}

	footprint := resolved.Footprint()
	for _, prim := range existing {
		if footprint.OverlapsXZ(prim.AABB(), 0) {
			return BlueprintStartResult{}, newErr(KindBlueprintFootprintOverlap, "footprint overlaps existing geometry")
		}
	}
	for _, res := range p.Store.Reservations(agentID) {
		if footprint.OverlapsXZ(res.Box, 0) {
			return BlueprintStartResult{}, newErr(KindBlueprintFootprintOverlap, "footprint overlaps another agent's reservation")
		}
	}

	cost := p.Policy.PrimitiveCost * resolved.TotalPrimitives
	if p.Ledger.GetCredits(agentID) < cost {
		return BlueprintStartResult{}, newErr(KindCreditsInsufficient, "not enough credits for the full blueprint")
	}

	plan := worldstore.BlueprintPlan{
		AgentID:         agentID,
		BlueprintName:   name,
		Anchor:          anchor,
		TotalPrimitives: resolved.TotalPrimitives,
		StartedAt:       time.Now(),
	}
	for _, rp := range resolved.AllPrimitives {
		plan.AllPrimitives = append(plan.AllPrimitives, worldstore.PlannedPrimitive{
			Shape: rp.Shape, Position: rp.Position, Rotation: rp.Rotation, Scale: rp.Scale, Color: rp.Color,
		})
	}
	for _, rp := range resolved.Phases {
		plan.Phases = append(plan.Phases, worldstore.BlueprintPhase{Name: rp.Name, Count: rp.Count})
	}

	p.Store.SetBuildPlan(plan, footprint)
	if p.Persist != nil {
		_ = p.Persist.UpsertBlueprintBuildPlan(plan)
	}

	return BlueprintStartResult{
		BlueprintName:   name,
		TotalPrimitives: resolved.TotalPrimitives,
		Phases:          resolved.Phases,
		AnchorX:         anchor.X,
		AnchorZ:         anchor.Z,
	}, nil
}

// BlueprintContinueResult mirrors the §6 CONTINUE response.
type BlueprintContinueResult struct {
	Status        string            `json:"status"`
	Placed        int               `json:"placed"`
	Total         int               `json:"total"`
	CurrentPhase  string            `json:"currentPhase,omitempty"`
	NextBatchSize int               `json:"nextBatchSize,omitempty"`
	Results       []MultiItemResult `json:"results"`
}

// BuildBlueprintContinue places up to blueprintContinueBatch primitives from
// the active plan's cursor. Each placement runs validatePlacement with a
// single correctedY retry, then DebitAndPlace; a per-item failure records an
// error but still advances the cursor, so a plan always terminates in at
// most ceil(total/batch) calls regardless of how many items fail.
func (p *Pipeline) BuildBlueprintContinue(agentID string) (BlueprintContinueResult, *Error) {
	agent, ok := p.Store.GetAgent(agentID)
	if !ok {
		return BlueprintContinueResult{}, newErr(KindAuthUnauthorized, "unknown agent")
	}
	if allowed, delay := p.Throttle.Allow(ClassBlueprintContinue, agentID); !allowed {
		return BlueprintContinueResult{}, throttleErr(delay)
	}

	plan, active := p.Store.GetBuildPlan(agentID)
	if !active {
		return BlueprintContinueResult{}, newErr(KindBlueprintNotActive, "no active blueprint plan")
	}
	if d := geom.DistanceXZ(agent.Position.XZ(), plan.Anchor); d > p.Policy.MaxBuildRange {
		return BlueprintContinueResult{}, newErr(KindBlueprintAnchorTooFar, "agent is too far from the anchor to continue")
	}

	end := plan.NextIndex + blueprintContinueBatch
	if end > plan.TotalPrimitives {
		end = plan.TotalPrimitives
	}

	results := make([]MultiItemResult, 0, end-plan.NextIndex)
	for i := plan.NextIndex; i < end; i++ {
		piece := plan.AllPrimitives[i]
		position := piece.Position

		existing := p.Store.GetPrimitiveInfos()
		placeResult := geom.ValidatePlacement(piece.Shape, position, piece.Scale, existing)
		if !placeResult.Valid && placeResult.CorrectedY != nil {
			position.Y = *placeResult.CorrectedY
		}

		prim := worldstore.Primitive{
			ID: newID(), OwnerAgentID: agentID, OwnerAgentName: agent.Name,
			Shape: piece.Shape, Position: position, Rotation: piece.Rotation, Scale: piece.Scale, Color: piece.Color,
			CreatedAt: time.Now(),
		}

		build := func(nearby []geom.PrimitiveInfo) (worldstore.Primitive, *geom.ValidationError) {
			res := geom.ValidatePlacement(piece.Shape, position, piece.Scale, nearby)
			if !res.Valid {
				return worldstore.Primitive{}, res.Err
			}
			return prim, nil
		}

		placed, ok, reason := p.Ledger.DebitAndPlace(p.Store, agentID, p.Policy.PrimitiveCost, build)
		if !ok {
			plan.FailedCount++
			results = append(results, MultiItemResult{Index: i, Error: reasonToActionErr(reason)})
		} else {
			plan.PlacedCount++
			if p.Persist != nil {
				_ = p.Persist.CreatePrimitiveWithCreditDebit(placed, p.Policy.PrimitiveCost)
			}
			p.publish(Event{Kind: EventPrimitiveAdded, Primitive: &placed})
			results = append(results, MultiItemResult{Index: i, Primitive: &placed})
		}
		plan.NextIndex = i + 1
	}

	if plan.NextIndex >= plan.TotalPrimitives {
		status := "complete"
		if plan.FailedCount > 0 {
			status = "complete_with_failures"
		}
		p.Store.ClearBuildPlan(agentID)
		if p.Persist != nil {
			_ = p.Persist.DeleteBlueprintBuildPlan(agentID)
		}
		return BlueprintContinueResult{Status: status, Placed: plan.PlacedCount, Total: plan.TotalPrimitives, Results: results}, nil
	}

	p.Store.UpdateBuildPlan(plan)
	if p.Persist != nil {
		_ = p.Persist.UpsertBlueprintBuildPlan(plan)
	}

	remaining := plan.TotalPrimitives - plan.NextIndex
	nextBatch := blueprintContinueBatch
	if remaining < nextBatch {
		nextBatch = remaining
	}

	return BlueprintContinueResult{
		Status:        "building",
		Placed:        plan.PlacedCount,
		Total:         plan.TotalPrimitives,
		CurrentPhase:  currentPhaseName(plan),
		NextBatchSize: nextBatch,
		Results:       results,
	}, nil
}

func currentPhaseName(plan worldstore.BlueprintPlan) string {
	idx := 0
	for _, phase := range plan.Phases {
		idx += phase.Count
		if plan.NextIndex < idx {
			return phase.Name
		}
	}
	if len(plan.Phases) > 0 {
		return plan.Phases[len(plan.Phases)-1].Name
	}
	return ""
}

// BlueprintCancelResult mirrors the §6 CANCEL response.
type BlueprintCancelResult struct {
	Cancelled    bool `json:"cancelled"`
	PiecesPlaced int  `json:"piecesPlaced"`
}

// BuildBlueprintCancel removes the plan and its reservation; already-placed
// primitives remain in the world.
func (p *Pipeline) BuildBlueprintCancel(agentID string) (BlueprintCancelResult, *Error) {
	plan, active := p.Store.GetBuildPlan(agentID)
	if !active {
		return BlueprintCancelResult{}, newErr(KindBlueprintNotActive, "no active blueprint plan")
	}

	p.Store.ClearBuildPlan(agentID)
	if p.Persist != nil {
		_ = p.Persist.DeleteBlueprintBuildPlan(agentID)
	}

	return BlueprintCancelResult{Cancelled: true, PiecesPlaced: plan.PlacedCount}, nil
}

package action

import "weltgrid/geom"

// MoveResult is what MOVE returns on success: there is no geometry rejection
// path for movement, so the only outcome is a queued status plus the tick it
// was accepted on.
type MoveResult struct {
	Status string `json:"status"`
	Tick   int64  `json:"tick"`
}

// Move sets the agent's target position; the simulation clock's periodic
// Tick interpolates actual position toward it and flips status back to idle
// on arrival. Movement cannot be rejected for geometry reasons — the agent
// simply walks there.
func (p *Pipeline) Move(agentID string, x, z float64) (MoveResult, *Error) {
	if !(geom.Vec2XZ{X: x, Z: z}).Finite() {
		return MoveResult{}, newErr(KindInvalidCoords, "move target must be finite")
	}

	if ok := p.Store.SetTarget(agentID, x, z); !ok {
		return MoveResult{}, newErr(KindAuthUnauthorized, "unknown agent")
	}
	p.Store.TouchAgent(agentID)

	return MoveResult{Status: "queued", Tick: p.Store.GetCurrentTick()}, nil
}

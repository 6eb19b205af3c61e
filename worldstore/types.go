// Package worldstore holds the authoritative in-memory world: agents,
// primitives, in-flight blueprint plans and their footprint reservations, and
// the monotonic tick/primitiveRevision counters everything else is keyed by.
// Nothing in this package talks to persistence or the network directly; Store
// is rebuilt at boot by LoadFrom from a Loader (satisfied by
// persistence.SQLiteStore) and otherwise only mutates its own guarded maps.
package worldstore

import (
	"time"

	"weltgrid/geom"
)

// AgentStatus is a closed sum type over an agent's activity state, following
// the same Shape-as-enum pattern geom uses for primitives.
type AgentStatus int

const (
	StatusIdle AgentStatus = iota
	StatusMoving
	StatusBuilding
	StatusChatting
)

var agentStatusNames = map[AgentStatus]string{
	StatusIdle:     "idle",
	StatusMoving:   "moving",
	StatusBuilding: "building",
	StatusChatting: "chatting",
}

func (s AgentStatus) String() string {
	if name, ok := agentStatusNames[s]; ok {
		return name
	}
	return "idle"
}

func (s AgentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AgentStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "moving":
		*s = StatusMoving
	case "building":
		*s = StatusBuilding
	case "chatting":
		*s = StatusChatting
	default:
		*s = StatusIdle
	}
	return nil
}

// Agent is one connected agent session. Position/targetPosition are 2D in
// practice (Y is informational only; movement is XZ), but kept as Vec3 so it
// round-trips to the wire without reshaping.
type Agent struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	Name           string         `json:"name"`
	Color          string         `json:"color"`
	Bio            string         `json:"bio,omitempty"`
	Position       geom.Vec3      `json:"position"`
	TargetPosition geom.Vec3      `json:"targetPosition"`
	Status         AgentStatus    `json:"status"`
	LastSeenAt     time.Time      `json:"lastSeenAt"`
}

// Primitive is one placed geometric piece. Immutable after creation except by
// delete-by-owner: no in-place mutation method is exposed on Store.
type Primitive struct {
	ID             string    `json:"id"`
	OwnerAgentID   string    `json:"ownerAgentId"`
	OwnerAgentName string    `json:"ownerAgentName"`
	Shape          geom.Shape `json:"shape"`
	Position       geom.Vec3 `json:"position"`
	Rotation       geom.Vec3 `json:"rotation"`
	Scale          geom.Vec3 `json:"scale"`
	Color          string    `json:"color"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (p Primitive) Info() geom.PrimitiveInfo {
	return geom.PrimitiveInfo{Shape: p.Shape, Position: p.Position, Scale: p.Scale}
}

// BlueprintPhase is one named group of the plan's primitives, in catalog
// order; Count is cached at resolution time so continue/complete progress
// reporting doesn't need to re-walk AllPrimitives.
type BlueprintPhase struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PlannedPrimitive is one blueprint-resolved primitive: absolute coordinates,
// not yet placed.
type PlannedPrimitive struct {
	Shape geom.Shape `json:"shape"`
	Position geom.Vec3 `json:"position"`
	Rotation geom.Vec3 `json:"rotation"`
	Scale    geom.Vec3 `json:"scale"`
	Color    string    `json:"color"`
}

// BlueprintPlan is the in-flight build state for one agent's active
// blueprint; at most one per agent, per the ownership rule in the data model.
type BlueprintPlan struct {
	AgentID         string             `json:"agentId"`
	BlueprintName   string             `json:"blueprintName"`
	Anchor          geom.Vec2XZ        `json:"anchor"`
	AllPrimitives   []PlannedPrimitive `json:"allPrimitives"`
	Phases          []BlueprintPhase   `json:"phases"`
	TotalPrimitives int                `json:"totalPrimitives"`
	PlacedCount     int                `json:"placedCount"`
	FailedCount     int                `json:"failedCount"`
	NextIndex       int                `json:"nextIndex"`
	StartedAt       time.Time          `json:"startedAt"`
}

// Footprint is the plan's reserved XZ bounding box, registered in the store
// while the plan is active so concurrent START calls see it as occupied
// ground.
type Footprint struct {
	AgentID string
	Box     geom.AABB
}

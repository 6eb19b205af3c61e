package worldstore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"weltgrid/geom"
)

// Loader reconstructs Store state at boot from the persistence collaborator.
// It is satisfied by persistence.SQLiteStore; Store depends only on this
// narrow contract so tests can fake it without a real database.
type Loader interface {
	LoadAgents() ([]Agent, error)
	LoadPrimitives() ([]Primitive, error)
	LoadBlueprintBuildPlans() ([]BlueprintPlan, error)
}

// Store is the authoritative in-memory world. One RWMutex guards every map;
// this is the coarse-lock option spec.md §5 calls acceptable, chosen because
// lock hold times here are short compared to an analyzer pass, and nothing in
// Store ever calls out to the network or persistence while holding it.
type Store struct {
	mu sync.RWMutex

	agents     map[string]*Agent
	agentsByOwner map[string]string // ownerId -> agentId, only while online
	primitives map[string]*Primitive
	primitiveOrder []string // insertion order, for stable snapshot iteration

	plans        map[string]*BlueprintPlan // agentId -> plan
	reservations map[string]Footprint      // agentId -> footprint

	tick              int64
	primitiveRevision int64

	livenessHorizon time.Duration
}

// New constructs an empty Store. Boot reconstruction from persistence is a
// separate call (LoadFrom) so tests can build a bare Store without a loader.
func New(livenessHorizon time.Duration) *Store {
	return &Store{
		agents:        make(map[string]*Agent),
		agentsByOwner: make(map[string]string),
		primitives:    make(map[string]*Primitive),
		plans:         make(map[string]*BlueprintPlan),
		reservations:  make(map[string]Footprint),
		livenessHorizon: livenessHorizon,
	}
}

// LoadFrom reconstructs agents, primitives, and in-flight blueprint plans
// from the persistence collaborator. Credits are reconstructed separately by
// economy.Ledger, which has its own Loader into the same database.
func (s *Store) LoadFrom(loader Loader) error {
	agents, err := loader.LoadAgents()
	if err != nil {
		return err
	}
	primitives, err := loader.LoadPrimitives()
	if err != nil {
		return err
	}
	plans, err := loader.LoadBlueprintBuildPlans()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range agents {
		a := agents[i]
		s.agents[a.ID] = &a
	}
	for i := range primitives {
		p := primitives[i]
		s.primitives[p.ID] = &p
		s.primitiveOrder = append(s.primitiveOrder, p.ID)
	}
	for i := range plans {
		p := plans[i]
		s.plans[p.AgentID] = &p
		s.reservations[p.AgentID] = footprintOf(&p)
	}

	return nil
}

func footprintOf(plan *BlueprintPlan) Footprint {
	box := geom.AABB{}
	first := true
	for _, pp := range plan.AllPrimitives {
		b := geom.BoundingBox(pp.Position, pp.Scale)
		if first {
			box = b
			first = false
			continue
		}
		box = box.UnionXZ(b)
	}
	return Footprint{AgentID: plan.AgentID, Box: box}
}

// --- Agents ---

func (s *Store) AddAgent(agent Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = &agent
	s.agentsByOwner[agent.OwnerID] = agent.ID
}

func (s *Store) RemoveAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		delete(s.agentsByOwner, a.OwnerID)
		delete(s.agents, id)
	}
	delete(s.plans, id)
	delete(s.reservations, id)
}

func (s *Store) GetAgent(id string) (Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// IsOwnerOnline reports whether ownerId already has a live agent session, the
// invariant that backs "at most one online agent per ownerId".
func (s *Store) IsOwnerOnline(ownerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.agentsByOwner[ownerID]
	return id, ok
}

func (s *Store) TouchAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.LastSeenAt = time.Now()
	}
}

// TeleportAgent sets position and target position directly; it does not
// interpolate. MOVE goes through SetTarget instead.
func (s *Store) TeleportAgent(id string, x, z float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return false
	}
	a.Position = geom.Vec3{X: x, Y: a.Position.Y, Z: z}
	a.TargetPosition = a.Position
	a.Status = StatusIdle
	return true
}

// SetTarget sets the agent's target position and status to moving; the
// simulation clock's Tick interpolates Position toward it.
func (s *Store) SetTarget(id string, x, z float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return false
	}
	a.TargetPosition = geom.Vec3{X: x, Y: a.Position.Y, Z: z}
	a.Status = StatusMoving
	return true
}

func (s *Store) SetStatus(id string, status AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		a.Status = status
	}
}

func (s *Store) GetAgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// AllAgents returns a snapshot slice, sorted by id for deterministic output.
func (s *Store) AllAgents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Primitives ---

// AddPrimitive inserts a primitive and bumps primitiveRevision. The caller is
// responsible for having already validated placement; Store does not re-check
// overlap. Build actions insert through InsertIfValid (via
// economy.Ledger.DebitAndPlace) instead.
func (s *Store) AddPrimitive(p Primitive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primitives[p.ID] = &p
	s.primitiveOrder = append(s.primitiveOrder, p.ID)
	atomic.AddInt64(&s.primitiveRevision, 1)
}

// InsertIfValid runs validate against a snapshot of the current primitive set
// while holding the write lock, and inserts the result if validate approves
// it. This is what lets economy.Ledger.DebitAndPlace compose a credit check
// with a placement check as one atomic unit: the snapshot validate sees can
// never be invalidated by a concurrent insert slipping in between check and
// write, because both happen under the same critical section.
func (s *Store) InsertIfValid(validate func(nearby []geom.PrimitiveInfo) (Primitive, *geom.ValidationError)) (Primitive, *geom.ValidationError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nearby := make([]geom.PrimitiveInfo, 0, len(s.primitives))
	for _, p := range s.primitives {
		nearby = append(nearby, p.Info())
	}

	prim, verr := validate(nearby)
	if verr != nil {
		return Primitive{}, verr, false
	}

	s.primitives[prim.ID] = &prim
	s.primitiveOrder = append(s.primitiveOrder, prim.ID)
	atomic.AddInt64(&s.primitiveRevision, 1)
	return prim, nil, true
}

func (s *Store) RemovePrimitive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.primitives[id]; !ok {
		return false
	}
	delete(s.primitives, id)
	for i, oid := range s.primitiveOrder {
		if oid == id {
			s.primitiveOrder = append(s.primitiveOrder[:i], s.primitiveOrder[i+1:]...)
			break
		}
	}
	atomic.AddInt64(&s.primitiveRevision, 1)
	return true
}

// GetPrimitives returns a consistent, insertion-ordered snapshot: since the
// copy happens entirely under RLock, a concurrent reader never observes a
// torn mix of pre- and post-write state (testable property 3).
func (s *Store) GetPrimitives() []Primitive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Primitive, 0, len(s.primitiveOrder))
	for _, id := range s.primitiveOrder {
		out = append(out, *s.primitives[id])
	}
	return out
}

// GetPrimitiveInfos is the geom-facing counterpart of GetPrimitives: the
// minimal shape validators need, for pre-checks that happen before a
// committing InsertIfValid call (build-range, origin exclusion, settlement
// proximity all read a snapshot this way since they don't themselves mutate
// anything).
func (s *Store) GetPrimitiveInfos() []geom.PrimitiveInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]geom.PrimitiveInfo, 0, len(s.primitiveOrder))
	for _, id := range s.primitiveOrder {
		out = append(out, s.primitives[id].Info())
	}
	return out
}

func (s *Store) GetPrimitive(id string) (Primitive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.primitives[id]
	if !ok {
		return Primitive{}, false
	}
	return *p, true
}

func (s *Store) GetWorldPrimitiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primitives)
}

// --- Blueprint plans & reservations ---

func (s *Store) GetBuildPlan(agentID string) (BlueprintPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[agentID]
	if !ok {
		return BlueprintPlan{}, false
	}
	return *p, true
}

// SetBuildPlan registers a plan and its footprint reservation atomically
// under the same lock as primitive insertion elsewhere, so a concurrent
// START's overlap test is always consistent with in-flight inserts.
func (s *Store) SetBuildPlan(plan BlueprintPlan, footprint geom.AABB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.AgentID] = &plan
	s.reservations[plan.AgentID] = Footprint{AgentID: plan.AgentID, Box: footprint}
}

// UpdateBuildPlan replaces the stored plan in place (used by CONTINUE to
// advance nextIndex/placedCount/failedCount); it does not touch the
// reservation.
func (s *Store) UpdateBuildPlan(plan BlueprintPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.AgentID] = &plan
}

func (s *Store) ClearBuildPlan(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, agentID)
	delete(s.reservations, agentID)
}

// Reservations returns a snapshot of every active footprint reservation,
// excluding the given agent (callers check their own plan separately).
func (s *Store) Reservations(excludeAgentID string) []Footprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Footprint, 0, len(s.reservations))
	for agentID, f := range s.reservations {
		if agentID == excludeAgentID {
			continue
		}
		out = append(out, f)
	}
	return out
}

// --- Counters & clock ---

func (s *Store) GetCurrentTick() int64 {
	return atomic.LoadInt64(&s.tick)
}

func (s *Store) GetPrimitiveRevision() int64 {
	return atomic.LoadInt64(&s.primitiveRevision)
}

// Tick advances the simulation clock by one step: it interpolates every
// moving agent toward its target and flips status back to idle on arrival.
// Called once per second by the owning server loop (cmd/worldsimd), never
// concurrently with itself.
func (s *Store) Tick(speed float64) {
	atomic.AddInt64(&s.tick, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Status != StatusMoving {
			continue
		}
		d := geom.DistanceXZ(a.Position.XZ(), a.TargetPosition.XZ())
		if d <= speed || d == 0 {
			a.Position = a.TargetPosition
			a.Status = StatusIdle
			continue
		}
		frac := speed / d
		a.Position.X += (a.TargetPosition.X - a.Position.X) * frac
		a.Position.Z += (a.TargetPosition.Z - a.Position.Z) * frac
	}
}

// SweepLiveness marks agents whose lastSeenAt has exceeded the configured
// horizon as offline by evicting their session; their primitives and credits
// are untouched, only reachable through worldstore/economy lookups by id,
// never through the agents map. One sweeper for the whole store, not a
// per-agent heartbeat task, per the Design Notes.
func (s *Store) SweepLiveness(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, a := range s.agents {
		if now.Sub(a.LastSeenAt) > s.livenessHorizon {
			delete(s.agentsByOwner, a.OwnerID)
			delete(s.agents, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

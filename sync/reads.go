package sync

import (
	"fmt"
	"hash/fnv"
	"sort"

	"weltgrid/economy"
	"weltgrid/spatial"
	"weltgrid/worldstore"
)

// AgentLite is the trimmed-down agent shape agents-lite returns: just enough to render a dot on a minimap, not a full profile.
type AgentLite struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Position worldstoreVec       `json:"position"`
	Status   worldstore.AgentStatus `json:"status"`
}

// worldstoreVec mirrors geom.Vec3's JSON shape without importing geom here
// just for a field rename; kept local since no read surface needs geom's
// methods, only its wire shape.
type worldstoreVec struct {
	X, Y, Z float64
}

// StateLite is the cheapest possible poll: the two monotonic counters, the
// agent and primitive counts, and an etag a client can compare against its
// last-seen tag to decide whether a fuller read is worth fetching.
type StateLite struct {
	ETag              string `json:"etag"`
	Tick              int64  `json:"tick"`
	PrimitiveRevision int64  `json:"primitiveRevision"`
	AgentCount        int    `json:"agentCount"`
	PrimitiveCount    int    `json:"primitiveCount"`
}

// AgentsLite is the minimal agent roster, for clients only rendering
// presence (minimap, who's-online list).
type AgentsLite struct {
	ETag   string      `json:"etag"`
	Agents []AgentLite `json:"agents"`
}

// State is the full read surface: every agent and primitive as stored. It's
// the most expensive of the four reads, and the only one whose size grows
// unbounded with world size — the snapshot clients fall back to after a
// deltas gap, not the one they poll every tick.
type State struct {
	ETag              string                 `json:"etag"`
	Tick              int64                  `json:"tick"`
	PrimitiveRevision int64                  `json:"primitiveRevision"`
	Agents            []worldstore.Agent     `json:"agents"`
	Primitives        []worldstore.Primitive `json:"primitives"`
}

// SpatialSummaryView wraps spatial.Summary with the same ETag convention the
// other three reads use, so a client can poll it exactly like the rest.
type SpatialSummaryView struct {
	ETag    string          `json:"etag"`
	Summary spatial.Summary `json:"summary"`
}

func etagFor(tick, revision int64) string {
	return fmt.Sprintf("%d.%d", tick, revision)
}

// spatialEtagFor is revision-only, per the spatial-summary read's tag
// convention: the summary only changes when the primitive set does, so
// folding the per-second tick in here would defeat the analyzer cache's
// not-modified short-circuit.
func spatialEtagFor(primitiveRevision int64) string {
	return fmt.Sprintf("spatial-%d", primitiveRevision)
}

// agentsLiteEtagFor hashes the sorted position/status tuples so the tag is
// stable across ticks where nobody actually moved, rather than changing
// every tick regardless of content like a tick-based tag would.
func agentsLiteEtagFor(lite []AgentLite) string {
	tuples := make([]string, len(lite))
	for i, a := range lite {
		tuples[i] = fmt.Sprintf("%s|%.4f|%.4f|%.4f|%s", a.ID, a.Position.X, a.Position.Y, a.Position.Z, a.Status)
	}
	sort.Strings(tuples)

	h := fnv.New64a()
	for _, t := range tuples {
		fmt.Fprint(h, t, ";")
	}
	return fmt.Sprintf("agents-%x", h.Sum64())
}

// GetStateLite builds the cheapest read.
func GetStateLite(store *worldstore.Store) StateLite {
	tick := store.GetCurrentTick()
	rev := store.GetPrimitiveRevision()
	return StateLite{
		ETag:              etagFor(tick, rev),
		Tick:              tick,
		PrimitiveRevision: rev,
		AgentCount:        store.GetAgentCount(),
		PrimitiveCount:    store.GetWorldPrimitiveCount(),
	}
}

// GetAgentsLite builds the presence-only roster.
func GetAgentsLite(store *worldstore.Store) AgentsLite {
	agents := store.AllAgents()
	lite := make([]AgentLite, len(agents))
	for i, a := range agents {
		lite[i] = AgentLite{
			ID: a.ID, Name: a.Name,
			Position: worldstoreVec{X: a.Position.X, Y: a.Position.Y, Z: a.Position.Z},
			Status:   a.Status,
		}
	}
	return AgentsLite{
		ETag:   agentsLiteEtagFor(lite),
		Agents: lite,
	}
}

// GetState builds the full snapshot.
func GetState(store *worldstore.Store) State {
	tick := store.GetCurrentTick()
	rev := store.GetPrimitiveRevision()
	return State{
		ETag:              etagFor(tick, rev),
		Tick:              tick,
		PrimitiveRevision: rev,
		Agents:            store.AllAgents(),
		Primitives:        store.GetPrimitives(),
	}
}

// GetSpatialSummary builds the derived-topology read.
func GetSpatialSummary(store *worldstore.Store, analyzer *spatial.Analyzer) SpatialSummaryView {
	summary := analyzer.Summary()
	return SpatialSummaryView{
		ETag:    spatialEtagFor(summary.PrimitiveRevision),
		Summary: summary,
	}
}

// CreditsFor is a tiny helper the httpapi agent-detail route uses to fold an
// agent's credit balance into its response without handing the whole ledger
// to the read layer.
func CreditsFor(ledger *economy.Ledger, agentID string) int {
	return ledger.GetCredits(agentID)
}

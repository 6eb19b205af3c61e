package spatial

import (
	"sync"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

// Analyzer derives Summary from a worldstore.Store on demand, caching the
// last result against the revision it was computed for. A cache hit costs a
// mutex lock and an int64 compare; a miss recomputes everything from a
// GetPrimitives snapshot. Nothing here is itself stored by worldstore — the
// derived graph is always reconstructable from the primitive set alone.
type Analyzer struct {
	store  *worldstore.Store
	policy geom.Policy

	mu       sync.Mutex
	cached   Summary
	cachedAt int64
	hasCache bool
}

func NewAnalyzer(store *worldstore.Store, policy geom.Policy) *Analyzer {
	return &Analyzer{store: store, policy: policy}
}

// Summary returns the cached derivation if the world hasn't changed since it
// was computed, else recomputes and caches it.
func (a *Analyzer) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	rev := a.store.GetPrimitiveRevision()
	if a.hasCache && a.cachedAt == rev {
		return a.cached
	}

	primitives := a.store.GetPrimitives()
	structures := buildStructures(primitives)
	nodes := buildNodes(structures)
	edges := buildEdges(nodes, primitives)
	attachConnections(nodes, edges)
	openAreas := buildOpenAreas(primitives, nodes, a.policy)

	summary := Summary{
		PrimitiveRevision: rev,
		Structures:        structures,
		Nodes:             nodes,
		Edges:             edges,
		OpenAreas:         openAreas,
	}

	a.cached = summary
	a.cachedAt = rev
	a.hasCache = true
	return summary
}

// NearestNode satisfies action.NodeLookup structurally: it finds the node
// whose center is closest to (x, z) and reports it, so BUILD_PRIMITIVE's
// expansion gate can ask "how big is the node I'd be expanding from" without
// this package importing action (which would cycle back to it).
func (a *Analyzer) NearestNode(x, z float64) (geom.NearestNodeInfo, bool) {
	summary := a.Summary()
	if len(summary.Nodes) == 0 {
		return geom.NearestNodeInfo{}, false
	}

	point := geom.Vec2XZ{X: x, Z: z}
	best := summary.Nodes[0]
	bestDist := geom.DistanceXZ(point, best.Center)
	for _, n := range summary.Nodes[1:] {
		d := geom.DistanceXZ(point, n.Center)
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	return geom.NearestNodeInfo{Name: best.Name, StructureCount: best.StructureCount}, true
}

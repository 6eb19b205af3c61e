package spatial

import (
	"math"
	"sort"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

// connectGap is the XZ expansion applied to each primitive's AABB before the
// overlap test; the tolerance in connected is the size-aware center-distance
// fallback,
// mirroring the contiguity rule action.isContiguous already applies to a
// single BUILD_MULTI batch, generalized here across the whole world.
const connectGap = 1.5

func connected(a, b geom.PrimitiveInfo) bool {
	if a.AABB().OverlapsXZ(b.AABB(), connectGap) {
		return true
	}
	maxSize := math.Max(math.Max(a.Scale.X, a.Scale.Z), math.Max(b.Scale.X, b.Scale.Z))
	tolerance := math.Max(3.5, math.Min(12, 1.5*maxSize))
	return geom.DistanceXZ(a.Position.XZ(), b.Position.XZ()) <= tolerance
}

// componentsOf runs a BFS flood fill over the candidate indices, using
// connected as the adjacency test. Each returned slice is one connected
// component's member indices into primitives, in discovery order — the
// "arena of indices" the rest of the analyzer threads through instead of
// copying primitive values. Generalized from lvlath/gridgraph's
// ConnectedComponents (visited bitset + BFS queue), swapping its fixed
// grid-neighbor test for the continuous connected() predicate above.
func componentsOf(primitives []worldstore.Primitive, candidates []int) [][]int {
	visited := make(map[int]bool, len(candidates))
	var components [][]int

	for _, start := range candidates {
		if visited[start] {
			continue
		}
		queue := []int{start}
		visited[start] = true
		var component []int

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, cur)

			for _, next := range candidates {
				if visited[next] {
					continue
				}
				if connected(primitives[cur].Info(), primitives[next].Info()) {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

// buildStructures partitions the world's primitives into connected
// components, excluding connectors from seeding or joining a component (a
// road does not make two distant buildings one structure) unless nothing
// else exists, then computes each component's centroid, radius, footprint,
// dominant category, and builder set.
func buildStructures(primitives []worldstore.Primitive) []Structure {
	if len(primitives) == 0 {
		return nil
	}

	var nonConnector []int
	for i, p := range primitives {
		if !geom.IsConnector(p.Info()) {
			nonConnector = append(nonConnector, i)
		}
	}
	candidates := nonConnector
	if len(candidates) == 0 {
		candidates = make([]int, len(primitives))
		for i := range primitives {
			candidates[i] = i
		}
	}

	var structures []Structure
	for _, component := range componentsOf(primitives, candidates) {
		structures = append(structures, summarizeStructure(primitives, component))
	}
	return structures
}

func summarizeStructure(primitives []worldstore.Primitive, indices []int) Structure {
	var sumX, sumZ float64
	categoryCounts := map[geom.Category]int{}
	builders := map[string]bool{}
	box := primitives[indices[0]].Info().AABB()

	for _, idx := range indices {
		prim := primitives[idx]
		info := prim.Info()
		sumX += info.Position.X
		sumZ += info.Position.Z
		categoryCounts[geom.InferCategory(info)]++
		if prim.OwnerAgentID != "" {
			builders[prim.OwnerAgentID] = true
		}
		box = box.UnionXZ(info.AABB())
	}

	count := float64(len(indices))
	center := geom.Vec2XZ{X: sumX / count, Z: sumZ / count}

	radius := 0.0
	for _, idx := range indices {
		info := primitives[idx].Info()
		d := geom.DistanceXZ(center, info.Position.XZ()) + info.AABB().RadiusXZ()
		if d > radius {
			radius = d
		}
	}

	return Structure{
		Center:           center,
		Radius:           radius,
		PrimitiveIndices: indices,
		PrimitiveCount:   len(indices),
		BoundingBox:      box,
		FootprintArea:    (box.MaxX - box.MinX) * (box.MaxZ - box.MinZ),
		DominantCategory: dominantCategory(categoryCounts, len(indices)),
		Builders:         keysOf(builders),
	}
}

// dominantCategory requires a plurality of at least 35% to name a category;
// anything less reads as a mixed-use structure.
func dominantCategory(counts map[geom.Category]int, total int) geom.Category {
	best := geom.CategoryMixed
	bestCount := 0
	for cat, n := range counts {
		if n > bestCount {
			best, bestCount = cat, n
		}
	}
	if total == 0 || float64(bestCount)/float64(total) < 0.35 {
		return geom.CategoryMixed
	}
	return best
}

func keysOf(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

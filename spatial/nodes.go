package spatial

import (
	"fmt"
	"math"
	"sort"

	"weltgrid/geom"
)

// nodeClusterGap is the XZ expansion applied to each structure's bounding
// box before the overlap test that seeds a settlement-node cluster;
// nodeBaseGap is the fallback center-to-center distance two structures can still share a
// node at, scaled loosely by footprint so sprawling structures cluster at a
// longer range than tight ones.
const (
	nodeClusterGap = 16
	nodeBaseGap    = 24
)

func structuresConnected(a, b Structure) bool {
	if a.BoundingBox.OverlapsXZ(b.BoundingBox, nodeClusterGap) {
		return true
	}
	return geom.DistanceXZ(a.Center, b.Center) <= nodeBaseGap+a.Radius+b.Radius
}

// buildNodes clusters structures into settlement nodes, then assigns each a
// compass-relative name seeded from the overall world centroid: the highest-
// tier, densest nodes are named after the cardinal direction of their offset
// from that centroid, with a sequence suffix when more than one node shares
// a direction.
func buildNodes(structures []Structure) []SettlementNode {
	if len(structures) == 0 {
		return nil
	}

	visited := make([]bool, len(structures))
	var clusters [][]int
	for start := range structures {
		if visited[start] {
			continue
		}
		queue := []int{start}
		visited[start] = true
		var cluster []int
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cluster = append(cluster, cur)
			for next := range structures {
				if visited[next] {
					continue
				}
				if structuresConnected(structures[cur], structures[next]) {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		clusters = append(clusters, cluster)
	}

	nodes := make([]SettlementNode, 0, len(clusters))
	for _, cluster := range clusters {
		nodes = append(nodes, summarizeNode(structures, cluster))
	}

	worldCenter := centroidOf(nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		ti, tj := tierRank(nodes[i].Tier), tierRank(nodes[j].Tier)
		if ti != tj {
			return ti > tj
		}
		return nodes[i].StructureCount > nodes[j].StructureCount
	})
	nameNodes(nodes, worldCenter)

	return nodes
}

func summarizeNode(structures []Structure, indices []int) SettlementNode {
	var weightedX, weightedZ float64
	totalPrims := 0
	categoryCounts := map[geom.Category]int{}
	builders := map[string]bool{}

	for _, idx := range indices {
		s := structures[idx]
		weightedX += s.Center.X * float64(s.PrimitiveCount)
		weightedZ += s.Center.Z * float64(s.PrimitiveCount)
		totalPrims += s.PrimitiveCount
		categoryCounts[s.DominantCategory] += s.PrimitiveCount
		for _, b := range s.Builders {
			builders[b] = true
		}
	}
	if totalPrims == 0 {
		totalPrims = 1
	}
	center := geom.Vec2XZ{X: weightedX / float64(totalPrims), Z: weightedZ / float64(totalPrims)}

	radius := 0.0
	for _, idx := range indices {
		s := structures[idx]
		d := geom.DistanceXZ(center, s.Center) + s.Radius
		if d > radius {
			radius = d
		}
	}

	observed := map[geom.Category]bool{}
	for cat := range categoryCounts {
		observed[cat] = true
	}
	var missing []geom.Category
	for _, cat := range geom.AllCategories {
		if !observed[cat] {
			missing = append(missing, cat)
		}
	}

	return SettlementNode{
		Center:            center,
		Radius:            radius,
		StructureIndices:  indices,
		StructureCount:    len(indices),
		Tier:              tierFor(len(indices)),
		DominantCategory:  dominantCategory(categoryCounts, totalPrims),
		MissingCategories: missing,
		Builders:          keysOf(builders),
	}
}

func centroidOf(nodes []SettlementNode) geom.Vec2XZ {
	if len(nodes) == 0 {
		return geom.Vec2XZ{}
	}
	var sumX, sumZ float64
	for _, n := range nodes {
		sumX += n.Center.X
		sumZ += n.Center.Z
	}
	return geom.Vec2XZ{X: sumX / float64(len(nodes)), Z: sumZ / float64(len(nodes))}
}

// compassOrder runs clockwise from north starting at -22.5 degrees, so each
// entry covers a 45-degree sector.
var compassOrder = []string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest",
}

// directionFrom buckets the angle from center to point into one of eight
// 45-degree compass sectors. Atan2's z/x ordering treats +z as "north" and
// +x as "east", an arbitrary but internally consistent convention.
func directionFrom(center, point geom.Vec2XZ) string {
	angle := math.Atan2(point.X-center.X, point.Z-center.Z)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	sector := int(math.Floor((angle+math.Pi/8)/(math.Pi/4))) % len(compassOrder)
	return compassOrder[sector]
}

// nameNodes assigns names in the already tier/density-sorted order, so the
// first node claimed in a direction is its most significant one.
func nameNodes(nodes []SettlementNode, worldCenter geom.Vec2XZ) {
	seq := map[string]int{}
	for i := range nodes {
		dir := directionFrom(worldCenter, nodes[i].Center)
		seq[dir]++
		if seq[dir] == 1 {
			nodes[i].Name = fmt.Sprintf("%s-%s", dir, nodes[i].Tier)
		} else {
			nodes[i].Name = fmt.Sprintf("%s-%s-%d", dir, nodes[i].Tier, seq[dir])
		}
		nodes[i].ID = fmt.Sprintf("node-%d", i)
	}
}

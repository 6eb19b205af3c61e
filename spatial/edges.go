package spatial

import (
	"sort"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

const (
	// edgeCandidateMax is the farthest two nodes are even considered for an
	// edge before either the connector or bare-gap test runs.
	edgeCandidateMax = 220
	// edgeBareGapMax allows an edge with no physical connector between close
	// enough nodes — neighbors don't need a paved road to be neighbors.
	edgeBareGapMax = 65
	// edgePerNodeCap keeps the graph sparse: a node fans out to at most its
	// five nearest qualifying neighbors.
	edgePerNodeCap = 5
)

// buildEdges tests every node pair within edgeCandidateMax for a connector
// primitive running between them, falling back to a bare-proximity edge for
// close neighbors with nothing paved between them, then caps each node's
// degree to its nearest edgePerNodeCap neighbors.
func buildEdges(nodes []SettlementNode, primitives []worldstore.Primitive) []NodeEdge {
	if len(nodes) < 2 {
		return nil
	}

	var connectors []worldstore.Primitive
	for _, p := range primitives {
		if geom.IsConnector(p.Info()) {
			connectors = append(connectors, p)
		}
	}

	type candidate struct {
		edge NodeEdge
		a, b int
	}
	var candidates []candidate
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			d := geom.DistanceXZ(nodes[i].Center, nodes[j].Center)
			if d > edgeCandidateMax {
				continue
			}
			hasConnector := connectorBetween(nodes[i].Center, nodes[j].Center, connectors)
			if !hasConnector && d > edgeBareGapMax {
				continue
			}
			candidates = append(candidates, candidate{
				a: i, b: j,
				edge: NodeEdge{NodeAID: nodes[i].ID, NodeBID: nodes[j].ID, HasConnector: hasConnector, Distance: d},
			})
		}
	}

	degree := make([]int, len(nodes))
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].edge.Distance < candidates[j].edge.Distance })

	var edges []NodeEdge
	for _, c := range candidates {
		if degree[c.a] >= edgePerNodeCap || degree[c.b] >= edgePerNodeCap {
			continue
		}
		edges = append(edges, c.edge)
		degree[c.a]++
		degree[c.b]++
	}
	return edges
}

// connectorBetween reports whether any connector primitive's center lies
// close to the segment from a to b, at a parametric position strictly
// between the endpoints (not just sitting under one of the nodes
// themselves).
func connectorBetween(a, b geom.Vec2XZ, connectors []worldstore.Primitive) bool {
	segX, segZ := b.X-a.X, b.Z-a.Z
	segLenSq := segX*segX + segZ*segZ
	if segLenSq == 0 {
		return false
	}

	for _, c := range connectors {
		p := c.Position.XZ()
		t := ((p.X-a.X)*segX + (p.Z-a.Z)*segZ) / segLenSq
		if t <= 0.1 || t >= 0.9 {
			continue
		}
		closest := geom.Vec2XZ{X: a.X + t*segX, Z: a.Z + t*segZ}
		if geom.DistanceXZ(p, closest) <= 8 {
			return true
		}
	}
	return false
}

func attachConnections(nodes []SettlementNode, edges []NodeEdge) {
	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = i
	}
	for _, e := range edges {
		if i, ok := byID[e.NodeAID]; ok {
			nodes[i].Connections = append(nodes[i].Connections, e.NodeBID)
		}
		if j, ok := byID[e.NodeBID]; ok {
			nodes[j].Connections = append(nodes[j].Connections, e.NodeAID)
		}
	}
}

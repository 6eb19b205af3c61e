// Package spatial derives the scene's topology from the current primitive
// set: structures (connected components), settlement nodes (clusters of
// structures), node-to-node edges, and typed open areas. Nothing here is
// stored — it's recomputed on demand and cached by primitiveRevision, per the
// Design Notes' "derived graph never stored". The flood-fill passes below are
// generalized from lvlath/gridgraph.ConnectedComponents's visited-bitset +
// BFS-queue shape, adapted from a fixed grid-neighbor test to the continuous
// XZ connectivity rules spec'd for structures and nodes.
package spatial

import "weltgrid/geom"

// Structure is a connected component of non-connector primitives.
type Structure struct {
	Center           geom.Vec2XZ   `json:"center"`
	Radius           float64       `json:"radius"`
	PrimitiveIndices []int         `json:"-"`
	PrimitiveCount   int           `json:"primitiveCount"`
	BoundingBox      geom.AABB     `json:"boundingBox"`
	FootprintArea    float64       `json:"footprintArea"`
	DominantCategory geom.Category `json:"dominantCategory"`
	Builders         []string      `json:"builders"`
}

// SettlementNode is a cluster of structures with a density tier.
type SettlementNode struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Center            geom.Vec2XZ   `json:"center"`
	Radius            float64       `json:"radius"`
	StructureIndices  []int         `json:"-"`
	StructureCount    int           `json:"structureCount"`
	Tier              string        `json:"tier"`
	DominantCategory  geom.Category `json:"dominantCategory"`
	MissingCategories []geom.Category `json:"missingCategories"`
	Builders          []string     `json:"builders"`
	Connections       []string     `json:"connections"`
}

// NodeEdge is an unordered connectivity edge between two nodes.
type NodeEdge struct {
	NodeAID     string `json:"nodeAId"`
	NodeBID     string `json:"nodeBId"`
	HasConnector bool  `json:"hasConnector"`
	Distance    float64 `json:"distance"`
}

// OpenAreaType classifies a sampled candidate coordinate by its distance to
// the nearest primitive.
type OpenAreaType string

const (
	OpenAreaGrowth    OpenAreaType = "growth"
	OpenAreaConnector OpenAreaType = "connector"
	OpenAreaFrontier  OpenAreaType = "frontier"
)

// OpenArea is one sampled expansion candidate.
type OpenArea struct {
	X               float64      `json:"x"`
	Z               float64      `json:"z"`
	NearestBuild    float64      `json:"nearestBuild"`
	Type            OpenAreaType `json:"type"`
	NearestNodeID   string       `json:"nearestNodeId,omitempty"`
	NearestNodeName string       `json:"nearestNodeName,omitempty"`
	NearestNodeTier string       `json:"nearestNodeTier,omitempty"`
}

// Summary is the full derived view for one primitiveRevision.
type Summary struct {
	PrimitiveRevision int64            `json:"primitiveRevision"`
	Structures        []Structure      `json:"structures"`
	Nodes             []SettlementNode `json:"nodes"`
	Edges             []NodeEdge       `json:"edges"`
	OpenAreas         []OpenArea       `json:"openAreas"`
}

// tierBreakpoints maps structureCount to a tier name, in ascending order;
// the last entry with breakpoint <= count wins.
var tierBreakpoints = []struct {
	min  int
	name string
}{
	{0, "settlement"},
	{6, "server"},
	{15, "forest"},
	{25, "city"},
	{50, "metropolis"},
	{100, "megaopolis"},
}

func tierFor(structureCount int) string {
	tier := tierBreakpoints[0].name
	for _, bp := range tierBreakpoints {
		if structureCount >= bp.min {
			tier = bp.name
		}
	}
	return tier
}

func tierRank(tier string) int {
	for i, bp := range tierBreakpoints {
		if bp.name == tier {
			return i
		}
	}
	return 0
}

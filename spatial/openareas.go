package spatial

import (
	"math"
	"sort"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

const (
	openAreaGridStep = 20
	openAreaGridPad  = 120

	// growthMinGap excludes samples too close to an existing primitive to be
	// worth suggesting; growth runs from here up to connectorMinGap.
	growthMinGap    = 12
	connectorMinGap = 34

	openAreaCapGrowth    = 5
	openAreaCapConnector = 4
	openAreaCapFrontier  = 5
	openAreaCapTotal     = 12
)

// buildOpenAreas samples candidate build sites around the existing footprint
// on a grid, classifies each by its distance to the nearest primitive, and
// returns a capped, type-balanced selection. With too little world to grid
// over yet, it falls back to a ring of bootstrap sites around the origin so
// a brand-new world still has somewhere to suggest building.
func buildOpenAreas(primitives []worldstore.Primitive, nodes []SettlementNode, policy geom.Policy) []OpenArea {
	infos := make([]geom.PrimitiveInfo, len(primitives))
	for i, p := range primitives {
		infos[i] = p.Info()
	}

	bootstrap := len(primitives) < policy.SettlementThreshold
	var samples []geom.Vec2XZ
	if bootstrap {
		samples = ringSamples(geom.Vec2XZ{}, policy.MinOriginExclusion+40, 8)
	} else {
		samples = gridSamples(infos)
	}

	byType := map[OpenAreaType][]OpenArea{}
	for _, s := range samples {
		if geom.NormXZ(s) < policy.MinOriginExclusion {
			continue
		}
		nearest := geom.NearestPrimitiveDistance(s.X, s.Z, infos)

		// Bootstrap rings are spec's "fixed set of seed frontier points": with
		// too little world to grid over, nearest-build is either undefined (no
		// primitives yet) or not a meaningful distance signal, so these are
		// always frontier seeds rather than run through the normal bands.
		var areaType OpenAreaType
		if bootstrap {
			areaType = OpenAreaFrontier
		} else {
			var ok bool
			areaType, ok = classifyOpenArea(nearest, policy)
			if !ok {
				continue
			}
		}

		area := OpenArea{X: s.X, Z: s.Z, NearestBuild: nearest, Type: areaType}
		attachNearestNode(&area, nodes)
		byType[area.Type] = append(byType[area.Type], area)
	}

	for _, areas := range byType {
		sort.Slice(areas, func(i, j int) bool { return areas[i].NearestBuild < areas[j].NearestBuild })
	}

	var result []OpenArea
	result = append(result, capped(byType[OpenAreaGrowth], openAreaCapGrowth)...)
	result = append(result, capped(byType[OpenAreaConnector], openAreaCapConnector)...)
	result = append(result, capped(byType[OpenAreaFrontier], openAreaCapFrontier)...)
	if len(result) > openAreaCapTotal {
		result = result[:openAreaCapTotal]
	}
	return result
}

// classifyOpenArea bands a sample by its distance to the nearest primitive.
// frontierMax is capped at SettlementMax-1 since nothing can ever be built at
// or beyond SettlementMax; a sample past that cap isn't a suggestion worth
// making, so ok is false and the caller drops it.
func classifyOpenArea(nearestBuild float64, policy geom.Policy) (areaType OpenAreaType, ok bool) {
	frontierMax := math.Min(policy.FrontierMax, policy.SettlementMax-1)
	switch {
	case nearestBuild < growthMinGap:
		return "", false
	case nearestBuild < connectorMinGap:
		return OpenAreaGrowth, true
	case nearestBuild < policy.FrontierMin:
		return OpenAreaConnector, true
	case nearestBuild <= frontierMax:
		return OpenAreaFrontier, true
	default:
		return "", false
	}
}

func attachNearestNode(area *OpenArea, nodes []SettlementNode) {
	if len(nodes) == 0 {
		return
	}
	point := geom.Vec2XZ{X: area.X, Z: area.Z}
	best := nodes[0]
	bestDist := geom.DistanceXZ(point, best.Center)
	for _, n := range nodes[1:] {
		d := geom.DistanceXZ(point, n.Center)
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	area.NearestNodeID = best.ID
	area.NearestNodeName = best.Name
	area.NearestNodeTier = best.Tier
}

// gridSamples lays a step-spaced grid over the padded bounding box of every
// primitive in the world.
func gridSamples(infos []geom.PrimitiveInfo) []geom.Vec2XZ {
	box := infos[0].AABB()
	for _, info := range infos[1:] {
		box = box.UnionXZ(info.AABB())
	}
	box = box.Expand(openAreaGridPad)

	var samples []geom.Vec2XZ
	for x := box.MinX; x <= box.MaxX; x += openAreaGridStep {
		for z := box.MinZ; z <= box.MaxZ; z += openAreaGridStep {
			samples = append(samples, geom.Vec2XZ{X: x, Z: z})
		}
	}
	return samples
}

// ringSamples places n points evenly spaced on a circle of the given radius
// around center, used to bootstrap open-area suggestions before any
// settlement exists to grid-sample around.
func ringSamples(center geom.Vec2XZ, radius float64, n int) []geom.Vec2XZ {
	samples := make([]geom.Vec2XZ, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		samples = append(samples, geom.Vec2XZ{
			X: center.X + radius*math.Cos(angle),
			Z: center.Z + radius*math.Sin(angle),
		})
	}
	return samples
}

func capped(areas []OpenArea, n int) []OpenArea {
	if len(areas) > n {
		return areas[:n]
	}
	return areas
}

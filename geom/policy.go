package geom

// Policy holds the tunable constants validators are judged against. These are
// fields on a struct rather than package-level consts (spec.md §6 calls them
// "tunable") so tests can construct an isolated policy instead of mutating
// shared globals.
type Policy struct {
	PrimitiveCost       int
	MinOriginExclusion  float64
	MinBuildRange       float64
	MaxBuildRange       float64
	SettlementThreshold int
	SettlementMax       float64
	FrontierMin         float64
	FrontierMax         float64
	NodeExpansionGate   int
}

// DefaultPolicy returns the constants named in spec.md §6.
func DefaultPolicy() Policy {
	return Policy{
		PrimitiveCost:       1,
		MinOriginExclusion:  50,
		MinBuildRange:       2,
		MaxBuildRange:       20,
		SettlementThreshold: 5,
		SettlementMax:       601,
		FrontierMin:         200,
		FrontierMax:         600,
		NodeExpansionGate:   25,
	}
}

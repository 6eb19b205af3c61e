package geom

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValidatePlacementGroundSnap(t *testing.T) {
	Convey("Given a box placed above the ground plane", t, func() {
		result := ValidatePlacement(ShapeBox, Vec3{X: 105, Y: 0, Z: 100}, Vec3{X: 1, Y: 1, Z: 1}, nil)

		Convey("It should reject with a correctedY of half the height", func() {
			So(result.Valid, ShouldBeFalse)
			So(result.Err, ShouldNotBeNil)
			So(result.Err.Kind, ShouldEqual, KindFloating)
			So(*result.CorrectedY, ShouldEqual, 0.5)
		})

		Convey("Applying the correction should then validate", func() {
			corrected := ValidatePlacement(ShapeBox, Vec3{X: 105, Y: *result.CorrectedY, Z: 100}, Vec3{X: 1, Y: 1, Z: 1}, nil)
			So(corrected.Valid, ShouldBeTrue)
		})
	})
}

func TestValidatePlacementStacking(t *testing.T) {
	Convey("Given a box resting atop another box", t, func() {
		base := PrimitiveInfo{Shape: ShapeBox, Position: Vec3{X: 0, Y: 0.5, Z: 0}, Scale: Vec3{X: 2, Y: 1, Z: 2}}

		Convey("A box placed at the base's top should validate without correction", func() {
			result := ValidatePlacement(ShapeBox, Vec3{X: 0, Y: 1.5, Z: 0}, Vec3{X: 1, Y: 1, Z: 1}, []PrimitiveInfo{base})
			So(result.Valid, ShouldBeTrue)
			So(result.Err, ShouldBeNil)
		})

		Convey("A box placed below the resting height should be corrected upward", func() {
			result := ValidatePlacement(ShapeBox, Vec3{X: 0, Y: 0.5, Z: 0}, Vec3{X: 1, Y: 1, Z: 1}, []PrimitiveInfo{base})
			So(result.Valid, ShouldBeFalse)
			So(*result.CorrectedY, ShouldEqual, 1.5)
		})
	})
}

func TestValidatePlacementExemptShapesSkipPhysics(t *testing.T) {
	Convey("Given a plane floating above the ground", t, func() {
		result := ValidatePlacement(ShapePlane, Vec3{X: 0, Y: 50, Z: 0}, Vec3{X: 10, Y: 0.01, Z: 10}, nil)
		Convey("It should pass unconditionally", func() {
			So(result.Valid, ShouldBeTrue)
		})
	})
}

func TestValidatePlacementOverlapRejected(t *testing.T) {
	Convey("Given an existing box", t, func() {
		existing := PrimitiveInfo{Shape: ShapeBox, Position: Vec3{X: 0, Y: 0.5, Z: 0}, Scale: Vec3{X: 2, Y: 1, Z: 2}}
		Convey("Placing a box that sinks into the one below, within the snap tolerance, should be rejected as overlapping", func() {
			result := ValidatePlacement(ShapeBox, Vec3{X: 0.5, Y: 1.495, Z: 0}, Vec3{X: 1, Y: 1, Z: 1}, []PrimitiveInfo{existing})
			So(result.Valid, ShouldBeFalse)
			So(result.Err.Kind, ShouldEqual, KindOverlap)
		})
	})
}

func TestCheckOriginExclusion(t *testing.T) {
	policy := DefaultPolicy()
	Convey("Given a point closer to the origin than the exclusion radius", t, func() {
		err := CheckOriginExclusion(10, 10, policy)
		Convey("It should be rejected", func() {
			So(err, ShouldNotBeNil)
			So(err.Kind, ShouldEqual, KindOrigin)
		})
	})
	Convey("Given a point outside the exclusion radius", t, func() {
		err := CheckOriginExclusion(100, 0, policy)
		Convey("It should pass", func() {
			So(err, ShouldBeNil)
		})
	})
}

func TestCheckSettlementProximityBootstrap(t *testing.T) {
	policy := DefaultPolicy()
	Convey("Given fewer primitives than the settlement threshold", t, func() {
		err := CheckSettlementProximity(700, 700, nil, policy, nil)
		Convey("Any placement should pass (bootstrap)", func() {
			So(err, ShouldBeNil)
		})
	})
}

func TestCheckSettlementProximityTooFar(t *testing.T) {
	policy := DefaultPolicy()
	cluster := make([]PrimitiveInfo, 0, policy.SettlementThreshold+1)
	for i := 0; i < policy.SettlementThreshold+1; i++ {
		cluster = append(cluster, PrimitiveInfo{Shape: ShapeBox, Position: Vec3{X: 100 + float64(i), Y: 0.5, Z: 100}, Scale: Vec3{X: 1, Y: 1, Z: 1}})
	}

	Convey("Given a settled cluster and a far-away target", t, func() {
		err := CheckSettlementProximity(705, 705, cluster, policy, nil)
		Convey("It should be rejected as settlement-too-far", func() {
			So(err, ShouldNotBeNil)
			So(err.Kind, ShouldEqual, KindSettleFar)
		})
	})
}

func TestCheckSettlementProximityExpansionGate(t *testing.T) {
	policy := DefaultPolicy()
	cluster := make([]PrimitiveInfo, 0, 10)
	for i := 0; i < 10; i++ {
		cluster = append(cluster, PrimitiveInfo{Shape: ShapeBox, Position: Vec3{X: 100, Y: 0.5, Z: 100 + float64(i)}, Scale: Vec3{X: 1, Y: 1, Z: 1}})
	}
	lookup := func(x, z float64) (NearestNodeInfo, bool) {
		return NearestNodeInfo{Name: "server-node-1", StructureCount: 10}, true
	}

	Convey("Given a frontier-distance target near an under-developed node", t, func() {
		err := CheckSettlementProximity(305, 305, cluster, policy, lookup)
		Convey("It should be rejected by the expansion gate", func() {
			So(err, ShouldNotBeNil)
			So(err.Kind, ShouldEqual, KindExpansion)
		})
	})

	Convey("Given the same target once the node has grown past the gate", t, func() {
		grownLookup := func(x, z float64) (NearestNodeInfo, bool) {
			return NearestNodeInfo{Name: "server-node-1", StructureCount: 25}, true
		}
		err := CheckSettlementProximity(305, 305, cluster, policy, grownLookup)
		Convey("It should pass", func() {
			So(err, ShouldBeNil)
		})
	})
}

func TestCheckBuildRangeFromAgent(t *testing.T) {
	policy := DefaultPolicy()
	agent := Vec2XZ{X: 0, Z: 0}

	cases := []struct {
		name    string
		target  Vec2XZ
		wantErr bool
	}{
		{"too close", Vec2XZ{X: 1, Z: 0}, true},
		{"too far", Vec2XZ{X: 30, Z: 30}, true},
		{"in range", Vec2XZ{X: 10, Z: 0}, false},
	}

	for _, c := range cases {
		err := CheckBuildRangeFromAgent(agent, c.target, policy)
		if c.wantErr && err == nil {
			t.Errorf("%s: expected out-of-range error, got nil", c.name)
		}
		if !c.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", c.name, err)
		}
	}
}

func TestIsConnector(t *testing.T) {
	Convey("A plane is always a connector", t, func() {
		So(IsConnector(PrimitiveInfo{Shape: ShapePlane, Scale: Vec3{X: 1, Y: 1, Z: 1}}), ShouldBeTrue)
	})
	Convey("A thin wide box is a connector", t, func() {
		So(IsConnector(PrimitiveInfo{Shape: ShapeBox, Scale: Vec3{X: 2, Y: 0.1, Z: 2}}), ShouldBeTrue)
	})
	Convey("A cube box is not a connector", t, func() {
		So(IsConnector(PrimitiveInfo{Shape: ShapeBox, Scale: Vec3{X: 1, Y: 1, Z: 1}}), ShouldBeFalse)
	})
	Convey("A sphere is never a connector", t, func() {
		So(IsConnector(PrimitiveInfo{Shape: ShapeSphere, Scale: Vec3{X: 5, Y: 0.1, Z: 5}}), ShouldBeFalse)
	})
}

package spatial

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"weltgrid/geom"
	"weltgrid/worldstore"
)

func addBox(store *worldstore.Store, id string, x, z float64) {
	store.AddPrimitive(worldstore.Primitive{
		ID: id, Shape: geom.ShapeBox,
		Position: geom.Vec3{X: x, Y: 0.5, Z: z},
		Scale:    geom.Vec3{X: 1, Y: 1, Z: 1},
	})
}

func TestStructuresGroupTouchingPrimitivesAndSeparateFarOnes(t *testing.T) {
	Convey("Given two tight clusters far apart", t, func() {
		store := worldstore.New(time.Minute)
		for i := 0; i < 3; i++ {
			addBox(store, idFor(i), 100+float64(i), 100)
		}
		for i := 0; i < 3; i++ {
			addBox(store, idFor(i+10), 500+float64(i), 500)
		}

		Convey("Two distinct structures are found, one per cluster", func() {
			a := NewAnalyzer(store, geom.DefaultPolicy())
			summary := a.Summary()
			So(len(summary.Structures), ShouldEqual, 2)
			for _, s := range summary.Structures {
				So(s.PrimitiveCount, ShouldEqual, 3)
			}
		})
	})
}

func idFor(i int) string {
	return "prim-" + string(rune('a'+i))
}

func TestNodeTierFollowsStructureCount(t *testing.T) {
	Convey("Given six disconnected single-box structures", t, func() {
		store := worldstore.New(time.Minute)
		for i := 0; i < 6; i++ {
			addBox(store, idFor(i), 100+float64(i)*10, 100+float64(i)*10)
		}

		Convey("They form one node at the server tier", func() {
			a := NewAnalyzer(store, geom.DefaultPolicy())
			summary := a.Summary()
			So(len(summary.Nodes), ShouldEqual, 1)
			So(summary.Nodes[0].Tier, ShouldEqual, "server")
			So(summary.Nodes[0].StructureCount, ShouldEqual, 6)
		})
	})
}

func TestSummaryIsCachedUntilRevisionChanges(t *testing.T) {
	Convey("Given an analyzer over an empty store", t, func() {
		store := worldstore.New(time.Minute)
		a := NewAnalyzer(store, geom.DefaultPolicy())

		first := a.Summary()
		Convey("A second call with no world change returns the same cached revision", func() {
			second := a.Summary()
			So(second.PrimitiveRevision, ShouldEqual, first.PrimitiveRevision)

			Convey("Adding a primitive invalidates the cache", func() {
				addBox(store, "new", 100, 100)
				third := a.Summary()
				So(third.PrimitiveRevision, ShouldBeGreaterThan, first.PrimitiveRevision)
			})
		})
	})
}

func TestNearestNodeSatisfiesActionNodeLookup(t *testing.T) {
	Convey("Given an empty world", t, func() {
		store := worldstore.New(time.Minute)
		a := NewAnalyzer(store, geom.DefaultPolicy())

		Convey("NearestNode reports no node", func() {
			_, ok := a.NearestNode(0, 0)
			So(ok, ShouldBeFalse)
		})

		Convey("Once a node exists, NearestNode finds it", func() {
			for i := 0; i < 6; i++ {
				addBox(store, idFor(i), 100+float64(i)*10, 100)
			}
			info, ok := a.NearestNode(100, 100)
			So(ok, ShouldBeTrue)
			So(info.StructureCount, ShouldEqual, 6)
		})
	})
}

func TestOpenAreasBootstrapBeforeSettlementThreshold(t *testing.T) {
	Convey("Given a world with only two primitives", t, func() {
		store := worldstore.New(time.Minute)
		addBox(store, "a", 100, 100)
		addBox(store, "b", 102, 100)

		Convey("Open areas fall back to ring-sampled bootstrap sites", func() {
			a := NewAnalyzer(store, geom.DefaultPolicy())
			summary := a.Summary()
			So(len(summary.OpenAreas), ShouldBeGreaterThan, 0)
		})
	})
}

package worldstore

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"weltgrid/geom"
)

func TestAgentLifecycle(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := New(time.Minute)

		Convey("Adding an agent makes it retrievable and counts toward agentsOnline", func() {
			s.AddAgent(Agent{ID: "a1", OwnerID: "0xabc", Position: geom.Vec3{}, LastSeenAt: time.Now()})
			a, ok := s.GetAgent("a1")
			So(ok, ShouldBeTrue)
			So(a.OwnerID, ShouldEqual, "0xabc")
			So(s.GetAgentCount(), ShouldEqual, 1)
		})

		Convey("The same owner cannot be online twice", func() {
			s.AddAgent(Agent{ID: "a1", OwnerID: "0xabc", LastSeenAt: time.Now()})
			_, onlineBefore := s.IsOwnerOnline("0xabc")
			So(onlineBefore, ShouldBeTrue)
		})

		Convey("Removing an agent clears it from both maps", func() {
			s.AddAgent(Agent{ID: "a1", OwnerID: "0xabc", LastSeenAt: time.Now()})
			s.RemoveAgent("a1")
			_, ok := s.GetAgent("a1")
			So(ok, ShouldBeFalse)
			_, onlineAfter := s.IsOwnerOnline("0xabc")
			So(onlineAfter, ShouldBeFalse)
		})
	})
}

func TestLivenessSweeper(t *testing.T) {
	Convey("Given an agent last seen beyond the liveness horizon", t, func() {
		s := New(10 * time.Millisecond)
		s.AddAgent(Agent{ID: "stale", OwnerID: "0xstale", LastSeenAt: time.Now().Add(-time.Hour)})
		s.AddAgent(Agent{ID: "fresh", OwnerID: "0xfresh", LastSeenAt: time.Now()})

		Convey("SweepLiveness evicts only the stale agent", func() {
			evicted := s.SweepLiveness(time.Now())
			So(evicted, ShouldResemble, []string{"stale"})
			So(s.GetAgentCount(), ShouldEqual, 1)
			_, ok := s.GetAgent("fresh")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestPrimitiveRevisionMonotonicity(t *testing.T) {
	Convey("Given a store with no primitives", t, func() {
		s := New(time.Minute)
		So(s.GetPrimitiveRevision(), ShouldEqual, 0)

		Convey("Adding a primitive bumps the revision by exactly one", func() {
			s.AddPrimitive(Primitive{ID: "p1", Shape: geom.ShapeBox, Position: geom.Vec3{X: 1, Y: 0.5, Z: 1}, Scale: geom.Vec3{X: 1, Y: 1, Z: 1}})
			So(s.GetPrimitiveRevision(), ShouldEqual, 1)
			So(s.GetWorldPrimitiveCount(), ShouldEqual, 1)
		})

		Convey("Removing a primitive also bumps the revision", func() {
			s.AddPrimitive(Primitive{ID: "p1"})
			s.RemovePrimitive("p1")
			So(s.GetPrimitiveRevision(), ShouldEqual, 2)
			So(s.GetWorldPrimitiveCount(), ShouldEqual, 0)
		})

		Convey("Removing a primitive that doesn't exist leaves the revision unchanged", func() {
			ok := s.RemovePrimitive("missing")
			So(ok, ShouldBeFalse)
			So(s.GetPrimitiveRevision(), ShouldEqual, 0)
		})
	})
}

func TestGetPrimitivesSnapshotOrdering(t *testing.T) {
	Convey("Given three primitives added in sequence", t, func() {
		s := New(time.Minute)
		s.AddPrimitive(Primitive{ID: "p1"})
		s.AddPrimitive(Primitive{ID: "p2"})
		s.AddPrimitive(Primitive{ID: "p3"})

		Convey("GetPrimitives preserves insertion order", func() {
			snap := s.GetPrimitives()
			So(len(snap), ShouldEqual, 3)
			So(snap[0].ID, ShouldEqual, "p1")
			So(snap[1].ID, ShouldEqual, "p2")
			So(snap[2].ID, ShouldEqual, "p3")
		})
	})
}

func TestBlueprintPlanLifecycle(t *testing.T) {
	Convey("Given an agent with no active plan", t, func() {
		s := New(time.Minute)
		_, ok := s.GetBuildPlan("a1")
		So(ok, ShouldBeFalse)

		Convey("SetBuildPlan registers both the plan and its reservation", func() {
			plan := BlueprintPlan{AgentID: "a1", BlueprintName: "BRIDGE", TotalPrimitives: 11}
			box := geom.AABB{MinX: 0, MaxX: 10, MinZ: 0, MaxZ: 10}
			s.SetBuildPlan(plan, box)

			got, ok := s.GetBuildPlan("a1")
			So(ok, ShouldBeTrue)
			So(got.TotalPrimitives, ShouldEqual, 11)

			reservations := s.Reservations("")
			So(len(reservations), ShouldEqual, 1)
		})

		Convey("ClearBuildPlan removes both", func() {
			plan := BlueprintPlan{AgentID: "a1", BlueprintName: "BRIDGE"}
			s.SetBuildPlan(plan, geom.AABB{})
			s.ClearBuildPlan("a1")
			_, ok := s.GetBuildPlan("a1")
			So(ok, ShouldBeFalse)
			So(s.Reservations(""), ShouldBeEmpty)
		})

		Convey("Reservations excludes the querying agent's own footprint", func() {
			s.SetBuildPlan(BlueprintPlan{AgentID: "a1"}, geom.AABB{})
			s.SetBuildPlan(BlueprintPlan{AgentID: "a2"}, geom.AABB{})
			others := s.Reservations("a1")
			So(len(others), ShouldEqual, 1)
			So(others[0].AgentID, ShouldEqual, "a2")
		})
	})
}

func TestTickInterpolatesMovingAgents(t *testing.T) {
	Convey("Given an agent moving toward a target 10 units away", t, func() {
		s := New(time.Minute)
		s.AddAgent(Agent{ID: "a1", Position: geom.Vec3{X: 0, Y: 0, Z: 0}, TargetPosition: geom.Vec3{X: 10, Y: 0, Z: 0}, Status: StatusMoving})

		Convey("One tick at speed 4 moves it partway and keeps status moving", func() {
			s.Tick(4)
			a, _ := s.GetAgent("a1")
			So(a.Position.X, ShouldEqual, 4)
			So(a.Status, ShouldEqual, StatusMoving)
		})

		Convey("A tick that reaches or passes the target snaps to it and goes idle", func() {
			s.Tick(4)
			s.Tick(4)
			s.Tick(4)
			a, _ := s.GetAgent("a1")
			So(a.Position.X, ShouldEqual, 10)
			So(a.Status, ShouldEqual, StatusIdle)
		})
	})
}

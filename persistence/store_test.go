package persistence

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"weltgrid/action"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAgentRoundTrip(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := openTestStore(t)

		Convey("Upserting an agent and reading it back preserves its fields", func() {
			agent := worldstore.Agent{
				ID: "a1", OwnerID: "owner1", Name: "scout", Color: "#ff0000",
				Position:   geom.Vec3{X: 1, Y: 0, Z: 2},
				Status:     worldstore.StatusMoving,
				LastSeenAt: time.Now().Truncate(time.Second),
			}
			So(store.UpsertAgent(agent), ShouldBeNil)

			got, ok, err := store.GetAgent("a1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got.Name, ShouldEqual, "scout")
			So(got.Status, ShouldEqual, worldstore.StatusMoving)
			So(got.Position.X, ShouldEqual, 1)
		})

		Convey("Upserting the same id twice updates rather than duplicates", func() {
			store.UpsertAgent(worldstore.Agent{ID: "a1", Name: "first", LastSeenAt: time.Now()})
			store.UpsertAgent(worldstore.Agent{ID: "a1", Name: "second", LastSeenAt: time.Now()})

			agents, err := store.LoadAgents()
			So(err, ShouldBeNil)
			So(len(agents), ShouldEqual, 1)
			So(agents[0].Name, ShouldEqual, "second")
		})

		Convey("ListAgentsInRadius only returns agents within range", func() {
			store.UpsertAgent(worldstore.Agent{ID: "near", Position: geom.Vec3{X: 5, Z: 5}, LastSeenAt: time.Now()})
			store.UpsertAgent(worldstore.Agent{ID: "far", Position: geom.Vec3{X: 500, Z: 500}, LastSeenAt: time.Now()})

			nearby, err := store.ListAgentsInRadius(0, 0, 20)
			So(err, ShouldBeNil)
			So(len(nearby), ShouldEqual, 1)
			So(nearby[0].ID, ShouldEqual, "near")
		})
	})
}

func TestCreatePrimitiveWithCreditDebit(t *testing.T) {
	Convey("Given an agent with 100 credits", t, func() {
		store := openTestStore(t)
		_, err := store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "a1", 100)
		So(err, ShouldBeNil)

		primitive := worldstore.Primitive{
			ID: "p1", OwnerAgentID: "a1", OwnerAgentName: "scout", Shape: geom.ShapeBox,
			Position: geom.Vec3{X: 0, Y: 0.5, Z: 0}, Scale: geom.Vec3{X: 1, Y: 1, Z: 1},
			CreatedAt: time.Now(),
		}

		Convey("Placing a primitive costing 40 debits the balance and persists the row", func() {
			So(store.CreatePrimitiveWithCreditDebit(primitive, 40), ShouldBeNil)

			balance, err := store.GetCredits("a1")
			So(err, ShouldBeNil)
			So(balance, ShouldEqual, 60)

			primitives, err := store.LoadPrimitives()
			So(err, ShouldBeNil)
			So(len(primitives), ShouldEqual, 1)
		})

		Convey("Placing a primitive costing more than the balance fails and leaves it untouched", func() {
			err := store.CreatePrimitiveWithCreditDebit(primitive, 1000)
			So(err, ShouldEqual, ErrInsufficientCredits)

			balance, _ := store.GetCredits("a1")
			So(balance, ShouldEqual, 100)

			primitives, _ := store.LoadPrimitives()
			So(len(primitives), ShouldEqual, 0)
		})

		Convey("Placing the same primitive id twice fails the second time", func() {
			So(store.CreatePrimitiveWithCreditDebit(primitive, 10), ShouldBeNil)
			err := store.CreatePrimitiveWithCreditDebit(primitive, 10)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDeleteAndClearPrimitives(t *testing.T) {
	Convey("Given a store with two primitives", t, func() {
		store := openTestStore(t)
		store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "a1", 100)
		p1 := worldstore.Primitive{ID: "p1", OwnerAgentID: "a1", Shape: geom.ShapeBox, CreatedAt: time.Now()}
		p2 := worldstore.Primitive{ID: "p2", OwnerAgentID: "a1", Shape: geom.ShapeBox, CreatedAt: time.Now()}
		store.CreatePrimitiveWithCreditDebit(p1, 0)
		store.CreatePrimitiveWithCreditDebit(p2, 0)

		Convey("DeletePrimitive removes only the named one", func() {
			So(store.DeletePrimitive("p1"), ShouldBeNil)
			primitives, _ := store.LoadPrimitives()
			So(len(primitives), ShouldEqual, 1)
			So(primitives[0].ID, ShouldEqual, "p2")
		})

		Convey("ClearAllPrimitives empties the table", func() {
			So(store.ClearAllPrimitives(), ShouldBeNil)
			primitives, _ := store.LoadPrimitives()
			So(len(primitives), ShouldEqual, 0)
		})
	})
}

func TestTransferCredits(t *testing.T) {
	Convey("Given two agents with balances", t, func() {
		store := openTestStore(t)
		store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "a1", 100)
		store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "a2", 10)

		Convey("Transferring moves the amount between them", func() {
			So(store.TransferCredits("a1", "a2", 30), ShouldBeNil)

			fromBalance, _ := store.GetCredits("a1")
			toBalance, _ := store.GetCredits("a2")
			So(fromBalance, ShouldEqual, 70)
			So(toBalance, ShouldEqual, 40)
		})
	})
}

func TestUsedTxHashDedup(t *testing.T) {
	Convey("Given a fresh tx hash", t, func() {
		store := openTestStore(t)

		used, err := store.IsTxHashUsed("0xabc")
		So(err, ShouldBeNil)
		So(used, ShouldBeFalse)

		Convey("Recording it marks it used, and recording again is a harmless no-op", func() {
			So(store.RecordUsedTxHash("0xabc"), ShouldBeNil)
			So(store.RecordUsedTxHash("0xabc"), ShouldBeNil)

			used, err := store.IsTxHashUsed("0xabc")
			So(err, ShouldBeNil)
			So(used, ShouldBeTrue)
		})
	})
}

func TestBlueprintPlanRoundTrip(t *testing.T) {
	Convey("Given a blueprint plan with primitives and phases", t, func() {
		store := openTestStore(t)
		plan := worldstore.BlueprintPlan{
			AgentID: "a1", BlueprintName: "watchtower",
			Anchor: geom.Vec2XZ{X: 10, Z: 10},
			AllPrimitives: []worldstore.PlannedPrimitive{
				{Shape: geom.ShapeBox, Position: geom.Vec3{X: 10, Z: 10}, Scale: geom.Vec3{X: 1, Y: 1, Z: 1}},
			},
			Phases:          []worldstore.BlueprintPhase{{Name: "foundation", Count: 1}},
			TotalPrimitives: 1,
			StartedAt:       time.Now(),
		}

		Convey("Upserting then loading reproduces the plan", func() {
			So(store.UpsertBlueprintBuildPlan(plan), ShouldBeNil)

			plans, err := store.LoadBlueprintBuildPlans()
			So(err, ShouldBeNil)
			So(len(plans), ShouldEqual, 1)
			So(plans[0].BlueprintName, ShouldEqual, "watchtower")
			So(len(plans[0].AllPrimitives), ShouldEqual, 1)
			So(plans[0].Phases[0].Name, ShouldEqual, "foundation")
		})

		Convey("Deleting it removes the row", func() {
			store.UpsertBlueprintBuildPlan(plan)
			So(store.DeleteBlueprintBuildPlan("a1"), ShouldBeNil)

			plans, _ := store.LoadBlueprintBuildPlans()
			So(len(plans), ShouldEqual, 0)
		})
	})
}

func TestChatAndTerminalLogs(t *testing.T) {
	Convey("Given a store with several chat and terminal entries", t, func() {
		store := openTestStore(t)
		for i := 0; i < 3; i++ {
			store.WriteChatMessage(action.ChatMessage{AgentID: "a1", AgentName: "scout", Message: "hi", CreatedAt: time.Now()})
			store.WriteTerminalMessage(action.TerminalMessage{Message: "built a box", CreatedAt: time.Now()})
		}

		Convey("ListRecentChat returns the most recent entries first, capped by limit", func() {
			chat, err := store.ListRecentChat(2)
			So(err, ShouldBeNil)
			So(len(chat), ShouldEqual, 2)
		})

		Convey("ListRecentTerminal behaves the same way", func() {
			terminal, err := store.ListRecentTerminal(2)
			So(err, ShouldBeNil)
			So(len(terminal), ShouldEqual, 2)
		})
	})
}

func TestDirectiveLifecycle(t *testing.T) {
	Convey("Given an open directive with two voters", t, func() {
		store := openTestStore(t)
		store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "voter1", 0)
		store.db.Exec(`INSERT INTO credits (agent_id, balance) VALUES (?, ?)`, "voter2", 0)

		So(store.CreateDirective("d1", "build a wall"), ShouldBeNil)
		So(store.CastVote("d1", "voter1"), ShouldBeNil)
		So(store.CastVote("d1", "voter2"), ShouldBeNil)
		So(store.CastVote("d1", "voter1"), ShouldBeNil) // duplicate vote is a no-op

		Convey("Completing it is idempotent", func() {
			So(store.CompleteDirective("d1"), ShouldBeNil)
			So(store.CompleteDirective("d1"), ShouldBeNil)
		})

		Convey("Rewarding voters credits each exactly once", func() {
			voters, err := store.RewardDirectiveVoters("d1", 25)
			So(err, ShouldBeNil)
			So(len(voters), ShouldEqual, 2)

			balance, _ := store.GetCredits("voter1")
			So(balance, ShouldEqual, 25)
		})
	})
}

func TestAgentMemoryBounds(t *testing.T) {
	Convey("Given a fresh memory store for one agent", t, func() {
		store := openTestStore(t)
		memory := NewMemoryStore(store)

		Convey("Setting and getting a key round-trips", func() {
			So(memory.SetAgentMemory("a1", "home", "(10,0,10)"), ShouldBeNil)

			value, ok, err := memory.GetAgentMemory("a1", "home")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(value, ShouldEqual, "(10,0,10)")
		})

		Convey("A value over 10KB is rejected", func() {
			huge := make([]byte, 10*1024+1)
			err := memory.SetAgentMemory("a1", "big", string(huge))
			So(err, ShouldEqual, ErrMemoryValueTooBig)
		})

		Convey("A second write within 5 seconds is rate limited", func() {
			So(memory.SetAgentMemory("a1", "k1", "v1"), ShouldBeNil)
			err := memory.SetAgentMemory("a1", "k2", "v2")
			So(err, ShouldEqual, ErrMemoryWriteTooSoon)
		})

		Convey("Deleting a key removes it", func() {
			memory.SetAgentMemory("a1", "home", "here")
			So(memory.DeleteAgentMemory("a1", "home"), ShouldBeNil)

			_, ok, _ := memory.GetAgentMemory("a1", "home")
			So(ok, ShouldBeFalse)
		})
	})
}

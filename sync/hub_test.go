package sync

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"weltgrid/action"
	"weltgrid/economy"
	"weltgrid/geom"
	"weltgrid/spatial"
	"weltgrid/worldstore"
)

func TestHubFansOutToEverySubscriber(t *testing.T) {
	Convey("Given a hub with two subscribers", t, func() {
		hub := NewHub()
		events1, unsub1 := hub.Subscribe("c1")
		events2, unsub2 := hub.Subscribe("c2")
		defer unsub1()
		defer unsub2()

		So(hub.SubscriberCount(), ShouldEqual, 2)

		Convey("Publishing one event delivers it to both", func() {
			hub.Publish(action.Event{Kind: action.EventChat})

			select {
			case evt := <-events1:
				So(evt.Kind, ShouldEqual, action.EventChat)
			case <-time.After(time.Second):
				t.Fatal("subscriber 1 never received the event")
			}
			select {
			case evt := <-events2:
				So(evt.Kind, ShouldEqual, action.EventChat)
			case <-time.After(time.Second):
				t.Fatal("subscriber 2 never received the event")
			}
		})
	})
}

func TestHubPublishNeverBlocksOnAFullSubscriber(t *testing.T) {
	Convey("Given a subscriber that never drains its channel", t, func() {
		hub := NewHub()
		_, unsub := hub.Subscribe("slow")
		defer unsub()

		Convey("Publishing far more events than the buffer holds does not block", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < subscriberBuffer*4; i++ {
					hub.Publish(action.Event{Kind: action.EventChat})
				}
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("Publish blocked on a full subscriber channel")
			}
		})
	})
}

func TestUnsubscribeRemovesAndClosesTheChannel(t *testing.T) {
	Convey("Given a hub with one subscriber", t, func() {
		hub := NewHub()
		events, unsub := hub.Subscribe("c1")

		Convey("Unsubscribing drops the count and closes the channel", func() {
			unsub()
			So(hub.SubscriberCount(), ShouldEqual, 0)
			_, ok := <-events
			So(ok, ShouldBeFalse)
		})
	})
}

func TestReadSurfacesReflectStoreState(t *testing.T) {
	Convey("Given a store with one agent and one primitive", t, func() {
		store := worldstore.New(time.Minute)
		store.AddAgent(worldstore.Agent{ID: "a1", Name: "scout", LastSeenAt: time.Now()})
		store.AddPrimitive(worldstore.Primitive{
			ID: "p1", Shape: geom.ShapeBox,
			Position: geom.Vec3{X: 1, Y: 0.5, Z: 1}, Scale: geom.Vec3{X: 1, Y: 1, Z: 1},
		})

		Convey("StateLite reports the right counts", func() {
			lite := GetStateLite(store)
			So(lite.AgentCount, ShouldEqual, 1)
			So(lite.PrimitiveCount, ShouldEqual, 1)
			So(lite.ETag, ShouldNotBeEmpty)
		})

		Convey("AgentsLite reports the agent by id", func() {
			lite := GetAgentsLite(store)
			So(len(lite.Agents), ShouldEqual, 1)
			So(lite.Agents[0].ID, ShouldEqual, "a1")
		})

		Convey("State includes the full agent and primitive records", func() {
			state := GetState(store)
			So(len(state.Agents), ShouldEqual, 1)
			So(len(state.Primitives), ShouldEqual, 1)
		})

		Convey("SpatialSummary wraps the analyzer's derived view", func() {
			analyzer := spatial.NewAnalyzer(store, geom.DefaultPolicy())
			view := GetSpatialSummary(store, analyzer)
			So(view.Summary.PrimitiveRevision, ShouldEqual, store.GetPrimitiveRevision())
		})

		Convey("CreditsFor reads through to the ledger", func() {
			ledger := economy.New(economy.DefaultRefillPolicy(), nil)
			ledger.Grant("a1", 7)
			So(CreditsFor(ledger, "a1"), ShouldEqual, 7)
		})
	})
}

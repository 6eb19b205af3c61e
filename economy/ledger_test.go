package economy

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"weltgrid/geom"
	"weltgrid/worldstore"
)

func TestGetCreditsDefaultsToZero(t *testing.T) {
	Convey("Given a ledger with no grants", t, func() {
		l := New(DefaultRefillPolicy(), nil)
		Convey("An unknown agent's balance is zero, not an error", func() {
			So(l.GetCredits("nobody"), ShouldEqual, 0)
		})
	})
}

func TestTransfer(t *testing.T) {
	Convey("Given two agents with balances", t, func() {
		l := New(DefaultRefillPolicy(), nil)
		l.Grant("a1", 10)
		l.Grant("a2", 0)

		Convey("A valid transfer moves credits between them", func() {
			err := l.Transfer("a1", "a2", 4)
			So(err, ShouldBeNil)
			So(l.GetCredits("a1"), ShouldEqual, 6)
			So(l.GetCredits("a2"), ShouldEqual, 4)
		})

		Convey("Transferring more than the balance fails and changes nothing", func() {
			err := l.Transfer("a1", "a2", 100)
			So(err, ShouldNotBeNil)
			So(l.GetCredits("a1"), ShouldEqual, 10)
			So(l.GetCredits("a2"), ShouldEqual, 0)
		})

		Convey("Transferring to oneself is rejected", func() {
			err := l.Transfer("a1", "a1", 1)
			So(err, ShouldEqual, ErrSameAgent)
		})

		Convey("A non-positive amount is rejected", func() {
			err := l.Transfer("a1", "a2", 0)
			So(err, ShouldEqual, ErrAmountNotPositive)
		})
	})
}

func TestRefillIsRollingPerAgentAndNeverResetsDown(t *testing.T) {
	Convey("Given a solo agent above the refill floor", t, func() {
		l := New(DefaultRefillPolicy(), nil)
		l.Grant("a1", 900)
		now := time.Now()

		Convey("A due refill grants on top of the existing balance rather than resetting it", func() {
			due := l.RefillIfDue("a1", now)
			So(due, ShouldBeTrue)
			So(l.GetCredits("a1"), ShouldEqual, 1400)
		})

		Convey("A second refill within the same 24h window is a no-op", func() {
			l.RefillIfDue("a1", now)
			due := l.RefillIfDue("a1", now.Add(time.Hour))
			So(due, ShouldBeFalse)
			So(l.GetCredits("a1"), ShouldEqual, 1400)
		})

		Convey("A refill after the rolling period elapses grants again", func() {
			l.RefillIfDue("a1", now)
			due := l.RefillIfDue("a1", now.Add(25*time.Hour))
			So(due, ShouldBeTrue)
			So(l.GetCredits("a1"), ShouldEqual, 1900)
		})
	})
}

type fakeGuilds map[string]bool

func (f fakeGuilds) IsGuildMember(agentID string) bool { return f[agentID] }

func TestRefillGuildTier(t *testing.T) {
	Convey("Given a guild member with no prior balance", t, func() {
		l := New(DefaultRefillPolicy(), fakeGuilds{"guildmate": true})
		l.RefillIfDue("guildmate", time.Now())
		Convey("The guild refill amount is granted, not the solo amount", func() {
			So(l.GetCredits("guildmate"), ShouldEqual, 750)
		})
	})
}

func TestDebitAndPlaceAtomicity(t *testing.T) {
	Convey("Given a ledger with exactly enough credits for one primitive", t, func() {
		l := New(DefaultRefillPolicy(), nil)
		l.Grant("a1", 1)
		store := worldstore.New(time.Minute)

		build := func(nearby []geom.PrimitiveInfo) (worldstore.Primitive, *geom.ValidationError) {
			return worldstore.Primitive{ID: "p1", Shape: geom.ShapeBox, Position: geom.Vec3{X: 100, Y: 0.5, Z: 100}, Scale: geom.Vec3{X: 1, Y: 1, Z: 1}}, nil
		}

		Convey("A successful placement debits credits and inserts the primitive together", func() {
			placed, ok, reason := l.DebitAndPlace(store, "a1", 1, build)
			So(ok, ShouldBeTrue)
			So(reason, ShouldBeEmpty)
			So(placed.ID, ShouldEqual, "p1")
			So(l.GetCredits("a1"), ShouldEqual, 0)
			So(store.GetWorldPrimitiveCount(), ShouldEqual, 1)
		})

		Convey("Insufficient credits rejects before ever calling the store", func() {
			l2 := New(DefaultRefillPolicy(), nil)
			_, ok, reason := l2.DebitAndPlace(store, "a1", 1, build)
			So(ok, ShouldBeFalse)
			So(reason, ShouldEqual, ReasonInsufficientCredits)
			So(store.GetWorldPrimitiveCount(), ShouldEqual, 0)
		})

		Convey("A rejected placement leaves credits untouched", func() {
			rejecting := func(nearby []geom.PrimitiveInfo) (worldstore.Primitive, *geom.ValidationError) {
				return worldstore.Primitive{}, &geom.ValidationError{Kind: geom.KindOverlap, Message: "overlap"}
			}
			_, ok, reason := l.DebitAndPlace(store, "a1", 1, rejecting)
			So(ok, ShouldBeFalse)
			So(reason, ShouldEqual, ReasonOverlap)
			So(l.GetCredits("a1"), ShouldEqual, 1)
		})
	})
}

func TestDirectiveCompleteIsIdempotent(t *testing.T) {
	Convey("Given a directive with two voters", t, func() {
		board := NewDirectiveBoard()
		l := New(DefaultRefillPolicy(), nil)
		board.Create("d1", "build a bridge")
		board.CastVote("d1", "a1")
		board.CastVote("d1", "a2")

		Convey("Completing it once rewards both voters", func() {
			voters, err := board.Complete("d1")
			So(err, ShouldBeNil)
			l.RewardDirectiveVoters(voters, 50)
			So(l.GetCredits("a1"), ShouldEqual, 50)
			So(l.GetCredits("a2"), ShouldEqual, 50)
		})

		Convey("Completing it twice rewards the voters only once", func() {
			voters, _ := board.Complete("d1")
			l.RewardDirectiveVoters(voters, 50)

			_, err := board.Complete("d1")
			So(err, ShouldEqual, ErrDirectiveAlreadyCompleted)
			So(l.GetCredits("a1"), ShouldEqual, 50)
		})
	})
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pokerank/internal/adapters/catalog"
	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/reconcile"
	"github.com/okian/pokerank/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

func at(score float64) model.Rating {
	return model.Rating{Mu: score + 1, Sigma: 1}
}

func ids(s ...string) []model.ItemID {
	out := make([]model.ItemID, len(s))
	for i, v := range s {
		out[i] = model.ItemID(v)
	}
	return out
}

type fixture struct {
	ctx   context.Context
	store *repository.RatingStore
	clock *clock.Virtual
	ctl   *Controller
	saves *atomic.Int64
}

func newFixture(scores map[model.ItemID]float64, opts ...ControllerOption) fixture {
	ctx := context.Background()
	store := repository.NewRatingStore()
	for id, v := range scores {
		_ = store.Set(ctx, id, at(v))
	}
	vc := clock.NewVirtual(time.Unix(0, 0))
	notifications := &atomic.Int64{}
	store.Subscribe(func(context.Context) { notifications.Add(1) })

	opts = append([]ControllerOption{WithClock(vc)}, opts...)
	return fixture{
		ctx:   ctx,
		store: store,
		clock: vc,
		ctl:   NewController(ctx, store, opts...),
		saves: notifications,
	}
}

func TestController_Insertion(t *testing.T) {
	Convey("Given an empty ranking", t, func() {
		f := newFixture(nil)

		Convey("When the first item is dropped in", func() {
			res, err := f.ctl.DragEnd(f.ctx, "bulbasaur", -1, 0)
			So(err, ShouldBeNil)

			Convey("Then it is displayed and seeded immediately", func() {
				So(res.NoOp, ShouldBeFalse)
				So(res.Kind, ShouldEqual, model.KindInsert)
				So(res.Index, ShouldEqual, 0)
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("bulbasaur"))
				So(f.store.Has(f.ctx, "bulbasaur"), ShouldBeTrue)
				So(f.ctl.Rating(f.ctx, "bulbasaur"), ShouldResemble, model.DefaultRating())
				So(f.ctl.IsPending("bulbasaur"), ShouldBeTrue)
				So(f.ctl.QueueLen(), ShouldEqual, 1)
			})

			Convey("Then the debounce window places it at the default score", func() {
				f.clock.Advance(100 * time.Millisecond)
				r := f.ctl.Rating(f.ctx, "bulbasaur")
				So(r.Score(), ShouldEqual, 20.0)
				So(r.Sigma, ShouldEqual, 1.0)
				So(f.ctl.QueueLen(), ShouldEqual, 0)
			})
		})

		Convey("When three items are placed one by one", func() {
			_, err := f.ctl.DragEnd(f.ctx, "a", -1, 0)
			So(err, ShouldBeNil)
			f.clock.Advance(100 * time.Millisecond)

			_, err = f.ctl.DragEnd(f.ctx, "b", -1, 0)
			So(err, ShouldBeNil)
			f.clock.Advance(100 * time.Millisecond)

			_, err = f.ctl.DragEnd(f.ctx, "c", -1, 1)
			So(err, ShouldBeNil)
			f.clock.Advance(100 * time.Millisecond)

			Convey("Then each lands between its neighbors", func() {
				So(f.ctl.Rating(f.ctx, "a").Score(), ShouldAlmostEqual, 20.0)
				So(f.ctl.Rating(f.ctx, "b").Score(), ShouldAlmostEqual, 20.1)
				So(f.ctl.Rating(f.ctx, "c").Score(), ShouldAlmostEqual, 20.05)
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("b", "c", "a"))
				So(f.ctl.Ranking(f.ctx), ShouldResemble, ids("b", "c", "a"))
			})
		})
	})
}

func TestController_NoOpDrag(t *testing.T) {
	Convey("Given a ranked item", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20})
		writes := f.store.Writes()

		Convey("When it is dropped where it already is", func() {
			res, err := f.ctl.DragEnd(f.ctx, "b", 1, 1)
			So(err, ShouldBeNil)

			Convey("Then nothing changes", func() {
				So(res.NoOp, ShouldBeTrue)
				So(f.store.Writes(), ShouldEqual, writes)
				So(f.ctl.QueueLen(), ShouldEqual, 0)
				So(f.ctl.IsPending("b"), ShouldBeFalse)
				So(f.clock.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When the destination is past the end", func() {
			res, err := f.ctl.DragEnd(f.ctx, "b", 1, 99)
			So(err, ShouldBeNil)

			Convey("Then it clamps to the last slot and is a no-op", func() {
				So(res.NoOp, ShouldBeTrue)
				So(f.store.Writes(), ShouldEqual, writes)
			})
		})
	})
}

func TestController_Debounce(t *testing.T) {
	Convey("Given four ranked items", t, func() {
		f := newFixture(map[model.ItemID]float64{"p1": 30, "p2": 20, "p3": 10, "q": 5})
		So(f.ctl.DisplayOrder(), ShouldResemble, ids("p1", "p2", "p3", "q"))
		before := f.saves.Load()

		Convey("When one item is dragged three times within the window", func() {
			_, err := f.ctl.DragEnd(f.ctx, "q", 3, 0)
			So(err, ShouldBeNil)
			f.clock.Advance(50 * time.Millisecond)
			_, err = f.ctl.DragEnd(f.ctx, "q", 0, 1)
			So(err, ShouldBeNil)
			f.clock.Advance(50 * time.Millisecond)
			_, err = f.ctl.DragEnd(f.ctx, "q", 1, 2)
			So(err, ShouldBeNil)

			Convey("Then nothing is reconciled before the window closes", func() {
				f.clock.Advance(99 * time.Millisecond)
				So(f.saves.Load(), ShouldEqual, before)
				So(f.ctl.Rating(f.ctx, "q").Score(), ShouldEqual, 5.0)
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("p1", "p2", "q", "p3"))
			})

			Convey("Then one reconciliation places it at the last position", func() {
				f.clock.Advance(100 * time.Millisecond)
				So(f.saves.Load(), ShouldEqual, before+1)
				So(f.ctl.Rating(f.ctx, "q").Score(), ShouldAlmostEqual, 15.0)
				So(f.ctl.Ranking(f.ctx), ShouldResemble, ids("p1", "p2", "q", "p3"))
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("p1", "p2", "q", "p3"))
			})
		})

		Convey("When the queue is flushed explicitly", func() {
			_, err := f.ctl.DragEnd(f.ctx, "q", 3, 0)
			So(err, ShouldBeNil)
			So(f.ctl.Flush(f.ctx), ShouldBeNil)

			Convey("Then the item is placed above the top score", func() {
				So(f.ctl.Rating(f.ctx, "q").Score(), ShouldAlmostEqual, 30.1)
				So(f.ctl.Ranking(f.ctx)[0], ShouldEqual, model.ItemID("q"))
			})
		})
	})
}

func TestController_ManualIntentWins(t *testing.T) {
	Convey("Given a drag queued before a battle involving the same item", t, func() {
		f := newFixture(map[model.ItemID]float64{"p1": 30, "p2": 20, "q": 10})
		_, err := f.ctl.DragEnd(f.ctx, "q", 2, 0)
		So(err, ShouldBeNil)

		_, err = f.ctl.ResolveBattle(f.ctx, model.Battle{ID: "b1", Winners: ids("p2"), Losers: ids("q")})
		So(err, ShouldBeNil)

		Convey("Then the display keeps the manual order while the drag is queued", func() {
			So(f.ctl.DisplayOrder(), ShouldResemble, ids("q", "p1", "p2"))
		})

		Convey("Then the flushed placement overrides the battle", func() {
			f.clock.Advance(100 * time.Millisecond)
			So(f.ctl.Ranking(f.ctx)[0], ShouldEqual, model.ItemID("q"))
			So(f.ctl.Rating(f.ctx, "q").Score(), ShouldAlmostEqual, 30.1)
		})
	})
}

func TestController_Battles(t *testing.T) {
	Convey("Given an empty ranking", t, func() {
		f := newFixture(nil)

		Convey("When a battle between unseen items is resolved", func() {
			out, err := f.ctl.ResolveBattle(f.ctx, model.Battle{ID: "b1", Winners: ids("mew"), Losers: ids("ditto")})
			So(err, ShouldBeNil)

			Convey("Then both are seeded and ranked winner first", func() {
				So(out.After, ShouldHaveLength, 2)
				So(f.ctl.Ranking(f.ctx), ShouldResemble, ids("mew", "ditto"))
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("mew", "ditto"))

				e, err := f.ctl.Entry(f.ctx, "mew")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(e.BattleCount, ShouldEqual, 1)
			})
		})

		Convey("When a battle has a single participant", func() {
			_, err := f.ctl.ResolveBattle(f.ctx, model.Battle{Order: ids("mew")})

			Convey("Then it is rejected without writes", func() {
				So(err, ShouldNotBeNil)
				So(f.store.Count(f.ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestController_PendingLifecycle(t *testing.T) {
	Convey("Given a reordered item", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20})
		_, err := f.ctl.DragEnd(f.ctx, "b", 1, 0)
		So(err, ShouldBeNil)
		So(f.ctl.IsPending("b"), ShouldBeTrue)

		Convey("When battles are only scheduled", func() {
			So(f.ctl.BattleScheduled(f.ctx, model.BattleNotice{BattleID: "s1", ItemIDs: ids("b", "a")}), ShouldBeNil)
			So(f.ctl.BattleScheduled(f.ctx, model.BattleNotice{BattleID: "s2", ItemIDs: ids("b")}), ShouldBeNil)

			Convey("Then the marker is untouched", func() {
				So(f.ctl.IsPending("b"), ShouldBeTrue)
				So(f.ctl.PendingMarkers(), ShouldResemble, []model.PendingMarker{{ItemID: "b", RemainingConfirmations: 2}})
			})
		})

		Convey("When two distinct battles complete", func() {
			applied, err := f.ctl.BattleCompleted(f.ctx, model.BattleNotice{BattleID: "c1", ItemIDs: ids("b", "a")})
			So(err, ShouldBeNil)
			So(applied, ShouldBeTrue)
			So(f.ctl.IsPending("b"), ShouldBeTrue)

			applied, err = f.ctl.BattleCompleted(f.ctx, model.BattleNotice{BattleID: "c1", ItemIDs: ids("b")})
			So(err, ShouldBeNil)
			So(applied, ShouldBeFalse)
			So(f.ctl.IsPending("b"), ShouldBeTrue)

			_, err = f.ctl.BattleCompleted(f.ctx, model.BattleNotice{BattleID: "c2", ItemIDs: ids("b")})
			So(err, ShouldBeNil)

			Convey("Then the marker clears only after the second", func() {
				So(f.ctl.IsPending("b"), ShouldBeFalse)
			})
		})

		Convey("When a notice has no battle id", func() {
			_, err := f.ctl.BattleCompleted(f.ctx, model.BattleNotice{ItemIDs: ids("b")})
			So(errors.Is(err, ErrMissingBattleID), ShouldBeTrue)
		})

		Convey("When all markers are cleared", func() {
			f.ctl.ClearPending()
			So(f.ctl.IsPending("b"), ShouldBeFalse)
		})
	})

	Convey("Given a drag start", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30})

		So(f.ctl.DragStart(f.ctx, "a"), ShouldBeNil)
		So(f.ctl.DragStart(f.ctx, "new"), ShouldBeNil)

		Convey("Then ranked and pool items need different confirmation counts", func() {
			So(f.ctl.PendingMarkers(), ShouldResemble, []model.PendingMarker{
				{ItemID: "a", RemainingConfirmations: 2},
				{ItemID: "new", RemainingConfirmations: 3},
			})
		})
	})
}

func TestController_UnknownItems(t *testing.T) {
	Convey("Given a catalog", t, func() {
		cat, err := catalog.New([]catalog.Item{{ID: "pikachu", Name: "Pikachu"}})
		So(err, ShouldBeNil)
		f := newFixture(nil, WithCatalog(cat))

		Convey("When an unknown id is dragged in", func() {
			_, err := f.ctl.DragEnd(f.ctx, "missingno", -1, 0)

			Convey("Then it is rejected before any change", func() {
				So(errors.Is(err, ErrUnknownItem), ShouldBeTrue)
				So(f.store.Writes(), ShouldEqual, 0)
				So(f.ctl.DisplayOrder(), ShouldBeEmpty)
				So(f.ctl.QueueLen(), ShouldEqual, 0)
			})
		})

		Convey("When a battle names an unknown id", func() {
			_, err := f.ctl.ResolveBattle(f.ctx, model.Battle{Winners: ids("pikachu"), Losers: ids("missingno")})
			So(errors.Is(err, ErrUnknownItem), ShouldBeTrue)
			So(f.store.Count(f.ctx), ShouldEqual, 0)
		})

		Convey("When a known id is dragged in", func() {
			_, err := f.ctl.DragEnd(f.ctx, "pikachu", -1, 0)
			So(err, ShouldBeNil)
		})
	})
}

func TestController_RemoveItem(t *testing.T) {
	Convey("Given a queued drag", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20})
		_, err := f.ctl.DragEnd(f.ctx, "c", -1, 1)
		So(err, ShouldBeNil)

		Convey("When the item is removed before the flush", func() {
			So(f.ctl.RemoveItem(f.ctx, "c"), ShouldBeNil)
			f.clock.Advance(100 * time.Millisecond)

			Convey("Then the queued drag is dropped", func() {
				So(f.store.Has(f.ctx, "c"), ShouldBeFalse)
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("a", "b"))
				So(f.ctl.IsPending("c"), ShouldBeFalse)
			})
		})

		Convey("When removing an item that was never ranked", func() {
			err := f.ctl.RemoveItem(f.ctx, "zz")
			So(errors.Is(err, ErrNotRanked), ShouldBeTrue)
		})
	})
}

func TestController_Votes(t *testing.T) {
	Convey("Given three ranked items", t, func() {
		f := newFixture(map[model.ItemID]float64{"p1": 30, "p2": 20, "p3": 10})

		Convey("When the last item gets a weak up vote", func() {
			p, err := f.ctl.SubmitVote(f.ctx, model.Vote{ItemID: "p3", Direction: model.VoteUp, Strength: 1})
			So(err, ShouldBeNil)

			Convey("Then it moves a third of the way to its target slot", func() {
				So(p.Target, ShouldAlmostEqual, 15.0)
				So(f.ctl.Rating(f.ctx, "p3").Score(), ShouldAlmostEqual, 15.0)
				So(f.ctl.Rating(f.ctx, "p3").Sigma, ShouldEqual, 1.0)
			})
		})

		Convey("When the vote strength is out of range", func() {
			_, err := f.ctl.SubmitVote(f.ctx, model.Vote{ItemID: "p3", Direction: model.VoteUp, Strength: 4})
			So(errors.Is(err, reconcile.ErrInvalidVote), ShouldBeTrue)
		})

		Convey("When the item is not ranked", func() {
			_, err := f.ctl.SubmitVote(f.ctx, model.Vote{ItemID: "p9", Direction: model.VoteDown, Strength: 1})
			So(errors.Is(err, ErrNotRanked), ShouldBeTrue)
		})
	})
}

func TestController_ResetOrderAndClose(t *testing.T) {
	Convey("Given a reordered display", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20})
		_, err := f.ctl.DragEnd(f.ctx, "b", 1, 0)
		So(err, ShouldBeNil)
		So(f.ctl.DisplayOrder(), ShouldResemble, ids("b", "a"))

		Convey("When the order is reset before the flush", func() {
			f.ctl.ResetOrder(f.ctx)
			So(f.ctl.DisplayOrder(), ShouldResemble, ids("a", "b"))
		})

		Convey("When the controller is closed", func() {
			So(f.ctl.Close(f.ctx), ShouldBeNil)

			Convey("Then the queued drag was reconciled and new drags are refused", func() {
				So(f.ctl.Ranking(f.ctx), ShouldResemble, ids("b", "a"))
				_, err := f.ctl.DragEnd(f.ctx, "a", 1, 0)
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestController_Entries(t *testing.T) {
	Convey("Given ranked items", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20, "c": 10})

		Convey("Then entries carry rank and pending flags", func() {
			So(f.ctl.DragStart(f.ctx, "b"), ShouldBeNil)
			entries, err := f.ctl.Entries(f.ctx, 2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].ItemID, ShouldEqual, "a")
			So(entries[1].Rank, ShouldEqual, 2)
			So(entries[1].Pending, ShouldBeTrue)
		})

		Convey("Then an invalid limit is an error", func() {
			_, err := f.ctl.Entries(f.ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then an unranked entry is reported", func() {
			_, err := f.ctl.Entry(f.ctx, "zz")
			So(errors.Is(err, ErrNotRanked), ShouldBeTrue)
		})
	})
}

// interleave detaches the queued batch on another goroutine and runs fn while
// the handler is still waiting for the controller lock.
func interleave(f fixture, fn func()) error {
	done := make(chan error, 1)
	func() {
		f.ctl.mu.Lock()
		defer f.ctl.mu.Unlock()
		go func() { done <- f.ctl.Flush(f.ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for f.ctl.QueueLen() > 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		fn()
	}()
	return <-done
}

func TestController_EventsDuringFlush(t *testing.T) {
	Convey("Given c dragged from the bottom to the top", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20, "c": 10})
		_, err := f.ctl.DragEnd(f.ctx, "c", 2, 0)
		So(err, ShouldBeNil)
		So(f.ctl.DisplayOrder(), ShouldResemble, ids("c", "a", "b"))

		Convey("When a battle lands after the batch is detached", func() {
			err := interleave(f, func() {
				So(f.ctl.queue.Busy(), ShouldBeTrue)
				_, rerr := f.ctl.engine.Resolve(f.ctx, model.Battle{Winners: ids("a"), Losers: ids("b")})
				So(rerr, ShouldBeNil)
				f.ctl.resyncLocked(f.ctx)
				So(f.ctl.display, ShouldResemble, ids("c", "a", "b"))
			})
			So(err, ShouldBeNil)

			Convey("Then the drag is reconciled at its dropped position", func() {
				So(f.ctl.queue.Busy(), ShouldBeFalse)
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("c", "a", "b"))
				So(f.ctl.Ranking(f.ctx)[0], ShouldEqual, model.ItemID("c"))
				So(f.ctl.Rating(f.ctx, "c").Score(), ShouldBeGreaterThan, f.ctl.Rating(f.ctx, "a").Score())
			})
		})

		Convey("When a vote lands after the batch is detached", func() {
			err := interleave(f, func() {
				_, verr := f.ctl.reconciler.Vote(f.ctx, f.ctl.display,
					model.Vote{ItemID: "b", Direction: model.VoteDown, Strength: 1})
				So(verr, ShouldBeNil)
				f.ctl.resyncLocked(f.ctx)
			})
			So(err, ShouldBeNil)

			Convey("Then the drag is reconciled at its dropped position", func() {
				So(f.ctl.DisplayOrder(), ShouldResemble, ids("c", "a", "b"))
				So(f.ctl.Ranking(f.ctx), ShouldResemble, ids("c", "a", "b"))
			})
		})
	})

	Convey("Given nothing queued or in flight", t, func() {
		f := newFixture(map[model.ItemID]float64{"a": 30, "b": 20})

		Convey("Then a battle makes the display follow the ranking", func() {
			_, err := f.ctl.ResolveBattle(f.ctx, model.Battle{Winners: ids("b"), Losers: ids("a")})
			So(err, ShouldBeNil)
			So(f.ctl.DisplayOrder(), ShouldResemble, f.ctl.Ranking(f.ctx))
		})
	})
}

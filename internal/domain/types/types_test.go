package types_test

import (
	"testing"

	"github.com/okian/pokerank/internal/domain/model"
	types "github.com/okian/pokerank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given a ranked item", t, func() {
		item := model.RankedItem{
			ID:          "bulbasaur",
			Rating:      model.Rating{Mu: 26, Sigma: 1},
			BattleCount: 4,
			Score:       25,
		}

		Convey("When converting it to an entry", func() {
			entry := types.NewEntry(1, item, true)

			Convey("Then every field should be carried over", func() {
				So(entry.Rank, ShouldEqual, 1)
				So(entry.ItemID, ShouldEqual, "bulbasaur")
				So(entry.Mu, ShouldEqual, 26.0)
				So(entry.Sigma, ShouldEqual, 1.0)
				So(entry.Score, ShouldEqual, 25.0)
				So(entry.BattleCount, ShouldEqual, 4)
				So(entry.Pending, ShouldBeTrue)
			})
		})

		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.ItemID, ShouldEqual, "")
				So(entry.Pending, ShouldBeFalse)
			})
		})
	})
}

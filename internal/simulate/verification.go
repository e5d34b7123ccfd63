package simulate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/okian/pokerank/pkg/logger"
)

// ErrMismatch reports a ranking that disagrees with the display order.
var ErrMismatch = errors.New("ranking does not match display order")

// verifyRanking checks that entries are ranked 1..n by non-increasing score
// and hold the same items as the display.
func verifyRanking(order []string, entries []Entry) error {
	if len(entries) != len(order) {
		return fmt.Errorf("%d ranked items, %d displayed: %w", len(entries), len(order), ErrMismatch)
	}
	shown := make(map[string]struct{}, len(order))
	for _, id := range order {
		shown[id] = struct{}{}
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d: %w", i, e.Rank, ErrMismatch)
		}
		if i > 0 && e.Score > entries[i-1].Score {
			return fmt.Errorf("%s (%.4f) outscores %s (%.4f) above it: %w",
				e.ItemID, e.Score, entries[i-1].ItemID, entries[i-1].Score, ErrMismatch)
		}
		if _, ok := shown[e.ItemID]; !ok {
			return fmt.Errorf("%s is ranked but not displayed: %w", e.ItemID, ErrMismatch)
		}
	}
	return nil
}

// agreement counts positions where the ranking and the display name the same item.
func agreement(order []string, entries []Entry) int {
	n := 0
	for i := 0; i < len(order) && i < len(entries); i++ {
		if order[i] == entries[i].ItemID {
			n++
		}
	}
	return n
}

// report logs the run statistics and the top of the ranking.
func report(ctx context.Context, stats *Stats, entries []Entry) {
	log := logger.Get()

	var successRate, battlesPerSecond float64
	if stats.BattlesSubmitted > 0 {
		ok := stats.BattlesSubmitted - stats.BattlesFailed
		successRate = float64(ok) / float64(stats.BattlesSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		battlesPerSecond = float64(stats.BattlesSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.String("battles", humanize.Comma(int64(stats.BattlesSubmitted))),
		logger.String("battlesFailed", humanize.Comma(int64(stats.BattlesFailed))),
		logger.String("drags", humanize.Comma(int64(stats.Drags))),
		logger.Int("noOpDrags", stats.NoOpDrags),
		logger.Int("inserts", stats.Inserts),
		logger.Int("dragsFailed", stats.DragsFailed),
		logger.Int("votes", stats.Votes),
		logger.Int("votesFailed", stats.VotesFailed),
		logger.Int("rankedItems", stats.RankedItems),
		logger.Int("agreement", stats.Agreement),
		logger.String("successRate", humanize.FormatFloat("#,###.##", successRate)+"%"),
		logger.String("battlesPerSecond", humanize.FormatFloat("#,###.#", battlesPerSecond)),
		logger.String("started", humanize.Time(stats.StartTime)),
		logger.Duration("duration", stats.Duration))

	for i := 0; i < len(entries) && i < topShown; i++ {
		e := entries[i]
		log.Info(ctx, "top item",
			logger.String("rank", humanize.Ordinal(e.Rank)),
			logger.String("item_id", e.ItemID),
			logger.Float64("score", e.Score),
			logger.Int("battles", e.BattleCount))
	}
}

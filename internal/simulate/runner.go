package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/pokerank/pkg/logger"
)

type reorderResult struct {
	NoOp bool   `json:"no_op"`
	Kind string `json:"kind"`
}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("battles", cfg.Battles),
		logger.Int("drags", cfg.Drags),
		logger.Int("votes", cfg.Votes),
		logger.Int("pool", cfg.Pool),
		logger.Bool("strict", cfg.Strict),
		logger.Any("seed", cfg.Seed))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed, cfg.Pool)
	battles := make([]Battle, cfg.Battles)
	for i := range battles {
		battles[i] = gen.Battle()
	}
	submitBattles(ctx, cfg, client, battles, stats)

	if err := submitVotes(ctx, cfg, client, gen, stats); err != nil {
		return stats, err
	}
	if err := performDrags(ctx, cfg, client, gen, stats); err != nil {
		return stats, err
	}
	if err := settle(ctx, cfg, client); err != nil {
		return stats, err
	}

	order, err := client.Order(ctx)
	if err != nil {
		return stats, fmt.Errorf("order retrieval failed: %w", err)
	}
	entries, err := client.Ranking(ctx, max(len(order), 1))
	if err != nil {
		return stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.RankedItems = len(entries)
	stats.Duration = time.Since(stats.StartTime)

	if err := verifyRanking(order, entries); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	stats.Agreement = agreement(order, entries)
	if stats.Agreement < len(order) {
		if cfg.Strict {
			return stats, fmt.Errorf("%d of %d positions agree: %w", stats.Agreement, len(order), ErrMismatch)
		}
		log.Warn(ctx, "ranking and display order differ",
			logger.Int("agree", stats.Agreement), logger.Int("items", len(order)))
	}
	report(ctx, stats, entries)
	return stats, nil
}

func submitVotes(ctx context.Context, cfg *Config, client *Client, gen *Generator, stats *Stats) error {
	for i := 0; i < cfg.Votes; i++ {
		order, err := client.Order(ctx)
		if err != nil {
			return fmt.Errorf("order retrieval failed: %w", err)
		}
		if len(order) == 0 {
			return nil
		}
		v := gen.Vote(order)
		stats.Votes++
		if err := client.Post(ctx, "/votes", v, http.StatusOK, nil); err != nil {
			stats.VotesFailed++
			logger.Get().Debug(ctx, "vote failed", logger.String("item_id", v.ItemID), logger.Error(err))
		}
	}
	return nil
}

// performDrags runs one drag at a time, each against the order the previous one left.
func performDrags(ctx context.Context, cfg *Config, client *Client, gen *Generator, stats *Stats) error {
	for i := 0; i < cfg.Drags; i++ {
		order, err := client.Order(ctx)
		if err != nil {
			return fmt.Errorf("order retrieval failed: %w", err)
		}
		d := gen.Drag(order)
		stats.Drags++

		var res reorderResult
		if err := client.Post(ctx, "/reorder", d, http.StatusAccepted, &res); err != nil {
			stats.DragsFailed++
			logger.Get().Debug(ctx, "drag failed", logger.String("item_id", d.ItemID), logger.Error(err))
			continue
		}
		switch {
		case res.NoOp:
			stats.NoOpDrags++
		case res.Kind == "insert":
			stats.Inserts++
		}
		if err := sleep(ctx, cfg.Pause); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// settle waits cfg.Settle and then until the server has reconciled every drag.
func settle(ctx context.Context, cfg *Config, client *Client) error {
	if err := sleep(ctx, cfg.Settle); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var s map[string]any
		if err := client.Get(ctx, "/stats", &s); err != nil {
			return fmt.Errorf("stats retrieval failed: %w", err)
		}
		n, _ := s["queueLength"].(float64)
		busy, _ := s["reconciling"].(bool)
		if n == 0 && !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

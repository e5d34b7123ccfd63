package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pokerank/pkg/logger"
)

// ErrStatus reports an unexpected HTTP status.
var ErrStatus = errors.New("unexpected status")

// Client talks JSON to the ranking server.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get fetches path and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusOK, out)
}

// Post sends body to path, expects status and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, status int, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, status, out)
}

func (c *Client) do(req *http.Request, status int, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != status {
		return fmt.Errorf("%s %s: %d %s: %w", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body), ErrStatus)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Order returns the display order.
func (c *Client) Order(ctx context.Context) ([]string, error) {
	var resp orderResponse
	if err := c.Get(ctx, "/order", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Ranking returns up to limit entries of the derived ranking.
func (c *Client) Ranking(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	if err := c.Get(ctx, fmt.Sprintf("/ranking?limit=%d", limit), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// submitBattles posts battles with a pool of workers.
func submitBattles(ctx context.Context, cfg *Config, client *Client, battles []Battle, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting battles", logger.Int("battles", len(battles)), logger.Int("workers", cfg.Workers))

	var submitted, failed int64
	work := make(chan Battle, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range work {
				if ctx.Err() != nil {
					return
				}
				atomic.AddInt64(&submitted, 1)
				if err := client.Post(ctx, "/battles", b, http.StatusOK, nil); err != nil {
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "battle failed", logger.String("battle_id", b.BattleID), logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, b := range battles {
			select {
			case <-ctx.Done():
				return
			case work <- b:
			}
		}
	}()

	wg.Wait()
	stats.BattlesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BattlesFailed = int(atomic.LoadInt64(&failed))
}

// Package simulate drives a running ranking server with random battles and
// drags, then checks that the ranking agrees with the order the user sees.
package simulate

import "time"

// Options are the command-line flags of the simulator.
type Options struct {
	BaseURL string        `long:"url" short:"u" description:"Base URL of the service" default:"http://localhost:9080"`
	Battles int           `long:"battles" short:"b" description:"Number of battles to submit" default:"500"`
	Drags   int           `long:"drags" short:"d" description:"Number of manual drags to perform" default:"50"`
	Votes   int           `long:"votes" description:"Number of votes to submit" default:"20"`
	Pool    int           `long:"pool" short:"p" description:"Number of distinct Pokémon to use" default:"40"`
	Workers int           `long:"workers" short:"w" description:"Concurrent battle submitters" default:"8"`
	Seed    uint64        `long:"seed" description:"Random seed; 0 picks one from the clock"`
	Timeout time.Duration `long:"timeout" description:"HTTP request timeout" default:"10s"`
	Settle  time.Duration `long:"settle" description:"Wait after the last drag before verifying" default:"1s"`
	Pause   time.Duration `long:"pause" description:"Wait between drags; longer than the server debounce reconciles each drag alone" default:"0s"`
	Strict  bool          `long:"strict" description:"Fail unless the ranking lists items in display order"`
	Verbose bool          `long:"verbose" short:"v" description:"Enable debug logging"`
}

// Config holds configuration for one simulation run.
type Config struct {
	BaseURL string
	Battles int
	Drags   int
	Votes   int
	Pool    int
	Workers int
	Seed    uint64
	Timeout time.Duration
	Settle  time.Duration
	Pause   time.Duration
	Strict  bool
	Verbose bool
}

// Battle is the request body of POST /battles.
type Battle struct {
	BattleID string   `json:"battle_id,omitempty"`
	Winners  []string `json:"winners,omitempty"`
	Losers   []string `json:"losers,omitempty"`
	Order    []string `json:"order,omitempty"`
}

// Reorder is the request body of POST /reorder.
type Reorder struct {
	ItemID           string `json:"item_id"`
	SourceIndex      int    `json:"source_index"`
	DestinationIndex int    `json:"destination_index"`
}

// Vote is the request body of POST /votes.
type Vote struct {
	ItemID    string `json:"item_id"`
	Direction string `json:"direction"`
	Strength  int    `json:"strength"`
}

// Entry is one row of GET /ranking.
type Entry struct {
	Rank        int     `json:"rank"`
	ItemID      string  `json:"item_id"`
	Score       float64 `json:"score"`
	BattleCount int     `json:"battle_count"`
	Pending     bool    `json:"pending"`
}

type orderResponse struct {
	Items []string `json:"items"`
}

// Stats holds run statistics.
type Stats struct {
	BattlesSubmitted int
	BattlesFailed    int
	Drags            int
	NoOpDrags        int
	Inserts          int
	DragsFailed      int
	Votes            int
	VotesFailed      int
	RankedItems      int
	Agreement        int
	StartTime        time.Time
	Duration         time.Duration
}

package simulate

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/okian/pokerank/pkg/logger"
)

// ErrInvalidArgs reports flags that parse but make no sense together.
var ErrInvalidArgs = errors.New("invalid arguments")

// ParseArgs parses command-line arguments. Help requests come back as a
// *flags.Error of type flags.ErrHelp.
func ParseArgs(args []string) (*Config, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS]"

	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(remaining) > 0 {
		return nil, fmt.Errorf("unexpected arguments %v: %w", remaining, ErrInvalidArgs)
	}

	cfg := &Config{
		BaseURL: opts.BaseURL,
		Battles: opts.Battles,
		Drags:   opts.Drags,
		Votes:   opts.Votes,
		Pool:    opts.Pool,
		Workers: opts.Workers,
		Seed:    opts.Seed,
		Timeout: opts.Timeout,
		Settle:  opts.Settle,
		Pause:   opts.Pause,
		Strict:  opts.Strict,
		Verbose: opts.Verbose,
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("url must not be empty: %w", ErrInvalidArgs)
	case c.Pool < 2 || c.Pool > len(pokedex):
		return fmt.Errorf("pool must be between 2 and %d: %w", len(pokedex), ErrInvalidArgs)
	case c.Battles < 0 || c.Drags < 0 || c.Votes < 0:
		return fmt.Errorf("counts must not be negative: %w", ErrInvalidArgs)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive: %w", ErrInvalidArgs)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive: %w", ErrInvalidArgs)
	case c.Settle < 0 || c.Pause < 0:
		return fmt.Errorf("settle and pause must not be negative: %w", ErrInvalidArgs)
	}
	return nil
}

// SetupLogging configures the global logger to write to w.
func SetupLogging(w io.Writer, verbose bool) error {
	if err := logger.InitWithOptions(logger.Options{Writer: w}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

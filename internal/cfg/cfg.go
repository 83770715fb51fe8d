// Package cfg holds the application configuration: flag registration with
// inline defaults and a Validate that accumulates every problem before
// failing.
package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config carries all tunables for the fleetwatch server.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	DatabaseURL string
	RedisURL    string
	APIToken    string

	SpeedEscalateCount    int
	SpeedWindowMins       int
	ComplianceCloseSignal string

	SweepIntervalSeconds int
	RetirementAgeHours   int

	LeaderboardSize            int
	LeaderboardTTLSeconds      int
	LeaderboardEagerInvalidate bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis URL for the leaderboard cache (empty = in-process cache)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token protecting the API routes")
	fs.IntVar(&c.SpeedEscalateCount, "speed-escalate-count", 3, "speed events within the window that trigger escalation (1..1000)")
	fs.IntVar(&c.SpeedWindowMins, "speed-window-mins", 60, "sliding lookback window for speed escalation in minutes (1..10080)")
	fs.StringVar(&c.ComplianceCloseSignal, "compliance-close-signal", "document_valid", "metadata marker that auto-closes open compliance alerts")
	fs.IntVar(&c.SweepIntervalSeconds, "sweep-interval-seconds", 300, "staleness sweep interval in seconds (1..86400)")
	fs.IntVar(&c.RetirementAgeHours, "retirement-age-hours", 24, "age in hours after which active alerts are auto-closed (1..8760)")
	fs.IntVar(&c.LeaderboardSize, "leaderboard-size", 5, "number of drivers on the leaderboard (1..100)")
	fs.IntVar(&c.LeaderboardTTLSeconds, "leaderboard-ttl-seconds", 300, "leaderboard cache TTL in seconds (1..86400)")
	fs.BoolVar(&c.LeaderboardEagerInvalidate, "leaderboard-eager-invalidate", true, "evict the leaderboard cache eagerly after count-changing writes")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The API never runs unauthenticated
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	if c.SpeedEscalateCount <= 0 || c.SpeedEscalateCount > 1000 {
		errs = append(errs, fmt.Errorf("invalid SPEED_ESCALATE_COUNT %d (must be 1..1000)", c.SpeedEscalateCount))
	}
	if c.SpeedWindowMins <= 0 || c.SpeedWindowMins > 10080 {
		errs = append(errs, fmt.Errorf("invalid SPEED_WINDOW_MINS %d (must be 1..10080)", c.SpeedWindowMins))
	}

	if c.ComplianceCloseSignal == "" {
		errs = append(errs, errors.New("COMPLIANCE_CLOSE_SIGNAL is required"))
	}

	if c.SweepIntervalSeconds <= 0 || c.SweepIntervalSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %d (must be 1..86400)", c.SweepIntervalSeconds))
	}
	if c.RetirementAgeHours <= 0 || c.RetirementAgeHours > 8760 {
		errs = append(errs, fmt.Errorf("invalid RETIREMENT_AGE_HOURS %d (must be 1..8760)", c.RetirementAgeHours))
	}

	if c.LeaderboardSize <= 0 || c.LeaderboardSize > 100 {
		errs = append(errs, fmt.Errorf("invalid LEADERBOARD_SIZE %d (must be 1..100)", c.LeaderboardSize))
	}
	if c.LeaderboardTTLSeconds <= 0 || c.LeaderboardTTLSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid LEADERBOARD_TTL_SECONDS %d (must be 1..86400)", c.LeaderboardTTLSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

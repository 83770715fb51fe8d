package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:               60,
		ShutdownBudgetSeconds:      90,
		APIPort:                    8080,
		APIToken:                   "test-token-123",
		SpeedEscalateCount:         3,
		SpeedWindowMins:            60,
		ComplianceCloseSignal:      "document_valid",
		SweepIntervalSeconds:       300,
		RetirementAgeHours:         24,
		LeaderboardSize:            5,
		LeaderboardTTLSeconds:      300,
		LeaderboardEagerInvalidate: true,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.SpeedEscalateCount != 3 {
		t.Errorf("SpeedEscalateCount = %d, want 3", c.SpeedEscalateCount)
	}
	if c.SpeedWindowMins != 60 {
		t.Errorf("SpeedWindowMins = %d, want 60", c.SpeedWindowMins)
	}
	if c.ComplianceCloseSignal != "document_valid" {
		t.Errorf("ComplianceCloseSignal = %q, want %q", c.ComplianceCloseSignal, "document_valid")
	}
	if c.SweepIntervalSeconds != 300 {
		t.Errorf("SweepIntervalSeconds = %d, want 300", c.SweepIntervalSeconds)
	}
	if c.RetirementAgeHours != 24 {
		t.Errorf("RetirementAgeHours = %d, want 24", c.RetirementAgeHours)
	}
	if c.LeaderboardSize != 5 {
		t.Errorf("LeaderboardSize = %d, want 5", c.LeaderboardSize)
	}
	if c.LeaderboardTTLSeconds != 300 {
		t.Errorf("LeaderboardTTLSeconds = %d, want 300", c.LeaderboardTTLSeconds)
	}
	if !c.LeaderboardEagerInvalidate {
		t.Error("LeaderboardEagerInvalidate = false, want true by default")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/fleetwatch",
		"-redis-url", "redis://localhost:6379/0",
		"-api-token", "override-token",
		"-speed-escalate-count", "5",
		"-speed-window-mins", "30",
		"-compliance-close-signal", "license_renewed",
		"-sweep-interval-seconds", "60",
		"-retirement-age-hours", "48",
		"-leaderboard-size", "10",
		"-leaderboard-ttl-seconds", "120",
		"-leaderboard-eager-invalidate=false",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/fleetwatch" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", c.RedisURL)
	}
	if c.APIToken != "override-token" {
		t.Errorf("APIToken = %q", c.APIToken)
	}
	if c.SpeedEscalateCount != 5 {
		t.Errorf("SpeedEscalateCount = %d, want 5", c.SpeedEscalateCount)
	}
	if c.SpeedWindowMins != 30 {
		t.Errorf("SpeedWindowMins = %d, want 30", c.SpeedWindowMins)
	}
	if c.ComplianceCloseSignal != "license_renewed" {
		t.Errorf("ComplianceCloseSignal = %q", c.ComplianceCloseSignal)
	}
	if c.SweepIntervalSeconds != 60 {
		t.Errorf("SweepIntervalSeconds = %d, want 60", c.SweepIntervalSeconds)
	}
	if c.RetirementAgeHours != 48 {
		t.Errorf("RetirementAgeHours = %d, want 48", c.RetirementAgeHours)
	}
	if c.LeaderboardSize != 10 {
		t.Errorf("LeaderboardSize = %d, want 10", c.LeaderboardSize)
	}
	if c.LeaderboardTTLSeconds != 120 {
		t.Errorf("LeaderboardTTLSeconds = %d, want 120", c.LeaderboardTTLSeconds)
	}
	if c.LeaderboardEagerInvalidate {
		t.Error("LeaderboardEagerInvalidate = true, want false")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	invalidBase := Config{} // every field at its zero value

	withDrain := func(drain, budget int) Config {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1, APIToken: "t",
				SpeedEscalateCount: 1, SpeedWindowMins: 1, ComplianceCloseSignal: "s",
				SweepIntervalSeconds: 1, RetirementAgeHours: 1,
				LeaderboardSize: 1, LeaderboardTTLSeconds: 1,
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535, APIToken: "t",
				SpeedEscalateCount: 1000, SpeedWindowMins: 10080, ComplianceCloseSignal: "s",
				SweepIntervalSeconds: 86400, RetirementAgeHours: 8760,
				LeaderboardSize: 100, LeaderboardTTLSeconds: 86400,
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       withDrain(0, 90),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       withDrain(-1, 90),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       withDrain(301, 300),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       withDrain(60, 0),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       withDrain(60, 301),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       withDrain(60, 60),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "budget less than drain",
			cfg:       withDrain(60, 30),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     withDrain(60, 61),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name: "port zero",
			cfg: func() Config {
				c := validBase()
				c.APIPort = 0
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name: "port above max",
			cfg: func() Config {
				c := validBase()
				c.APIPort = 65536
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Required strings
		{
			name: "empty api token",
			cfg: func() Config {
				c := validBase()
				c.APIToken = ""
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"API_TOKEN"},
		},
		{
			name: "empty compliance signal",
			cfg: func() Config {
				c := validBase()
				c.ComplianceCloseSignal = ""
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"COMPLIANCE_CLOSE_SIGNAL"},
		},
		// Rule tunables
		{
			name: "escalate count zero",
			cfg: func() Config {
				c := validBase()
				c.SpeedEscalateCount = 0
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"SPEED_ESCALATE_COUNT"},
		},
		{
			name: "window above a week",
			cfg: func() Config {
				c := validBase()
				c.SpeedWindowMins = 10081
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"SPEED_WINDOW_MINS"},
		},
		// Sweeper tunables
		{
			name: "sweep interval zero",
			cfg: func() Config {
				c := validBase()
				c.SweepIntervalSeconds = 0
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"SWEEP_INTERVAL_SECONDS"},
		},
		{
			name: "retirement age above a year",
			cfg: func() Config {
				c := validBase()
				c.RetirementAgeHours = 8761
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"RETIREMENT_AGE_HOURS"},
		},
		// Leaderboard tunables
		{
			name: "leaderboard size zero",
			cfg: func() Config {
				c := validBase()
				c.LeaderboardSize = 0
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"LEADERBOARD_SIZE"},
		},
		{
			name: "leaderboard ttl negative",
			cfg: func() Config {
				c := validBase()
				c.LeaderboardTTLSeconds = -1
				return c
			}(),
			wantErr:   true,
			errSubstr: []string{"LEADERBOARD_TTL_SECONDS"},
		},
		// Error accumulation: all fields invalid
		{
			name:    "all fields invalid",
			cfg:     invalidBase,
			wantErr: true,
			errSubstr: []string{
				"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "API_TOKEN",
				"SPEED_ESCALATE_COUNT", "SPEED_WINDOW_MINS", "COMPLIANCE_CLOSE_SIGNAL",
				"SWEEP_INTERVAL_SECONDS", "RETIREMENT_AGE_HOURS",
				"LEADERBOARD_SIZE", "LEADERBOARD_TTL_SECONDS",
			},
		},
		// Extreme values
		{
			name: "extreme negative values",
			cfg: Config{
				DrainSeconds:          math.MinInt32,
				ShutdownBudgetSeconds: math.MinInt32,
				APIPort:               math.MinInt32,
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, escalate, window int
		token, signal                         string
	}{
		{60, 90, 8080, 3, 60, "tok", "document_valid"},
		{1, 2, 1, 1, 1, "t", "s"},
		{299, 300, 65535, 1000, 10080, "t", "s"},
		{0, 0, 0, 0, 0, "", ""},
		{-1, -1, -1, -1, -1, "", ""},
		{150, 100, 8080, 3, 60, "t", "s"},
		{301, 302, 65536, 1001, 10081, "", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.escalate, s.window, s.token, s.signal)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, escalate, window int, token, signal string) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.SpeedEscalateCount = escalate
		c.SpeedWindowMins = window
		c.APIToken = token
		c.ComplianceCloseSignal = signal

		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		escalateOK := escalate >= 1 && escalate <= 1000
		windowOK := window >= 1 && window <= 10080
		tokenOK := token != ""
		signalOK := signal != ""

		allValid := drainOK && budgetOK && portOK && crossOK && escalateOK && windowOK && tokenOK && signalOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}

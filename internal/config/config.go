// SPDX-License-Identifier: MIT

// Package config loads and validates the insightd runtime configuration.
// Precedence is ENV > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	// Server
	ListenAddr  string   `yaml:"listen_addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	DataDir     string   `yaml:"data_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`

	// Rate limiting
	RateLimitEnabled bool `yaml:"rate_limit_enabled"`
	RateLimitRPM     int  `yaml:"rate_limit_rpm"`

	// Storage
	SQLitePath  string `yaml:"sqlite_path"`
	EventLogDir string `yaml:"event_log_dir"`
	// EventRetention bounds how long raw engagement events are kept.
	EventRetention time.Duration `yaml:"event_retention"`

	Redis    RedisConfig   `yaml:"redis"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CacheCleanupInterval is how often the in-memory cache drops expired
	// entries. Independent of CacheTTL, which bounds entry lifetime.
	CacheCleanupInterval time.Duration    `yaml:"cache_cleanup_interval"`
	Tracing              TracingConfig    `yaml:"tracing"`
	KT                   KTConfig         `yaml:"knowledge_tracing"`
	Practice             PracticeConfig   `yaml:"practice"`
	Engagement           EngagementConfig `yaml:"engagement"`
	Polls                PollConfig       `yaml:"polls"`
}

// RedisConfig holds Redis cache connection settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // "grpc" or "http"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// KTConfig parameterizes the hybrid knowledge tracing engine.
type KTConfig struct {
	PriorMastery   float64 `yaml:"prior_mastery"`   // P(L0)
	LearnRate      float64 `yaml:"learn_rate"`      // P(T)
	GuessRate      float64 `yaml:"guess_rate"`      // P(G)
	SlipRate       float64 `yaml:"slip_rate"`       // P(S)
	SequenceLength int     `yaml:"sequence_length"` // DKT window
	HistoryWeight  float64 `yaml:"history_weight"`
	TrendWeight    float64 `yaml:"trend_weight"`
}

// PracticeConfig parameterizes adaptive practice session generation.
type PracticeConfig struct {
	LoadMin        float64 `yaml:"load_min"`
	LoadOptimal    float64 `yaml:"load_optimal"`
	LoadMax        float64 `yaml:"load_max"`
	Gamma          float64 `yaml:"gamma"` // difficulty adjustment scale
	SkipThreshold  float64 `yaml:"skip_threshold"`
	LightThreshold float64 `yaml:"light_threshold"`
	DefaultMinutes int     `yaml:"default_minutes"`
	MaxMinutes     int     `yaml:"max_minutes"`
}

// EngagementConfig parameterizes disengagement detection.
type EngagementConfig struct {
	QuickGuessSeconds float64 `yaml:"quick_guess_seconds"`
	MaxHints          int     `yaml:"max_hints"`
	ManyAttempts      int     `yaml:"many_attempts"`
	MinLogins         int     `yaml:"min_logins"` // per week
	MinSessionMinutes float64 `yaml:"min_session_minutes"`
	ImplicitWeight    float64 `yaml:"implicit_weight"`
	ExplicitWeight    float64 `yaml:"explicit_weight"`
	AtRiskThreshold   float64 `yaml:"at_risk_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// PollConfig parameterizes live classroom polls.
type PollConfig struct {
	MinOptions      int           `yaml:"min_options"`
	MaxOptions      int           `yaml:"max_options"`
	AutoClose       time.Duration `yaml:"auto_close"`
	ResponsesPerMin int           `yaml:"responses_per_min"` // per-student rate
}

// Defaults returns the built-in configuration defaults.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:           ":8080",
		MetricsAddr:          ":9090",
		DataDir:              "/var/lib/insightd",
		CORSOrigins:          nil,
		LogLevel:             "info",
		RateLimitEnabled:     true,
		RateLimitRPM:         600,
		EventRetention:       90 * 24 * time.Hour,
		CacheTTL:             5 * time.Minute,
		CacheCleanupInterval: time.Minute,
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 0.1,
			Environment:  "development",
		},
		KT: KTConfig{
			PriorMastery:   0.3,
			LearnRate:      0.2,
			GuessRate:      0.25,
			SlipRate:       0.1,
			SequenceLength: 10,
			HistoryWeight:  0.7,
			TrendWeight:    0.3,
		},
		Practice: PracticeConfig{
			LoadMin:        0.4,
			LoadOptimal:    0.65,
			LoadMax:        0.85,
			Gamma:          0.1,
			SkipThreshold:  85.0,
			LightThreshold: 60.0,
			DefaultMinutes: 30,
			MaxMinutes:     180,
		},
		Engagement: EngagementConfig{
			QuickGuessSeconds: 3.0,
			MaxHints:          3,
			ManyAttempts:      3,
			MinLogins:         3,
			MinSessionMinutes: 5.0,
			ImplicitWeight:    0.6,
			ExplicitWeight:    0.4,
			AtRiskThreshold:   50.0,
			CriticalThreshold: 30.0,
		},
		Polls: PollConfig{
			MinOptions:      2,
			MaxOptions:      6,
			AutoClose:       30 * time.Minute,
			ResponsesPerMin: 20,
		},
	}
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString("INSIGHT_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("INSIGHT_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.DataDir = ParseString("INSIGHT_DATA", cfg.DataDir)
	cfg.CORSOrigins = ParseStringSlice("INSIGHT_CORS_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = ParseString("INSIGHT_LOG_LEVEL", cfg.LogLevel)

	cfg.RateLimitEnabled = ParseBool("INSIGHT_RATELIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitRPM = ParseInt("INSIGHT_RATELIMIT_RPM", cfg.RateLimitRPM)

	cfg.SQLitePath = ParseString("INSIGHT_SQLITE_PATH", cfg.SQLitePath)
	cfg.EventLogDir = ParseString("INSIGHT_EVENTLOG_DIR", cfg.EventLogDir)
	cfg.EventRetention = ParseDuration("INSIGHT_EVENT_RETENTION", cfg.EventRetention)
	cfg.CacheTTL = ParseDuration("INSIGHT_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheCleanupInterval = ParseDuration("INSIGHT_CACHE_CLEANUP_INTERVAL", cfg.CacheCleanupInterval)

	cfg.Redis.Enabled = ParseBool("INSIGHT_REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = ParseString("INSIGHT_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("INSIGHT_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("INSIGHT_REDIS_DB", cfg.Redis.DB)

	cfg.Tracing.Enabled = ParseBool("INSIGHT_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ExporterType = ParseString("INSIGHT_TRACING_EXPORTER", cfg.Tracing.ExporterType)
	cfg.Tracing.Endpoint = ParseString("INSIGHT_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat("INSIGHT_TRACING_SAMPLING", cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = ParseString("INSIGHT_TRACING_ENV", cfg.Tracing.Environment)

	cfg.KT.PriorMastery = ParseFloat("INSIGHT_BKT_PRIOR", cfg.KT.PriorMastery)
	cfg.KT.LearnRate = ParseFloat("INSIGHT_BKT_LEARN_RATE", cfg.KT.LearnRate)
	cfg.KT.GuessRate = ParseFloat("INSIGHT_BKT_GUESS_RATE", cfg.KT.GuessRate)
	cfg.KT.SlipRate = ParseFloat("INSIGHT_BKT_SLIP_RATE", cfg.KT.SlipRate)
	cfg.KT.SequenceLength = ParseInt("INSIGHT_DKT_SEQUENCE_LENGTH", cfg.KT.SequenceLength)
	cfg.KT.HistoryWeight = ParseFloat("INSIGHT_DKT_HISTORY_WEIGHT", cfg.KT.HistoryWeight)
	cfg.KT.TrendWeight = ParseFloat("INSIGHT_DKT_TREND_WEIGHT", cfg.KT.TrendWeight)

	cfg.Practice.LoadMin = ParseFloat("INSIGHT_LOAD_MIN", cfg.Practice.LoadMin)
	cfg.Practice.LoadOptimal = ParseFloat("INSIGHT_LOAD_OPTIMAL", cfg.Practice.LoadOptimal)
	cfg.Practice.LoadMax = ParseFloat("INSIGHT_LOAD_MAX", cfg.Practice.LoadMax)
	cfg.Practice.Gamma = ParseFloat("INSIGHT_DIFFICULTY_GAMMA", cfg.Practice.Gamma)
	cfg.Practice.SkipThreshold = ParseFloat("INSIGHT_MASTERY_SKIP", cfg.Practice.SkipThreshold)
	cfg.Practice.LightThreshold = ParseFloat("INSIGHT_MASTERY_LIGHT", cfg.Practice.LightThreshold)
	cfg.Practice.DefaultMinutes = ParseInt("INSIGHT_SESSION_MINUTES", cfg.Practice.DefaultMinutes)
	cfg.Practice.MaxMinutes = ParseInt("INSIGHT_SESSION_MAX_MINUTES", cfg.Practice.MaxMinutes)

	cfg.Engagement.QuickGuessSeconds = ParseFloat("INSIGHT_QUICK_GUESS_SECONDS", cfg.Engagement.QuickGuessSeconds)
	cfg.Engagement.MaxHints = ParseInt("INSIGHT_MAX_HINTS", cfg.Engagement.MaxHints)
	cfg.Engagement.ManyAttempts = ParseInt("INSIGHT_MANY_ATTEMPTS", cfg.Engagement.ManyAttempts)
	cfg.Engagement.MinLogins = ParseInt("INSIGHT_MIN_LOGINS", cfg.Engagement.MinLogins)
	cfg.Engagement.MinSessionMinutes = ParseFloat("INSIGHT_MIN_SESSION_MINUTES", cfg.Engagement.MinSessionMinutes)
	cfg.Engagement.ImplicitWeight = ParseFloat("INSIGHT_IMPLICIT_WEIGHT", cfg.Engagement.ImplicitWeight)
	cfg.Engagement.ExplicitWeight = ParseFloat("INSIGHT_EXPLICIT_WEIGHT", cfg.Engagement.ExplicitWeight)
	cfg.Engagement.AtRiskThreshold = ParseFloat("INSIGHT_AT_RISK_THRESHOLD", cfg.Engagement.AtRiskThreshold)
	cfg.Engagement.CriticalThreshold = ParseFloat("INSIGHT_CRITICAL_THRESHOLD", cfg.Engagement.CriticalThreshold)

	cfg.Polls.MinOptions = ParseInt("INSIGHT_POLL_MIN_OPTIONS", cfg.Polls.MinOptions)
	cfg.Polls.MaxOptions = ParseInt("INSIGHT_POLL_MAX_OPTIONS", cfg.Polls.MaxOptions)
	cfg.Polls.AutoClose = ParseDuration("INSIGHT_POLL_AUTO_CLOSE", cfg.Polls.AutoClose)
	cfg.Polls.ResponsesPerMin = ParseInt("INSIGHT_POLL_RESPONSES_PER_MIN", cfg.Polls.ResponsesPerMin)
}

// resolvePaths fills storage paths derived from DataDir when unset.
func resolvePaths(cfg *AppConfig) {
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "insight.db")
	}
	if cfg.EventLogDir == "" {
		cfg.EventLogDir = filepath.Join(cfg.DataDir, "events")
	}
}

// Validate checks the configuration for internally inconsistent or
// out-of-range values. It returns all problems joined into one error.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory must not be empty"))
	}
	for name, p := range map[string]float64{
		"knowledge_tracing.prior_mastery": c.KT.PriorMastery,
		"knowledge_tracing.learn_rate":    c.KT.LearnRate,
		"knowledge_tracing.guess_rate":    c.KT.GuessRate,
		"knowledge_tracing.slip_rate":     c.KT.SlipRate,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be a probability in [0,1], got %v", name, p))
		}
	}
	if c.KT.SequenceLength < 1 {
		errs = append(errs, fmt.Errorf("knowledge_tracing.sequence_length must be >= 1, got %d", c.KT.SequenceLength))
	}
	if c.Practice.LoadMin >= c.Practice.LoadMax {
		errs = append(errs, fmt.Errorf("practice.load_min (%v) must be below practice.load_max (%v)",
			c.Practice.LoadMin, c.Practice.LoadMax))
	}
	if c.Practice.SkipThreshold <= c.Practice.LightThreshold {
		errs = append(errs, fmt.Errorf("practice.skip_threshold (%v) must exceed practice.light_threshold (%v)",
			c.Practice.SkipThreshold, c.Practice.LightThreshold))
	}
	if c.Practice.DefaultMinutes < 1 || c.Practice.DefaultMinutes > c.Practice.MaxMinutes {
		errs = append(errs, fmt.Errorf("practice.default_minutes must be in [1,%d], got %d",
			c.Practice.MaxMinutes, c.Practice.DefaultMinutes))
	}
	if w := c.Engagement.ImplicitWeight + c.Engagement.ExplicitWeight; w < 0.99 || w > 1.01 {
		errs = append(errs, fmt.Errorf("engagement implicit+explicit weights must sum to 1.0, got %v", w))
	}
	if c.Engagement.CriticalThreshold >= c.Engagement.AtRiskThreshold {
		errs = append(errs, fmt.Errorf("engagement.critical_threshold (%v) must be below at_risk_threshold (%v)",
			c.Engagement.CriticalThreshold, c.Engagement.AtRiskThreshold))
	}
	if c.Polls.MinOptions < 2 {
		errs = append(errs, fmt.Errorf("polls.min_options must be >= 2, got %d", c.Polls.MinOptions))
	}
	if c.Polls.MaxOptions < c.Polls.MinOptions {
		errs = append(errs, fmt.Errorf("polls.max_options (%d) must be >= polls.min_options (%d)",
			c.Polls.MaxOptions, c.Polls.MinOptions))
	}
	if c.Tracing.Enabled {
		switch c.Tracing.ExporterType {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("tracing.exporter_type must be grpc or http, got %q", c.Tracing.ExporterType))
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			errs = append(errs, fmt.Errorf("tracing.sampling_rate must be in [0,1], got %v", c.Tracing.SamplingRate))
		}
	}

	return errors.Join(errs...)
}

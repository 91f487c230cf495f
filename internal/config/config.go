// Package config reads the ricefarm configuration file.
package config

import (
	"errors"
	"os"
	"time"

	"ricefarm/internal/farm"
	"ricefarm/internal/freerice"
	"ricefarm/internal/monitor"
	"ricefarm/internal/retry"
	"ricefarm/lib/configutil"
)

const DefaultPath = "ricefarm.json5"

const (
	DefaultTotal        = 1000
	DefaultWorkers      = 1
	DefaultLoginRetries = 8
	DefaultRoundRetries = 3
)

type RetryConfig struct {
	// Unbounded retries until success, MaxRetries is ignored.
	Unbounded      bool `json:"unbounded"`
	InitialDelayMs int  `json:"initial_delay_ms"`
	MaxDelayMs     int  `json:"max_delay_ms"`
	MaxRetries     *int `json:"max_retries"`
}

// Policy maps the config to a retry policy, unset fields take the defaults.
func (c RetryConfig) Policy(defaultRetries int) retry.Policy {
	policy := retry.BoundedPolicy(defaultRetries)
	if c.Unbounded {
		policy = retry.UnboundedPolicy()
	}
	if c.MaxRetries != nil {
		policy.MaxRetries = *c.MaxRetries
	}
	if c.InitialDelayMs > 0 {
		policy.InitialDelay = time.Duration(c.InitialDelayMs) * time.Millisecond
	}
	if c.MaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(c.MaxDelayMs) * time.Millisecond
	}
	return policy
}

type FreericeConfig struct {
	AccountsURL    string  `json:"accounts_url"`
	EngineURL      string  `json:"engine_url"`
	Origin         string  `json:"origin"`
	GameID         string  `json:"game_id"`
	UserAgent      string  `json:"user_agent"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RateLimit      float64 `json:"rate_limit"`
	// DisableCloudflareBypass leaves the transport untouched.
	DisableCloudflareBypass bool `json:"disable_cloudflare_bypass"`
}

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`

	Total       int `json:"total"`
	Workers     int `json:"workers"`
	ReportEvery int `json:"report_every"`
	// IntervalSeconds is the wait between telemetry samples.
	IntervalSeconds int `json:"interval_seconds"`

	Freerice   FreericeConfig `json:"freerice"`
	LoginRetry RetryConfig    `json:"login_retry"`
	RoundRetry RetryConfig    `json:"round_retry"`

	// History is the sqlite database runs are recorded to, empty disables it.
	History string `json:"history"`
	// DumpHTTP is a directory every http exchange is written to, empty disables it.
	DumpHTTP string `json:"dump_http"`
	Verbose  bool   `json:"verbose"`
}

// Load reads `path` (and its .local override), a missing file yields the zero config.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) TotalOrDefault() int {
	if c.Total <= 0 {
		return DefaultTotal
	}
	return c.Total
}

func (c Config) WorkersOrDefault() int {
	if c.Workers <= 0 {
		return DefaultWorkers
	}
	return c.Workers
}

func (c Config) Credentials() freerice.Credentials {
	return freerice.Credentials{Username: c.Username, Password: c.Password}
}

func (c Config) FreericeOptions() freerice.Options {
	opts := freerice.DefaultOptions()
	if c.Freerice.AccountsURL != "" {
		opts.AccountsURL = c.Freerice.AccountsURL
	}
	if c.Freerice.EngineURL != "" {
		opts.EngineURL = c.Freerice.EngineURL
	}
	if c.Freerice.Origin != "" {
		opts.Origin = c.Freerice.Origin
	}
	if c.Freerice.GameID != "" {
		opts.GameID = c.Freerice.GameID
	}
	if c.Freerice.UserAgent != "" {
		opts.UserAgent = c.Freerice.UserAgent
	}
	if c.Freerice.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(c.Freerice.TimeoutSeconds) * time.Second
	}
	opts.RateLimit = c.Freerice.RateLimit
	opts.CloudflareBypass = !c.Freerice.DisableCloudflareBypass
	return opts
}

func (c Config) LoginPolicy() retry.Policy {
	return c.LoginRetry.Policy(DefaultLoginRetries)
}

func (c Config) FarmOptions() farm.Options {
	opts := farm.DefaultOptions()
	opts.RoundPolicy = c.RoundRetry.Policy(DefaultRoundRetries)
	if c.ReportEvery > 0 {
		opts.ReportEvery = c.ReportEvery
	}
	return opts
}

func (c Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return monitor.DefaultInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent proofpilot configuration stored as
// config.toml in the .proofpilot/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version        int                  `toml:"version"`
	Completion     CompletionConfig     `toml:"completion"`
	GenerationsLog GenerationsLogConfig `toml:"generations_log"`
	Checker        CheckerConfig        `toml:"checker"`
	Embedding      EmbeddingConfig      `toml:"embedding"`
	Events         EventsConfig         `toml:"events"`

	// Services maps a backend identifier to the raw params of every model
	// configured for it, written as [[services.<id>]] tables. Keys keep the
	// params' own camelCase spelling.
	Services map[string][]map[string]any `toml:"services,omitempty"`
}

// CompletionConfig holds orchestrator settings.
type CompletionConfig struct {
	Workers           uint    `toml:"workers,omitempty"`
	HoleTimeout       string  `toml:"hole_timeout,omitempty"`
	Ranker            string  `toml:"ranker,omitempty"`
	RankerSeed        uint64  `toml:"ranker_seed,omitempty"`
	RequestsPerMinute float64 `toml:"requests_per_minute,omitempty"`
}

// GenerationsLogConfig holds settings of the per-service generations logs.
type GenerationsLogConfig struct {
	// Dir defaults to <dotdir>/generations.
	Dir          string `toml:"dir,omitempty"`
	Debug        bool   `toml:"debug,omitempty"`
	CleanOnStart bool   `toml:"clean_on_start,omitempty"`

	// Censor maps a params field name to the value written in its place.
	Censor map[string]any `toml:"censor,omitempty"`
}

// CheckerConfig describes the external proof checker command.
type CheckerConfig struct {
	Command string   `toml:"command,omitempty"`
	Args    []string `toml:"args,omitempty"`
	Timeout string   `toml:"timeout,omitempty"`
	Workers uint     `toml:"workers,omitempty"`
}

// EmbeddingConfig holds embedding provider settings for the embedding rankers.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`

	// KeepAlive keeps the embedding model loaded between rankings, e.g. "10m".
	KeepAlive string `toml:"keep_alive,omitempty"`
}

// EventsConfig selects where completion events are published.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// HoleTimeoutDuration parses Completion.HoleTimeout. Empty means no limit.
func (c *Config) HoleTimeoutDuration() (time.Duration, error) {
	return parseDuration("completion.hole_timeout", c.Completion.HoleTimeout)
}

// CheckerTimeoutDuration parses Checker.Timeout. Empty means no limit.
func (c *Config) CheckerTimeoutDuration() (time.Duration, error) {
	return parseDuration("checker.timeout", c.Checker.Timeout)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid value for %s: negative duration %s", key, v)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(key string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(key, v); err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var items []string
			for item := range strings.SplitSeq(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			*field(c) = items
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeyOrder lists the keys in config.toml section order, for listings.
var configKeyOrder = []string{
	"completion.workers",
	"completion.hole_timeout",
	"completion.ranker",
	"completion.ranker_seed",
	"completion.requests_per_minute",
	"generations_log.dir",
	"generations_log.debug",
	"generations_log.clean_on_start",
	"checker.command",
	"checker.args",
	"checker.timeout",
	"checker.workers",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.keep_alive",
	"events.provider",
	"events.brokers",
	"events.topic",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure. Services are
// edited in config.toml directly.
var configKeys = map[string]configKeyInfo{
	"completion.workers":      uintKey("completion.workers", func(c *Config) *uint { return &c.Completion.Workers }),
	"completion.hole_timeout": durationKey("completion.hole_timeout", func(c *Config) *string { return &c.Completion.HoleTimeout }),
	"completion.ranker":       stringKey(func(c *Config) *string { return &c.Completion.Ranker }),
	"completion.ranker_seed": {
		get: func(c *Config) string { return strconv.FormatUint(c.Completion.RankerSeed, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for completion.ranker_seed: %w", err)
			}
			c.Completion.RankerSeed = n
			return nil
		},
	},
	"completion.requests_per_minute": {
		get: func(c *Config) string {
			if c.Completion.RequestsPerMinute == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Completion.RequestsPerMinute, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid value for completion.requests_per_minute: %q", v)
			}
			c.Completion.RequestsPerMinute = f
			return nil
		},
	},
	"generations_log.dir":            stringKey(func(c *Config) *string { return &c.GenerationsLog.Dir }),
	"generations_log.debug":          boolKey("generations_log.debug", func(c *Config) *bool { return &c.GenerationsLog.Debug }),
	"generations_log.clean_on_start": boolKey("generations_log.clean_on_start", func(c *Config) *bool { return &c.GenerationsLog.CleanOnStart }),
	"checker.command":                stringKey(func(c *Config) *string { return &c.Checker.Command }),
	"checker.args":                   listKey(func(c *Config) *[]string { return &c.Checker.Args }),
	"checker.timeout":                durationKey("checker.timeout", func(c *Config) *string { return &c.Checker.Timeout }),
	"checker.workers":                uintKey("checker.workers", func(c *Config) *uint { return &c.Checker.Workers }),
	"embedding.provider":             stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":               stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":                stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.keep_alive":           durationKey("embedding.keep_alive", func(c *Config) *string { return &c.Embedding.KeepAlive }),
	"events.provider":                stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":                 listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":                   stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

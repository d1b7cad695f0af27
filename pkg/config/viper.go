package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/proofpilot/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PROOFPILOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via FlagSet.Bind)
//  2. Environment variables (PROOFPILOT_COMPLETION_WORKERS, PROOFPILOT_CHECKER_COMMAND, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
//
// Viper lowercases keys, so the [[services.<id>]] tables are read through
// Configer.LoadConfig instead.
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PROOFPILOT_CHECKER_TIMEOUT, PROOFPILOT_EVENTS_TOPIC, etc.
	v.SetEnvPrefix("PROOFPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Apply copies every scalar setting resolved by v into cfg, so the values of
// flags and environment variables win over the file.
func Apply(v *viper.Viper, cfg *Config) {
	cfg.Completion.Workers = v.GetUint("completion.workers")
	cfg.Completion.HoleTimeout = v.GetString("completion.hole_timeout")
	cfg.Completion.Ranker = v.GetString("completion.ranker")
	cfg.Completion.RankerSeed = v.GetUint64("completion.ranker_seed")
	cfg.Completion.RequestsPerMinute = v.GetFloat64("completion.requests_per_minute")

	cfg.GenerationsLog.Dir = v.GetString("generations_log.dir")
	cfg.GenerationsLog.Debug = v.GetBool("generations_log.debug")
	cfg.GenerationsLog.CleanOnStart = v.GetBool("generations_log.clean_on_start")

	cfg.Checker.Command = v.GetString("checker.command")
	cfg.Checker.Args = v.GetStringSlice("checker.args")
	cfg.Checker.Timeout = v.GetString("checker.timeout")
	cfg.Checker.Workers = v.GetUint("checker.workers")

	cfg.Embedding.Provider = v.GetString("embedding.provider")
	cfg.Embedding.Target = v.GetString("embedding.target")
	cfg.Embedding.Model = v.GetString("embedding.model")
	cfg.Embedding.KeepAlive = v.GetString("embedding.keep_alive")

	cfg.Events.Provider = v.GetString("events.provider")
	cfg.Events.Brokers = v.GetStringSlice("events.brokers")
	cfg.Events.Topic = v.GetString("events.topic")
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Completion
	v.SetDefault("completion.workers", d.Completion.Workers)
	v.SetDefault("completion.hole_timeout", d.Completion.HoleTimeout)
	v.SetDefault("completion.ranker", d.Completion.Ranker)
	v.SetDefault("completion.ranker_seed", d.Completion.RankerSeed)
	v.SetDefault("completion.requests_per_minute", d.Completion.RequestsPerMinute)

	// Generations log
	v.SetDefault("generations_log.dir", d.GenerationsLog.Dir)
	v.SetDefault("generations_log.debug", d.GenerationsLog.Debug)
	v.SetDefault("generations_log.clean_on_start", d.GenerationsLog.CleanOnStart)

	// Checker
	v.SetDefault("checker.command", d.Checker.Command)
	v.SetDefault("checker.args", d.Checker.Args)
	v.SetDefault("checker.timeout", d.Checker.Timeout)
	v.SetDefault("checker.workers", d.Checker.Workers)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.keep_alive", d.Embedding.KeepAlive)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

package config

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes one CLI flag that overrides a config.toml key. Commands
// register flags by name from a FlagSet so the same override reads the same
// everywhere it appears.
type Flag struct {
	// Shorthand is the one-letter short flag (e.g. "w"). Empty for none.
	Shorthand string

	// ViperKey is the dotted config key the flag overrides (e.g. "checker.command").
	ViperKey string

	Description string
}

// FlagSet maps flag names to their definitions.
type FlagSet map[string]Flag

// Flag names.
const (
	FlagWorkers        = "workers"
	FlagHoleTimeout    = "hole-timeout"
	FlagRanker         = "ranker"
	FlagRankerSeed     = "ranker-seed"
	FlagChecker        = "checker"
	FlagCheckerTimeout = "checker-timeout"
	FlagCheckerWorkers = "checker-workers"
	FlagGenerationsDir = "generations-dir"
	FlagDebugLog       = "debug-log"
	FlagCleanLogs      = "clean-logs"
	FlagEventsProvider = "events-provider"
	FlagEventsTopic    = "events-topic"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
)

// CompletionFlags are the overrides of the commands that run the orchestrator.
var CompletionFlags = FlagSet{
	FlagWorkers:        {Shorthand: "w", ViperKey: "completion.workers", Description: "Number of holes completed concurrently"},
	FlagHoleTimeout:    {ViperKey: "completion.hole_timeout", Description: "Wall-clock limit per hole (e.g. 10m)"},
	FlagRanker:         {ViperKey: "completion.ranker", Description: "Context theorem ranker (jaccardIndex, distance, random, euclidean, cosine)"},
	FlagRankerSeed:     {ViperKey: "completion.ranker_seed", Description: "Seed of the random ranker"},
	FlagChecker:        {ViperKey: "checker.command", Description: "Proof checker command"},
	FlagCheckerTimeout: {ViperKey: "checker.timeout", Description: "Time limit of one checker call"},
	FlagCheckerWorkers: {ViperKey: "checker.workers", Description: "Concurrent checker calls"},
	FlagGenerationsDir: {ViperKey: "generations_log.dir", Description: "Directory of the generations logs"},
	FlagDebugLog:       {ViperKey: "generations_log.debug", Description: "Write full chats, params and proofs to the generations logs"},
	FlagCleanLogs:      {ViperKey: "generations_log.clean_on_start", Description: "Truncate the generations logs on start"},
	FlagEventsProvider: {ViperKey: "events.provider", Description: "Completion events publisher (nop, kafka)"},
	FlagEventsTopic:    {ViperKey: "events.topic", Description: "Kafka topic of completion events"},
	FlagEmbeddingTgt:   {ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel: {ViperKey: "embedding.model", Description: "Embedding model name"},
}

// flagDefaults holds the built-in values every flag shows in --help.
var flagDefaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

// AddFlag registers the flag called name on cmd, bound to target. Its
// shorthand, default and help text come from fs. It panics on a name fs does
// not define, which is a programming error caught by any test of the command.
func AddFlag[T string | uint | bool](cmd *cobra.Command, fs FlagSet, name string, target *T) {
	def, ok := fs[name]
	if !ok {
		panic(fmt.Sprintf("config: flag %q is not registered", name))
	}

	flags := cmd.Flags()
	switch t := any(target).(type) {
	case *string:
		flags.StringVarP(t, name, def.Shorthand, flagDefaults().GetString(def.ViperKey), def.Description)
	case *uint:
		flags.UintVarP(t, name, def.Shorthand, flagDefaults().GetUint(def.ViperKey), def.Description)
	case *bool:
		flags.BoolVarP(t, name, def.Shorthand, flagDefaults().GetBool(def.ViperKey), def.Description)
	}
}

// Bind connects the flags of fs that cmd registered to their viper keys, so
// they take part in the flag > env > config file > default chain. Call it in
// PreRunE after InitViper.
func (fs FlagSet) Bind(v *viper.Viper, cmd *cobra.Command) error {
	for name, def := range fs {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(def.ViperKey, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

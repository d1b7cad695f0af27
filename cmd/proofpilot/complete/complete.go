// Package completecmder provides the complete command, which fills every hole
// of a holes file with a checked proof.
package completecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/proofpilot/pkg/checker"
	"github.com/papercomputeco/proofpilot/pkg/cliui"
	"github.com/papercomputeco/proofpilot/pkg/completion"
	"github.com/papercomputeco/proofpilot/pkg/config"
	"github.com/papercomputeco/proofpilot/pkg/credentials"
	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/dotdir"
	"github.com/papercomputeco/proofpilot/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/proofpilot/pkg/embeddings/utils"
	"github.com/papercomputeco/proofpilot/pkg/eventstream"
	"github.com/papercomputeco/proofpilot/pkg/eventstream/kafka"
	"github.com/papercomputeco/proofpilot/pkg/eventstream/nop"
	"github.com/papercomputeco/proofpilot/pkg/genlog"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider"
	"github.com/papercomputeco/proofpilot/pkg/logger"
	"github.com/papercomputeco/proofpilot/pkg/ranker"
	"github.com/papercomputeco/proofpilot/pkg/utils"
)

type completeCommander struct {
	configDir  string
	debug      bool
	services   []string
	output     string
	metricsOut string
	logFile    string
	report     bool

	workers         uint
	holeTimeout     string
	rankerType      string
	rankerSeed      uint
	checker         string
	checkerTimeout  string
	checkerWorkers  uint
	generationsDir  string
	debugLog        bool
	cleanLogs       bool
	eventsProvider  string
	eventsTopic     string
	embeddingTarget string
	embeddingModel  string

	cfg    *config.Config
	logger *slog.Logger
}

const completeLongDesc string = `Complete every hole of a holes file.

The holes file is JSON produced by the source collaborator: for each document
its URI, its theorems (with initial goals and proofs) and the holes to fill.
Every configured model is tried in order for each hole: the model generates
candidate proofs, the checker validates them, and invalid candidates are sent
back with the checker's diagnostic until a round budget is spent.

Results are written as JSON, one entry per hole, in input order.

Models are configured as [[services.<id>]] tables in config.toml. Supported
services: predefined-proofs, openai, grazie, lmstudio.

Examples:
  proofpilot complete holes.json
  proofpilot complete holes.json --service openai --workers 8
  proofpilot complete holes.json --checker ./coq-check --hole-timeout 5m -o results.json`

const completeShortDesc string = "Complete the holes of a holes file"

func NewCompleteCmd() *cobra.Command {
	cmder := &completeCommander{}

	cmd := &cobra.Command{
		Use:   "complete <holes.json>",
		Short: completeShortDesc,
		Long:  completeLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := config.CompletionFlags.Bind(v, cmd); err != nil {
				return err
			}
			config.Apply(v, cfg)

			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddFlag(cmd, config.CompletionFlags, config.FlagWorkers, &cmder.workers)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagHoleTimeout, &cmder.holeTimeout)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagRanker, &cmder.rankerType)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagRankerSeed, &cmder.rankerSeed)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagChecker, &cmder.checker)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagCheckerTimeout, &cmder.checkerTimeout)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagCheckerWorkers, &cmder.checkerWorkers)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagGenerationsDir, &cmder.generationsDir)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagDebugLog, &cmder.debugLog)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagCleanLogs, &cmder.cleanLogs)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddFlag(cmd, config.CompletionFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)

	cmd.Flags().StringSliceVarP(&cmder.services, "service", "s", nil, "Only use the models of these services")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "-", "Where to write the JSON results (- for stdout)")
	cmd.Flags().StringVar(&cmder.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append debug-level JSON logs of this run to a file")
	cmd.Flags().BoolVar(&cmder.report, "report", false, "Print a summary table to stderr")

	return cmd
}

func (c *completeCommander) run(ctx context.Context, holesPath string, out, errOut io.Writer) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(errOut),
	)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithJSON(true),
			logger.WithDebug(true),
			logger.WithWriter(f),
			logger.WithAttrs(slog.String("run_id", uuid.NewString())),
		))
	}

	var src *document.Source
	err := cliui.Step(errOut, "Loading holes from "+holesPath, func() error {
		var err error
		src, err = document.Load(holesPath)
		return err
	})
	if err != nil {
		return err
	}
	targets := src.Targets()

	holeTimeout, err := c.cfg.HoleTimeoutDuration()
	if err != nil {
		return err
	}

	creds, err := credentials.Open(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	resolved, err := c.cfg.ResolveServices(creds, c.services...)
	if err != nil {
		return err
	}

	models, closeLogs, err := c.newModels(resolved)
	if err != nil {
		return err
	}
	defer closeLogs()

	validator, err := c.newValidator()
	if err != nil {
		return err
	}

	rnk, closeRanker, err := c.newRanker()
	if err != nil {
		return err
	}
	defer closeRanker()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	orch, err := completion.New(completion.Config{
		Models:      models,
		Ranker:      rnk,
		Validator:   validator,
		HoleTimeout: holeTimeout,
		Workers:     c.cfg.Completion.Workers,
		Publisher:   publisher,
		Metrics:     completion.NewMetrics(reg),
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	c.logger.Info("completing holes",
		"file", holesPath,
		"holes", len(targets),
		"models", len(models),
		"workers", c.cfg.Completion.Workers,
	)

	results := orch.CompleteAll(ctx, targets)

	if err := c.writeResults(out, results); err != nil {
		return err
	}

	if c.metricsOut != "" {
		if err := prometheus.WriteToTextfile(c.metricsOut, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if c.report {
		rendered, err := cliui.RenderMarkdown(Report(results))
		if err != nil {
			c.logger.Warn("rendering report", "error", err)
		}
		fmt.Fprint(errOut, rendered)
	}

	return ctx.Err()
}

// newModels builds one Service per configured backend, each recording to its
// own generations log, and pairs it with every model of that backend.
func (c *completeCommander) newModels(resolved []config.ServiceModel) ([]completion.Model, func(), error) {
	dir := c.cfg.GenerationsLog.Dir
	if dir == "" {
		var err error
		dir, err = dotdir.NewManager().GenerationsDir(c.configDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving generations dir: %w", err)
		}
	}

	var logs []*genlog.Logger
	closeLogs := func() {
		for _, l := range logs {
			if err := l.Close(); err != nil {
				c.logger.Warn("closing generations log", "path", l.Path(), "error", err)
			}
		}
	}

	services := map[modelparams.ServiceID]*provider.Service{}
	models := make([]completion.Model, 0, len(resolved))
	for _, sm := range resolved {
		svc, ok := services[sm.Service]
		if !ok {
			p, err := provider.New(sm.Service, provider.WithAgent(utils.AgentName, utils.Version))
			if err != nil {
				closeLogs()
				return nil, nil, err
			}

			gl, err := genlog.New(genlog.PathFor(dir, string(sm.Service)), genlog.Settings{
				Debug:                    c.cfg.GenerationsLog.Debug,
				ParamsPropertiesToCensor: c.cfg.GenerationsLog.Censor,
				CleanLogsOnStart:         c.cfg.GenerationsLog.CleanOnStart,
			}, genlog.WithLogger(c.logger))
			if err != nil {
				closeLogs()
				return nil, nil, err
			}
			logs = append(logs, gl)

			svc, err = provider.NewService(provider.ServiceConfig{
				Provider:          p,
				GenerationsLog:    gl,
				RequestsPerMinute: c.cfg.Completion.RequestsPerMinute,
				Logger:            c.logger,
			})
			if err != nil {
				closeLogs()
				return nil, nil, err
			}
			services[sm.Service] = svc
		}
		models = append(models, completion.Model{Service: svc, Params: sm.Params})
	}

	return models, closeLogs, nil
}

func (c *completeCommander) newValidator() (*checker.Pool, error) {
	if c.cfg.Checker.Command == "" {
		return nil, errors.New("no proof checker configured: set checker.command or pass --checker")
	}

	timeout, err := c.cfg.CheckerTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return checker.NewPool(checker.Config{
		Checker: &checker.Command{Path: c.cfg.Checker.Command, Args: c.cfg.Checker.Args},
		Size:    int64(c.cfg.Checker.Workers),
		Timeout: timeout,
		Logger:  c.logger,
	})
}

func (c *completeCommander) newRanker() (ranker.Ranker, func(), error) {
	t := ranker.Type(c.cfg.Completion.Ranker)
	opts := ranker.Options{Seed: c.cfg.Completion.RankerSeed}
	closeFn := func() {}

	if t == ranker.Euclidean || t == ranker.Cosine {
		embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: c.cfg.Embedding.Provider,
			TargetURL:    c.cfg.Embedding.Target,
			Model:        c.cfg.Embedding.Model,
			KeepAlive:    c.cfg.Embedding.KeepAlive,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating embedder: %w", err)
		}
		opts.Embedder = embedder
		closeFn = func() { closeEmbedder(c.logger, embedder) }

		c.logger.Info("embedding ranker enabled",
			"ranker", string(t),
			"embedding_provider", c.cfg.Embedding.Provider,
			"embedding_target", c.cfg.Embedding.Target,
			"embedding_model", c.cfg.Embedding.Model,
		)
	}

	r, err := ranker.New(t, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return r, closeFn, nil
}

func closeEmbedder(log *slog.Logger, e embeddings.Embedder) {
	if err := e.Close(); err != nil {
		log.Warn("closing embedder", "error", err)
	}
}

func (c *completeCommander) newPublisher() (eventstream.Publisher, error) {
	switch strings.ToLower(c.cfg.Events.Provider) {
	case "", "nop":
		return nop.NewPublisher(c.logger), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.cfg.Events.Brokers,
			Topic:   c.cfg.Events.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing completion events",
			"provider", "kafka",
			"brokers", c.cfg.Events.Brokers,
			"topic", c.cfg.Events.Topic,
		)
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events provider %q (supported: nop, kafka)", c.cfg.Events.Provider)
	}
}

func (c *completeCommander) writeResults(out io.Writer, results []*completion.Result) error {
	w := out
	if c.output != "" && c.output != "-" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// Report renders results as a markdown summary table.
func Report(results []*completion.Result) string {
	counts := map[completion.Status]int{}
	var b strings.Builder
	b.WriteString("# Completion report\n\n")
	b.WriteString("| Hole | Theorem | Status | Rounds | Elapsed |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, r := range results {
		counts[r.Status]++
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n",
			utils.Truncate(r.HoleID, 12), r.Theorem, r.Status, r.Rounds(), cliui.FormatDuration(r.Elapsed))
	}
	fmt.Fprintf(&b, "\n**%d** holes: %d succeeded, %d search failed, %d errors, %d timed out\n",
		len(results),
		counts[completion.StatusSuccess],
		counts[completion.StatusSearchFailed],
		counts[completion.StatusErrorOccurred],
		counts[completion.StatusTimeoutExceeded],
	)
	return b.String()
}

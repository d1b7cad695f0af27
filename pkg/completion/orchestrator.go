// Package completion drives the generate-validate-repair loop that fills
// holes with proofs.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/checker"
	"github.com/papercomputeco/proofpilot/pkg/completion/worker"
	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/eventstream"
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/provider"
	"github.com/papercomputeco/proofpilot/pkg/llm/request"
	"github.com/papercomputeco/proofpilot/pkg/logger"
	"github.com/papercomputeco/proofpilot/pkg/proof"
	"github.com/papercomputeco/proofpilot/pkg/ranker"
)

// TimeoutDiagnostic is the diagnostic recorded for a candidate whose check
// ran out of time. Such a candidate is repairable like any NonValid one.
const TimeoutDiagnostic = "proof checking timed out"

// ErrHoleTimeout is reported when a hole exceeds its wall-clock limit.
var ErrHoleTimeout = errors.New("hole timeout exceeded")

// Validator checks one candidate. *checker.Pool implements it.
type Validator interface {
	Validate(ctx context.Context, candidate string, at checker.Position) (proof.Verdict, error)
}

// Model pairs a service with one set of params configured for it.
type Model struct {
	Service *provider.Service
	Params  modelparams.ModelParams
}

// Config configures an Orchestrator.
type Config struct {
	// Models are tried in order for every hole; the first success wins.
	Models []Model

	Ranker    ranker.Ranker
	Validator Validator

	// HoleTimeout bounds the wall-clock time of one hole, checked at round
	// boundaries. Zero means no limit.
	HoleTimeout time.Duration

	// Workers bounds the holes completed at once by CompleteAll.
	Workers uint

	// Publisher receives one event per finished hole. Optional.
	Publisher eventstream.Publisher

	// Metrics is optional.
	Metrics *Metrics

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator completes holes. It is safe for concurrent use; every hole
// owns its own proof chain.
type Orchestrator struct {
	models      []Model
	ranker      ranker.Ranker
	validator   Validator
	holeTimeout time.Duration
	pool        *worker.Pool
	publisher   eventstream.Publisher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// New validates cfg and returns an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.New("orchestrator requires at least one model")
	}
	for i, m := range cfg.Models {
		if m.Service == nil || m.Params == nil {
			return nil, fmt.Errorf("model %d: service and params are required", i)
		}
		if m.Params.Service() != m.Service.Name() {
			return nil, llm.NewConfigurationError("model %q: %s params configured for the %s service",
				m.Params.Common().ModelID, m.Params.Service(), m.Service.Name())
		}
		if err := modelparams.Validate(m.Params); err != nil {
			return nil, err
		}
	}
	if cfg.Validator == nil {
		return nil, errors.New("orchestrator requires a validator")
	}
	if cfg.Ranker == nil {
		cfg.Ranker = ranker.Jaccard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	pool, err := worker.NewPool(worker.Config{NumWorkers: cfg.Workers, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		models:      cfg.Models,
		ranker:      cfg.Ranker,
		validator:   cfg.Validator,
		holeTimeout: cfg.HoleTimeout,
		pool:        pool,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		logger:      logger.Named(cfg.Logger, "orchestrator"),
		now:         cfg.Now,
	}, nil
}

// CompleteAll completes every target on the worker pool and returns the
// results in input order. Targets never started because ctx was cancelled
// get an ERROR_OCCURRED result carrying the context error.
func (o *Orchestrator) CompleteAll(ctx context.Context, targets []document.Target) []*Result {
	results, err := worker.Run(ctx, o.pool, targets, o.Complete)
	for i, r := range results {
		if r != nil {
			continue
		}
		t := targets[i]
		r = &Result{HoleID: t.Hole.ID, URI: t.URI, Theorem: t.Hole.Theorem}
		r.fail(StatusErrorOccurred, fmt.Errorf("completion not started: %w", err))
		results[i] = r
	}
	return results
}

// Complete runs the repair loop of every configured model on target until one
// succeeds or a condition stops the hole.
func (o *Orchestrator) Complete(ctx context.Context, target document.Target) *Result {
	start := o.now()
	var deadline time.Time
	if o.holeTimeout > 0 {
		deadline = start.Add(o.holeTimeout)
	}

	hole := target.Hole
	log := o.logger.With("hole_id", hole.ID, "theorem", hole.Theorem)
	res := &Result{HoleID: hole.ID, URI: target.URI, Theorem: hole.Theorem, Status: StatusSearchFailed}

	var theorems []document.Theorem
	for _, t := range target.Theorems {
		if t.Rankable() {
			theorems = append(theorems, t)
		}
	}

	for _, m := range o.models {
		r := &run{
			o:        o,
			model:    m,
			target:   target,
			theorems: theorems,
			deadline: deadline,
			result:   res,
			log:      log.With("service", string(m.Service.Name()), "model_id", m.Params.Common().ModelID),
		}
		attempt := r.attempt(ctx)
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Status == StatusSuccess || stopsHole(attempt) {
			break
		}
	}

	res.Elapsed = o.now().Sub(start)
	o.settle(res)
	o.metrics.holeFinished(res)
	log.Info("hole completed", "status", res.Status, "rounds", res.Rounds(), "elapsed", res.Elapsed)
	o.publish(ctx, res)
	return res
}

func stopsHole(a *Attempt) bool {
	switch a.Status {
	case StatusTimeoutExceeded:
		return true
	case StatusErrorOccurred:
		return llm.IsConfigurationError(a.Err) || errors.Is(a.Err, context.Canceled) ||
			errors.Is(a.Err, context.DeadlineExceeded)
	}
	return false
}

// settle derives the hole status from its attempts: a success wins, then a
// stopping condition, then exhaustion.
func (o *Orchestrator) settle(res *Result) {
	var searchFailed bool
	for _, a := range res.Attempts {
		if a.Status == StatusSuccess {
			res.Status = StatusSuccess
			res.Err, res.Error = nil, ""
			return
		}
		if a.Status == StatusSearchFailed {
			searchFailed = true
		}
	}

	last := res.Attempts[len(res.Attempts)-1]
	switch {
	case stopsHole(last):
		res.fail(last.Status, last.Err)
	case searchFailed:
		res.Status = StatusSearchFailed
	default:
		res.fail(last.Status, last.Err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, res *Result) {
	if o.publisher == nil {
		return
	}

	models := make([]eventstream.ModelRun, len(res.Attempts))
	for i, a := range res.Attempts {
		models[i] = eventstream.ModelRun{
			Service:     a.Service,
			ModelID:     a.ModelID,
			Status:      string(a.Status),
			Rounds:      len(a.Rounds),
			Candidates:  a.Candidates(),
			TotalTokens: a.TokensSpent().TotalTokens(),
		}
	}
	outcome := eventstream.Outcome{
		Status:     string(res.Status),
		Error:      res.Error,
		DurationMs: res.Elapsed.Milliseconds(),
	}
	if res.Proof != nil {
		outcome.Proof = res.Proof.Text()
	}

	event := eventstream.NewCompletionFinishedEvent(o.now(),
		eventstream.HoleRef{ID: res.HoleID, URI: res.URI, Theorem: res.Theorem},
		outcome, models)
	if err := o.publisher.PublishCompletion(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn("publishing completion event failed", "hole_id", res.HoleID, "error", err)
	}
}

// run is the state of one model's attempt at one hole.
type run struct {
	o        *Orchestrator
	model    Model
	target   document.Target
	theorems []document.Theorem
	deadline time.Time
	result   *Result
	log      *slog.Logger

	ranked []document.Theorem
	chain  *proof.Chain
	att    *Attempt

	// pending holds NonValid candidates not yet repaired; the next repair
	// target is popped from the end, so the latest round is repaired first,
	// in backend order.
	pending []*proof.Generated
}

func (r *run) attempt(ctx context.Context) *Attempt {
	params := r.model.Params
	common := params.Common()
	hole := r.target.Hole

	r.chain = proof.NewChain(hole.ID)
	r.att = &Attempt{
		Service: string(r.model.Service.Name()),
		ModelID: common.ModelID,
		chain:   r.chain,
	}
	a := r.att

	if err := r.boundary(ctx); err != nil {
		return a
	}

	ranked, err := r.o.ranker.Rank(context.WithoutCancel(ctx), r.theorems, hole)
	if err != nil {
		a.fail(StatusErrorOccurred, fmt.Errorf("ranking context theorems: %w", err))
		return a
	}
	r.ranked = ranked

	maxRounds := common.MultiroundProfile.MaxRoundsNumber
	var parent *proof.Generated

	for number := 1; ; number++ {
		if number > 1 {
			if err := r.boundary(ctx); err != nil {
				return a
			}
		}

		report, batch, err := r.round(ctx, parent)
		if report != nil {
			a.Rounds = append(a.Rounds, report)
		}
		if err != nil {
			if number == 1 || llm.IsConfigurationError(err) || !isGenerationFailure(err) {
				a.fail(StatusErrorOccurred, err)
				return a
			}
			r.log.Warn("repair round failed", "round", number, "error", err)
		}

		for _, g := range batch {
			if g.Version().State() == proof.Valid {
				a.Status = StatusSuccess
				r.result.Proof = g.Version()
				r.log.Info("proof found", "round", number, "proof_id", g.Version().ID())
				return a
			}
		}

		// Latest round first, in backend order.
		for i := len(batch) - 1; i >= 0; i-- {
			if batch[i].CanBeFixed() {
				r.pending = append(r.pending, batch[i])
			}
		}
		if len(batch) > 0 {
			a.Diagnostics = diagnostics(batch)
		}

		if number >= maxRounds || len(r.pending) == 0 {
			a.Status = StatusSearchFailed
			return a
		}
		if common.MultiroundProfile.DefaultProofFixChoices == 0 {
			a.Status = StatusSearchFailed
			return a
		}

		parent = r.pending[len(r.pending)-1]
		r.pending = r.pending[:len(r.pending)-1]
	}
}

// boundary checks cancellation and the hole deadline before a round.
func (r *run) boundary(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		r.att.fail(StatusErrorOccurred, fmt.Errorf("completion cancelled: %w", err))
		return err
	}
	if !r.deadline.IsZero() && !r.o.now().Before(r.deadline) {
		r.att.fail(StatusTimeoutExceeded, ErrHoleTimeout)
		return ErrHoleTimeout
	}
	return nil
}

// round generates and validates one batch. parent is nil for the first
// round. The returned batch holds the candidates in backend order.
func (r *run) round(ctx context.Context, parent *proof.Generated) (*RoundReport, []*proof.Generated, error) {
	started := r.o.now()
	params := r.model.Params
	common := params.Common()
	hole := r.target.Hole
	service := r.model.Service

	var (
		chat     llm.AnalyzedChatHistory
		choices  int
		previous []*proof.Version
		err      error
	)
	if parent == nil {
		chat, err = BuildChat(params, hole, r.ranked)
		choices = common.DefaultChoices
	} else {
		var targets []*proof.Version
		targets, err = parent.FixTargets(common.MultiroundProfile.MaxPreviousProofVersionsNumber)
		if err == nil {
			chat, err = BuildFixChat(params, hole, r.ranked, targets)
		}
		choices = common.MultiroundProfile.DefaultProofFixChoices
		previous = parent.Versions()
	}
	if err != nil {
		return nil, nil, err
	}

	var parentVersion *proof.Version
	if parent != nil {
		parentVersion = parent.Version()
	}
	round, err := r.chain.StartRound(parentVersion)
	if err != nil {
		return nil, nil, err
	}
	r.o.metrics.roundStarted(string(service.Name()))

	report := &RoundReport{
		Number:          round.Number,
		RoundID:         round.ID,
		ParentProofID:   round.Parent,
		ContextTheorems: chat.ContextTheorems,
	}
	defer func() { report.Elapsed = r.o.now().Sub(started) }()

	log := r.log.With("round", round.Number)
	log.Debug("requesting candidates", "choices", choices, "context_theorems", len(chat.ContextTheorems))

	// In-flight backend and checker calls run to completion; cancellation
	// is honoured at the next round boundary.
	callCtx := context.WithoutCancel(ctx)

	gen, genErr := service.GenerateFromChat(callCtx, request.Request{
		Service:      string(service.Name()),
		Params:       params,
		Choices:      choices,
		AnalyzedChat: chat,
	})
	if gen.LogErr != nil {
		r.result.LogFailures = append(r.result.LogFailures, gen.LogErr)
	}
	if genErr != nil {
		kind, _ := llm.ErrorKind(genErr)
		r.o.metrics.generationFailed(string(service.Name()), kind)
		report.Err, report.Error = genErr, genErr.Error()
		return report, nil, genErr
	}
	report.TokensSpent = gen.TokensSpentInTotal

	contextTheorems := r.contextTheorems(chat.ContextTheorems)
	var batch []*proof.Generated
	for _, item := range gen.Items {
		g, err := service.ConstructGeneratedProof(item, hole, contextTheorems, params, previous)
		if err != nil {
			return report, nil, err
		}
		if strings.TrimSpace(g.Text()) == "" {
			log.Debug("discarding empty candidate")
			continue
		}
		if err := r.chain.AddVersion(round, g.Version()); err != nil {
			return report, nil, err
		}
		batch = append(batch, g)
		report.Proofs = append(report.Proofs, g.Version())
	}
	if len(batch) == 0 {
		err := llm.NewGenerationFailedError(errors.New("no usable candidates in the generated batch"))
		report.Err, report.Error = err, err.Error()
		return report, nil, err
	}

	at := checker.Position{URI: r.target.URI, Hole: hole}
	for _, g := range batch {
		verdict, err := r.o.validator.Validate(callCtx, g.Text(), at)
		if errors.Is(err, checker.ErrTimeout) {
			verdict, err = proof.InvalidVerdict(TimeoutDiagnostic), nil
		}
		if err != nil {
			err = fmt.Errorf("checking candidate %s: %w", g.Version().ID(), err)
			report.Err, report.Error = err, err.Error()
			return report, batch, err
		}
		if err := g.Validate(verdict); err != nil {
			return report, batch, err
		}

		label := "invalid"
		if verdict.IsValid {
			label = "valid"
		}
		r.o.metrics.candidateChecked(string(service.Name()), label)

		if verdict.IsValid {
			break
		}
	}
	return report, batch, nil
}

func (r *run) contextTheorems(names []string) []document.Theorem {
	out := make([]document.Theorem, 0, len(names))
	for i := range names {
		out = append(out, r.ranked[i])
	}
	return out
}

func isGenerationFailure(err error) bool {
	var genErr *llm.GenerationFailedError
	return errors.As(err, &genErr)
}

func diagnostics(batch []*proof.Generated) []string {
	var out []string
	for _, g := range batch {
		if d, ok := g.Version().Diagnostic(); ok {
			out = append(out, d)
		}
	}
	return out
}

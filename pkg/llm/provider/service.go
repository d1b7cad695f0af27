package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/genlog"
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/request"
	"github.com/papercomputeco/proofpilot/pkg/logger"
	"github.com/papercomputeco/proofpilot/pkg/proof"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Provider Provider

	// GenerationsLog records every request. Nil disables recording.
	GenerationsLog *genlog.Logger

	// RequestsPerMinute paces backend calls. Zero means unpaced.
	RequestsPerMinute float64

	Logger *slog.Logger
}

// Service is the contract the orchestrator sees for one backend instance.
type Service struct {
	provider Provider
	genlog   *genlog.Logger
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// Generation is the outcome of one request.
type Generation struct {
	Request            request.Request
	Items              []llm.GeneratedRawContentItem
	TokensSpentInTotal llm.GenerationTokens

	// LogErr is set when the request could not be recorded in the
	// generations log. It never changes the generation outcome.
	LogErr error
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errors.New("service requires a provider")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}

	return &Service{
		provider: cfg.Provider,
		genlog:   cfg.GenerationsLog,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named(cfg.Logger, "llm").With("service", string(cfg.Provider.Name())),
	}, nil
}

// Name returns the backend's service identifier.
func (s *Service) Name() modelparams.ServiceID {
	return s.provider.Name()
}

// GenerationsLog returns the logger recording this service's requests.
func (s *Service) GenerationsLog() *genlog.Logger {
	return s.genlog
}

// GenerateFromChat issues req and records it in the generations log exactly
// once. A request rejected before reaching the backend (missing or foreign
// params, no choices) is a ConfigurationError and is not recorded. The
// returned Generation is never nil; err is nil or one of the llm error
// taxonomy entries.
func (s *Service) GenerateFromChat(ctx context.Context, req request.Request) (*Generation, error) {
	gen := &Generation{Request: req}

	if err := s.check(req); err != nil {
		s.logger.Warn("generation rejected",
			"model_id", req.ModelID(),
			"choices", req.Choices,
			"error", err,
		)
		return gen, err
	}

	items, spent, err := s.generate(ctx, req)
	if err != nil {
		failed := request.NewFailed(req, err)
		gen.LogErr = s.record(func(l *genlog.Logger) error { return l.LogFailed(failed) })
		s.logger.Warn("generation failed",
			"model_id", req.ModelID(),
			"choices", req.Choices,
			"error", failed.Err,
		)
		return gen, failed.Err
	}

	gen.Items = items
	gen.TokensSpentInTotal = spent
	gen.LogErr = s.record(func(l *genlog.Logger) error {
		return l.LogSucceeded(&request.Succeeded{
			Request:            req,
			GeneratedRawProofs: items,
			TokensSpentInTotal: spent,
		})
	})
	s.logger.Debug("generation succeeded",
		"model_id", req.ModelID(),
		"choices", req.Choices,
		"generated", len(items),
		"tokens", spent.TotalTokens(),
	)
	return gen, nil
}

// check rejects requests that must never reach the backend.
func (s *Service) check(req request.Request) error {
	if req.Params == nil {
		return llm.NewConfigurationError("request has no model params")
	}
	if req.Params.Service() != s.provider.Name() {
		return llm.NewConfigurationError("%s params given to the %s service", req.Params.Service(), s.provider.Name())
	}
	if req.Choices <= 0 {
		return llm.NewConfigurationError("choices must be positive, got %d", req.Choices)
	}
	return modelparams.Validate(req.Params)
}

func (s *Service) generate(ctx context.Context, req request.Request) ([]llm.GeneratedRawContentItem, llm.GenerationTokens, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, llm.GenerationTokens{}, fmt.Errorf("waiting for request slot: %w", err)
	}

	items, spent, err := s.provider.Generate(ctx, req.AnalyzedChat.Chat, req.Params, req.Choices)
	if err != nil {
		return nil, llm.GenerationTokens{}, err
	}
	if len(items) > req.Choices {
		items = items[:req.Choices]
	}
	return items, spent, nil
}

func (s *Service) record(write func(*genlog.Logger) error) error {
	if s.genlog == nil {
		return nil
	}
	if err := write(s.genlog); err != nil {
		s.logger.Error("recording generation failed", "path", s.genlog.Path(), "error", err)
		return fmt.Errorf("recording generation: %w", err)
	}
	return nil
}

// ConstructGeneratedProof post-processes one raw completion into a proof
// handle. previous is the lineage of NonValid versions the completion
// repairs, oldest first; it is empty for first-round candidates.
func (s *Service) ConstructGeneratedProof(item llm.GeneratedRawContentItem, hole document.Hole, theorems []document.Theorem, params modelparams.ModelParams, previous []*proof.Version) (*proof.Generated, error) {
	parent := ""
	if n := len(previous); n > 0 {
		parent = previous[n-1].ID()
	}
	v := proof.NewVersion(item, PrepareProof(item.Content), parent)
	return proof.NewGenerated(v, previous, hole, theorems, params)
}

// PrepareProof strips markdown code fences and the surrounding Proof/Qed
// keywords models tend to add, leaving the proof body.
func PrepareProof(content string) string {
	text := strings.TrimSpace(content)

	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, "Proof."))
	for _, suffix := range []string{"Qed.", "Defined.", "Admitted."} {
		if strings.HasSuffix(text, suffix) {
			text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
			break
		}
	}
	return text
}

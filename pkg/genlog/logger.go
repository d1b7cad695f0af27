// Package genlog implements the generations log: an append-only, human
// readable audit trail of every request sent to a language model service.
//
// One Logger owns one file for its whole lifetime. Appends are serialized by an
// in-process mutex and an exclusive advisory file lock, and every record is
// written with a single write call, so concurrent readers only ever observe
// whole records.
package genlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/llm/request"
	"github.com/papercomputeco/proofpilot/pkg/logger"
)

// ErrClosed is returned by operations on a closed Logger.
var ErrClosed = errors.New("generations logger is closed")

// Settings configure a Logger.
type Settings struct {
	// Debug persists the full chat, context theorems, censored model params
	// and generated proofs with every record. Without it the log is compact:
	// each SUCCESS record replaces the file content, so the file only holds
	// the records since the last success.
	Debug bool

	// ParamsPropertiesToCensor maps model params property names to the value
	// stored instead of the real one.
	ParamsPropertiesToCensor map[string]any

	// CleanLogsOnStart truncates the file when the Logger is created.
	CleanLogsOnStart bool
}

// Option configures optional Logger dependencies.
type Option func(*Logger)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Logger) {
		l.log = log
	}
}

// PathFor returns the log file of service inside dir.
func PathFor(dir, service string) string {
	return filepath.Join(dir, service+".log")
}

// Logger appends generation records to a single file.
type Logger struct {
	path     string
	settings Settings
	censor   *censor
	now      func() time.Time
	log      *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New opens (creating if needed) the log file at path.
func New(path string, settings Settings, opts ...Option) (*Logger, error) {
	c, err := newCensor(settings.ParamsPropertiesToCensor)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating generations log dir: %w", err)
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if settings.CleanLogsOnStart {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening generations log: %w", err)
	}

	l := &Logger{
		path:     path,
		settings: settings,
		censor:   c,
		now:      time.Now,
		log:      logger.Nop(),
		file:     f,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Debug reports whether the logger writes debug records.
func (l *Logger) Debug() bool {
	return l.settings.Debug
}

// LogSucceeded appends a SUCCESS record for s.
func (l *Logger) LogSucceeded(s *request.Succeeded) error {
	r, err := l.buildRecord(&s.Request, StatusSuccess, nil, s.Contents())
	if err != nil {
		return err
	}
	return l.append(r)
}

// LogFailed appends a FAILURE record for f.
func (l *Logger) LogFailed(f *request.Failed) error {
	if f.Err == nil {
		return errors.New("cannot log a failed request without an error")
	}
	kind, message := llm.ErrorKind(f.Err)
	r, err := l.buildRecord(&f.Request, StatusFailure, &LoggedError{Kind: kind, Message: message}, nil)
	if err != nil {
		return err
	}
	return l.append(r)
}

func (l *Logger) buildRecord(req *request.Request, status Status, loggedErr *LoggedError, proofs []string) (*Record, error) {
	var estimated *int
	if est := req.AnalyzedChat.EstimatedTokens; est != nil {
		total := est.MaxTokensInTotal
		estimated = &total
	}

	r := NewRecord(l.now(), req.ModelID(), status, req.Choices, estimated, loggedErr)

	params := map[string]any{}
	if req.Params != nil {
		var err error
		if params, err = modelparams.ToMap(req.Params); err != nil {
			return nil, fmt.Errorf("rendering model params: %w", err)
		}
	}

	if l.settings.Debug {
		r.Debug = &DebugData{
			ContextTheorems: slices.Clone(req.AnalyzedChat.ContextTheorems),
			Chat:            req.AnalyzedChat.Chat.Clone(),
			GeneratedProofs: slices.Clone(proofs),
			Params:          params,
		}
		if r.Debug.ContextTheorems == nil {
			r.Debug.ContextTheorems = []string{}
		}
	}

	l.censor.censorRecord(&r, params)
	return &r, nil
}

func (l *Logger) append(r *Record) error {
	text, err := Serialize(r)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	if err := lockExclusive(l.file); err != nil {
		return fmt.Errorf("locking generations log: %w", err)
	}
	defer func() {
		if err := unlock(l.file); err != nil {
			l.log.Warn("unlocking generations log failed", "path", l.path, "error", err)
		}
	}()

	if !l.settings.Debug && r.IsSuccess() {
		if err := l.file.Truncate(0); err != nil {
			return fmt.Errorf("truncating generations log: %w", err)
		}
	}

	if _, err := l.file.WriteString(text); err != nil {
		return fmt.Errorf("writing generations log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing generations log: %w", err)
	}

	l.log.Debug("generation logged",
		"model_id", r.ModelID,
		"status", string(r.Status),
		"choices", r.Choices,
	)
	return nil
}

// ReadLogs parses the whole file. A malformed record fails the read with a
// *ParsingError; nothing is skipped. A missing file holds no records.
func (l *Logger) ReadLogs() ([]Record, error) {
	records, err := ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

// ReadFile parses the generations log at path without creating or modifying
// it. A missing file is reported as an error matching os.ErrNotExist.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening generations log: %w", err)
	}
	defer f.Close()

	if err := lockShared(f); err != nil {
		return nil, fmt.Errorf("locking generations log: %w", err)
	}
	data, err := io.ReadAll(f)
	if uerr := unlock(f); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, fmt.Errorf("reading generations log: %w", err)
	}

	return DeserializeAll(string(data))
}

// ReadLogsSinceLastSuccess returns the most recent SUCCESS record and every
// record after it. It returns nothing when the log holds no success.
func (l *Logger) ReadLogsSinceLastSuccess() ([]Record, error) {
	records, err := l.ReadLogs()
	if err != nil {
		return nil, err
	}
	return SinceLastSuccess(records), nil
}

// SinceLastSuccess scans records from the end for the last SUCCESS and returns
// the suffix starting at it.
func SinceLastSuccess(records []Record) []Record {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].IsSuccess() {
			return records[i:]
		}
	}
	return nil
}

// Close releases the file handle. Further appends return ErrClosed.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/proof"
)

// Command runs an external program per candidate. The program reads one JSON
// object on stdin:
//
//	{"uri": "...", "hole": {...}, "candidate": "..."}
//
// and answers with one JSON verdict on stdout:
//
//	{"isValid": false, "diagnostic": "..."}
type Command struct {
	Path string
	Args []string

	// WaitDelay bounds how long a killed program may hold its output open.
	// Defaults to one second.
	WaitDelay time.Duration
}

type commandInput struct {
	Position
	Candidate string `json:"candidate"`
}

func (c *Command) Check(ctx context.Context, candidate string, at Position) (proof.Verdict, error) {
	input, err := json.Marshal(commandInput{Position: at, Candidate: candidate})
	if err != nil {
		return proof.Verdict{}, fmt.Errorf("encoding checker input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = time.Second
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return proof.Verdict{}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return proof.Verdict{}, fmt.Errorf("checker exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return proof.Verdict{}, fmt.Errorf("running checker: %w", err)
	}

	var verdict proof.Verdict
	if err := json.Unmarshal(stdout.Bytes(), &verdict); err != nil {
		return proof.Verdict{}, fmt.Errorf("decoding checker verdict: %w", err)
	}
	if !verdict.IsValid && strings.TrimSpace(verdict.Diagnostic) == "" {
		return proof.Verdict{}, errors.New("checker rejected the proof without a diagnostic")
	}
	if verdict.IsValid {
		verdict.Diagnostic = ""
	}
	return verdict, nil
}

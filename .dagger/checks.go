package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagger/proofpilot/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (p *ProofPilot) CheckGoModTidy(ctx context.Context) (string, error) {
	_, err := p.goContainer().
		WithExec([]string{"cp", "go.mod", "go.mod.HEAD"}).
		WithExec([]string{"cp", "go.sum", "go.sum.HEAD"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{"sh", "-c", "diff -u go.mod.HEAD go.mod && diff -u go.sum.HEAD go.sum"}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	if errors.As(err, &execErr) {
		return "", fmt.Errorf("go.mod or go.sum are not tidy, run 'go mod tidy':\n\n%s", execErr.Stdout)
	}
	if err != nil {
		return "", err
	}
	return "go.mod and go.sum are tidy", nil
}

// CheckFormat fails when any Go file outside the example and CI trees is not
// gofmt clean, listing the offending files.
//
// +check
func (p *ProofPilot) CheckFormat(ctx context.Context) (string, error) {
	out, err := p.goContainer().
		WithExec([]string{"gofmt", "-l", "cli", "cmd", "pkg"}).
		Stdout(ctx)
	if err != nil {
		return "", err
	}

	if files := strings.TrimSpace(out); files != "" {
		return "", fmt.Errorf("files need gofmt:\n%s", files)
	}
	return "all files are gofmt clean", nil
}

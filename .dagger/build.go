package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/proofpilot/internal/dagger"
)

const utilsPkg = "github.com/papercomputeco/proofpilot/pkg/utils"

// platforms is the release matrix as GOOS/GOARCH pairs.
var platforms = []string{
	"linux/amd64",
	"linux/arm64",
	"darwin/amd64",
	"darwin/arm64",
}

// Build cross-compiles the proofpilot CLI and returns a directory holding one
// binary per platform, named proofpilot-<os>-<arch>.
func (p *ProofPilot) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()
	base := p.goContainer()

	for _, platform := range platforms {
		goos, goarch, _ := strings.Cut(platform, "/")
		name := fmt.Sprintf("proofpilot-%s-%s", goos, goarch)

		bin := base.
			WithEnvVariable("GOOS", goos).
			WithEnvVariable("GOARCH", goarch).
			WithExec([]string{"go", "build", "-trimpath", "-ldflags", ldflags, "-o", "/out/" + name, "./cli/proofpilot"}).
			File("/out/" + name)

		outputs = outputs.WithFile(name, bin)
	}

	return outputs
}

// BuildRelease compiles release binaries with the version, commit and build
// time stamped into the version command.
func (p *ProofPilot) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := strings.Join([]string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", utilsPkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", utilsPkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", utilsPkg, time.Now().UTC().Format(time.RFC3339)),
	}, " ")

	return p.Build(ctx, ldflags)
}

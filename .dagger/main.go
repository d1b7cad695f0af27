// ProofPilot CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/proofpilot/internal/dagger"
)

// ProofPilot is the main module for the ProofPilot CI/CD pipeline
type ProofPilot struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new ProofPilot CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".proofpilot", "build", "tmp"]
	source *dagger.Directory,
) *ProofPilot {
	return &ProofPilot{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with the project
// source mounted. The generations log tests need flock, so this is not alpine.
//
// It is the shared foundation for tests, builds, and linting.
func (p *ProofPilot) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", p.Source)
}

// Test runs the proofpilot unit tests via ginkgo
func (p *ProofPilot) Test(ctx context.Context) (string, error) {
	return p.goContainer().
		WithExec([]string{"go", "run", "github.com/onsi/ginkgo/v2/ginkgo", "-r", "--randomize-all", "--race=false"}).
		Stdout(ctx)
}

// TestKafka runs the event stream tests against a throwaway Kafka broker.
func (p *ProofPilot) TestKafka(ctx context.Context) (string, error) {
	broker := dag.Container().
		From("apache/kafka:3.9.0").
		WithExposedPort(9092).
		AsService()

	return p.goContainer().
		WithServiceBinding("kafka", broker).
		WithEnvVariable("PROOFPILOT_EVENTS_BROKERS", "kafka:9092").
		WithExec([]string{"go", "test", "-v", "./pkg/eventstream/..."}).
		Stdout(ctx)
}

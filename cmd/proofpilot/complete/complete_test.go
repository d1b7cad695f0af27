package completecmder_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	completecmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/complete"
	"github.com/papercomputeco/proofpilot/pkg/completion"
)

const holesFile = `{
  "documents": [{
    "uri": "file:///plus.v",
    "theorems": [{
      "name": "plus_n_O",
      "statement": "Theorem plus_n_O : forall n : nat, n = n + 0.",
      "proof": "Proof. induction n; simpl; congruence. Qed.",
      "initialGoal": {"hyps": [], "conclusion": "forall n : nat, n = n + 0"},
      "start": {"line": 0, "character": 0},
      "end": {"line": 2, "character": 4}
    }],
    "holes": [{
      "id": "hole-1",
      "theorem": "plus_comm_0",
      "position": {"line": 5, "character": 2},
      "goal": {"hyps": [{"names": ["n"], "type": "nat"}], "conclusion": "0 + n = n"}
    }]
  }]
}`

// checkerScript accepts a candidate only when it mentions "simpl".
const checkerScript = `#!/bin/sh
input=$(cat)
case "$input" in
  *simpl*) echo '{"isValid": true}' ;;
  *) echo '{"isValid": false, "diagnostic": "Error: Unable to unify."}' ;;
esac
`

type jsonResult struct {
	HoleID string `json:"holeId"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Proof  *struct {
		Proof string `json:"proof"`
		State string `json:"state"`
	} `json:"proof"`
	Attempts []struct {
		Service string `json:"service"`
		ModelID string `json:"modelId"`
		Status  string `json:"status"`
	} `json:"attempts"`
}

func newCmd(configDir string) *cobra.Command {
	cmd := completecmder.NewCompleteCmd()
	cmd.PersistentFlags().String("config-dir", configDir, "Override path to .proofpilot/ config directory")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

var _ = Describe("NewCompleteCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := completecmder.NewCompleteCmd()
		Expect(cmd.Use).To(Equal("complete <holes.json>"))
	})

	It("registers the completion flags from the registry", func() {
		cmd := completecmder.NewCompleteCmd()
		for _, name := range []string{"workers", "hole-timeout", "ranker", "checker", "checker-timeout", "debug-log", "events-provider", "service", "output", "metrics-out", "report"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("workers").Shorthand).To(Equal("w"))
	})

	It("requires exactly one holes file", func() {
		cmd := newCmd(GinkgoT().TempDir())
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("Complete command execution", func() {
	var (
		configDir string
		holesPath string
		checker   string
		output    string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		work := GinkgoT().TempDir()

		holesPath = filepath.Join(work, "holes.json")
		Expect(os.WriteFile(holesPath, []byte(holesFile), 0o600)).To(Succeed())

		checker = filepath.Join(work, "check.sh")
		Expect(os.WriteFile(checker, []byte(checkerScript), 0o755)).To(Succeed())

		output = filepath.Join(work, "results.json")

		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`
[[services.predefined-proofs]]
modelId = "tactics"
tactics = ["auto.", "intros; simpl; reflexivity."]
`), 0o600)).To(Succeed())
	})

	readResults := func() []jsonResult {
		data, err := os.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())
		var results []jsonResult
		Expect(json.Unmarshal(data, &results)).To(Succeed())
		return results
	}

	It("completes the holes and writes results, logs and metrics", func() {
		metrics := filepath.Join(filepath.Dir(output), "metrics.prom")

		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker, "-o", output, "--metrics-out", metrics, "--debug-log"})
		Expect(cmd.Execute()).To(Succeed())

		results := readResults()
		Expect(results).To(HaveLen(1))
		Expect(results[0].HoleID).To(Equal("hole-1"))
		Expect(results[0].Status).To(Equal(string(completion.StatusSuccess)))
		Expect(results[0].Proof.Proof).To(ContainSubstring("simpl"))
		Expect(results[0].Proof.State).To(Equal("valid"))
		Expect(results[0].Attempts[0].ModelID).To(Equal("tactics"))

		logData, err := os.ReadFile(filepath.Join(configDir, "generations", "predefined-proofs.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(logData)).To(ContainSubstring("tactics"))

		metricsData, err := os.ReadFile(metrics)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(metricsData)).To(ContainSubstring(`proofpilot_completion_holes_total{status="SUCCESS"} 1`))
	})

	It("reports search failure when no candidate passes the checker", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`
[[services.predefined-proofs]]
modelId = "tactics"
tactics = ["auto."]
`), 0o600)).To(Succeed())

		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker, "-o", output})
		Expect(cmd.Execute()).To(Succeed())

		results := readResults()
		Expect(results[0].Status).To(Equal(string(completion.StatusSearchFailed)))
		Expect(results[0].Proof).To(BeNil())
	})

	It("writes results to stdout by default", func() {
		cmd := newCmd(configDir)
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{holesPath, "--checker", checker})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(`"holeId": "hole-1"`))
	})

	It("appends a JSON run log with --log-file", func() {
		logFile := filepath.Join(filepath.Dir(output), "run.log")

		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker, "-o", output, "--log-file", logFile})
		Expect(cmd.Execute()).To(Succeed())

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).NotTo(BeEmpty())

		var first map[string]any
		Expect(json.Unmarshal([]byte(lines[0]), &first)).To(Succeed())
		Expect(first).To(HaveKey("run_id"))
		Expect(string(data)).To(ContainSubstring(`"msg":"hole completed"`))
	})

	It("fails without a checker", func() {
		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "-o", output})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("no proof checker configured")))
	})

	It("fails for a service that is not configured", func() {
		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker, "--service", "openai"})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("not configured")))
	})

	It("fails for an unknown events provider", func() {
		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker, "--events-provider", "nats"})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("unsupported events provider")))
	})

	It("fails for a malformed holes file", func() {
		Expect(os.WriteFile(holesPath, []byte(`{"documents": []}`), 0o600)).To(Succeed())
		cmd := newCmd(configDir)
		cmd.SetArgs([]string{holesPath, "--checker", checker})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("invalid holes file")))
	})
})

var _ = Describe("Report", func() {
	It("summarizes statuses", func() {
		report := completecmder.Report([]*completion.Result{
			{HoleID: "h1", Theorem: "a", Status: completion.StatusSuccess, Elapsed: 2 * time.Second},
			{HoleID: "h2", Theorem: "b", Status: completion.StatusSearchFailed},
			{HoleID: "h3", Theorem: "c", Status: completion.StatusTimeoutExceeded},
		})
		Expect(report).To(ContainSubstring("| h1 | a | SUCCESS | 0 | 2.0s |"))
		Expect(report).To(ContainSubstring("**3** holes: 1 succeeded, 1 search failed, 0 errors, 1 timed out"))
	})
})

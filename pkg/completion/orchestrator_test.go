package completion_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/proofpilot/pkg/completion"
	"github.com/papercomputeco/proofpilot/pkg/document"
	"github.com/papercomputeco/proofpilot/pkg/genlog"
	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/proof"
	"github.com/papercomputeco/proofpilot/pkg/ranker"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx       context.Context
		script    *scriptedProvider
		log       *genlog.Logger
		model     completion.Model
		validator *verdicts
		reg       *prometheus.Registry
		publisher *recordingPublisher
		clock     *manualClock
	)

	newOrchestrator := func(models ...completion.Model) *completion.Orchestrator {
		if len(models) == 0 {
			models = []completion.Model{model}
		}
		o, err := completion.New(completion.Config{
			Models:      models,
			Ranker:      ranker.Jaccard{},
			Validator:   validator,
			HoleTimeout: 10 * time.Minute,
			Workers:     2,
			Publisher:   publisher,
			Metrics:     completion.NewMetrics(reg),
			Now:         clock.Now,
		})
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	BeforeEach(func() {
		ctx = context.Background()
		script = &scriptedProvider{}
		svc, l := newService(script)
		log = l
		model = completion.Model{Service: svc, Params: openAIParams()}
		validator = acceptOnly("good.")
		reg = prometheus.NewRegistry()
		publisher = &recordingPublisher{}
		clock = &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	})

	Describe("New", func() {
		It("requires models and a validator", func() {
			_, err := completion.New(completion.Config{Validator: validator})
			Expect(err).To(HaveOccurred())
			_, err = completion.New(completion.Config{Models: []completion.Model{model}})
			Expect(err).To(HaveOccurred())
		})

		It("rejects repair rounds that would show no previous version", func() {
			params := openAIParams()
			params.Common().MultiroundProfile.MaxPreviousProofVersionsNumber = 0
			broken := completion.Model{Service: model.Service, Params: params}
			_, err := completion.New(completion.Config{Models: []completion.Model{broken}, Validator: validator})
			Expect(llm.IsConfigurationError(err)).To(BeTrue())
		})

		It("rejects params configured for another service", func() {
			wrong := completion.Model{Service: model.Service, Params: predefined("auto.")}
			_, err := completion.New(completion.Config{Models: []completion.Model{wrong}, Validator: validator})
			Expect(llm.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Context("when the repair round succeeds", func() {
		BeforeEach(func() {
			script.batches = [][]string{{"bad1.", "bad2."}, {"good."}}
		})

		It("reports success after two rounds and three logged candidates", func() {
			res := newOrchestrator().Complete(ctx, target("h1"))

			Expect(res.Status).To(Equal(completion.StatusSuccess))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Proof.Text()).To(Equal("good."))
			Expect(res.Proof.State()).To(Equal(proof.Valid))
			Expect(res.Rounds()).To(Equal(2))
			Expect(res.Attempts[0].Candidates()).To(Equal(3))

			records, err := log.ReadLogs()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Choices + records[1].Choices).To(Equal(3))
			for _, r := range records {
				Expect(r.Status).To(Equal(genlog.StatusSuccess))
			}
			Expect(records[1].Debug.GeneratedProofs).To(Equal([]string{"good."}))
		})

		It("links the repair round to the first failed candidate", func() {
			res := newOrchestrator().Complete(ctx, target("h1"))
			attempt := res.Attempts[0]

			first, second := attempt.Rounds[0], attempt.Rounds[1]
			Expect(first.ParentProofID).To(BeEmpty())
			Expect(second.ParentProofID).To(Equal(first.Proofs[0].ID()))
			Expect(second.Proofs[0].ParentID()).To(Equal(first.Proofs[0].ID()))

			chain := attempt.Chain()
			Expect(chain.Check()).To(Succeed())
			next, ok := chain.Next(first.Proofs[0].ID())
			Expect(ok).To(BeTrue())
			Expect(next.Number).To(Equal(2))
			_, ok = chain.Next(first.Proofs[1].ID())
			Expect(ok).To(BeFalse())
		})

		It("shows the failed proof and its diagnostic in the repair chat", func() {
			newOrchestrator().Complete(ctx, target("h1"))

			Expect(script.choices).To(Equal([]int{2, 1}))
			fixChat := script.chats[1]
			Expect(fixChat[len(fixChat)-2]).To(Equal(llm.NewTextMessage(llm.RoleAssistant, "bad1.")))
			Expect(fixChat[len(fixChat)-1]).To(Equal(llm.NewTextMessage(llm.RoleUser, "Fix the proof. Error: cannot prove: bad1.")))
		})

		It("offers only rankable theorems as context", func() {
			res := newOrchestrator().Complete(ctx, target("h1"))
			Expect(res.Attempts[0].Rounds[0].ContextTheorems).To(ConsistOf("plus_O_n", "mult_0_l"))
		})

		It("counts rounds, candidates and outcomes", func() {
			newOrchestrator().Complete(ctx, target("h1"))

			Expect(counterValue(reg, "proofpilot_completion_rounds_total", nil)).To(Equal(2.0))
			Expect(counterValue(reg, "proofpilot_completion_candidates_checked_total", map[string]string{"verdict": "invalid"})).To(Equal(2.0))
			Expect(counterValue(reg, "proofpilot_completion_candidates_checked_total", map[string]string{"verdict": "valid"})).To(Equal(1.0))
			Expect(counterValue(reg, "proofpilot_completion_holes_total", map[string]string{"status": "SUCCESS"})).To(Equal(1.0))
		})

		It("publishes one event for the hole", func() {
			newOrchestrator().Complete(ctx, target("h1"))

			Expect(publisher.events).To(HaveLen(1))
			event := publisher.events[0]
			Expect(event.Hole.ID).To(Equal("h1"))
			Expect(event.Outcome.Status).To(Equal("SUCCESS"))
			Expect(event.Outcome.Proof).To(Equal("good."))
			Expect(event.Models).To(HaveLen(1))
			Expect(event.Models[0].Rounds).To(Equal(2))
			Expect(event.Models[0].Candidates).To(Equal(3))
		})
	})

	Context("with a single round budget", func() {
		BeforeEach(func() {
			model.Params = openAIParams(withRounds(1, 1))
			script.batches = [][]string{{"bad1.", "bad2."}}
		})

		It("reports SEARCH_FAILED with the batch diagnostics", func() {
			res := newOrchestrator().Complete(ctx, target("h1"))

			Expect(res.Status).To(Equal(completion.StatusSearchFailed))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Proof).To(BeNil())
			Expect(res.Attempts[0].Diagnostics).To(Equal([]string{"cannot prove: bad1.", "cannot prove: bad2."}))

			records, err := log.ReadLogs()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})

	It("shows at most maxPreviousProofVersionsNumber versions in a repair chat", func() {
		model.Params = openAIParams(withRounds(3, 1), withPreviousVersions(1))
		script.batches = [][]string{{"bad1."}, {"bad2."}, {"good."}}

		res := newOrchestrator().Complete(ctx, target("h1"))
		Expect(res.Status).To(Equal(completion.StatusSuccess))
		Expect(script.chats).To(HaveLen(3))

		third := script.chats[2]
		Expect(third).To(ContainElement(llm.NewTextMessage(llm.RoleAssistant, "bad2.")))
		Expect(third).NotTo(ContainElement(llm.NewTextMessage(llm.RoleAssistant, "bad1.")))
	})

	It("accepts the first valid candidate and leaves the rest unchecked", func() {
		validator = acceptOnly("good.", "also good.")
		script.batches = [][]string{{"bad.", "good.", "also good."}}
		model.Params = openAIParams(withSetting("defaultChoices", 3))

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusSuccess))
		Expect(res.Proof.Text()).To(Equal("good."))
		Expect(validator.checked).To(Equal([]string{"bad.", "good."}))

		proofs := res.Attempts[0].Rounds[0].Proofs
		Expect(proofs[0].State()).To(Equal(proof.NonValid))
		Expect(proofs[2].State()).To(Equal(proof.NonValidated))
	})

	It("discards empty candidates before checking", func() {
		script.batches = [][]string{{"```coq\n```", "good."}}

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusSuccess))
		Expect(validator.checked).To(Equal([]string{"good."}))
		Expect(res.Attempts[0].Rounds[0].Proofs).To(HaveLen(1))
	})

	It("treats a batch of empty candidates as a generation failure", func() {
		script.batches = [][]string{{"  ", "Proof. Qed."}}

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusErrorOccurred))
		var genErr *llm.GenerationFailedError
		Expect(errors.As(res.Err, &genErr)).To(BeTrue())
	})

	It("repairs a candidate whose check timed out", func() {
		validator.timeouts = map[string]bool{"slow.": true}
		script.batches = [][]string{{"slow.", "bad."}, {"good."}}

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusSuccess))
		first := res.Attempts[0].Rounds[0].Proofs[0]
		diagnostic, ok := first.Diagnostic()
		Expect(ok).To(BeTrue())
		Expect(diagnostic).To(Equal(completion.TimeoutDiagnostic))
		Expect(script.chats[1][len(script.chats[1])-1].Content).To(ContainSubstring(completion.TimeoutDiagnostic))
	})

	It("stops the hole on a checker failure", func() {
		validator.err = errors.New("checker crashed")
		script.batches = [][]string{{"bad.", "good."}}

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusErrorOccurred))
		Expect(res.Err).To(MatchError(ContainSubstring("checker crashed")))
		Expect(script.calls).To(Equal(1))
	})

	Context("when generation fails", func() {
		It("reports ERROR_OCCURRED for a first-round failure and logs it", func() {
			script.errs = []error{llm.NewRemoteConnectionError("upstream 503", nil)}

			res := newOrchestrator().Complete(ctx, target("h1"))

			Expect(res.Status).To(Equal(completion.StatusErrorOccurred))
			var genErr *llm.GenerationFailedError
			Expect(errors.As(res.Err, &genErr)).To(BeTrue())

			records, err := log.ReadLogs()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Status).To(Equal(genlog.StatusFailure))
			Expect(records[0].Error.Kind).To(Equal(llm.KindRemoteConnection))
		})

		It("keeps going when a repair round fails", func() {
			model.Params = openAIParams(withRounds(3, 1))
			script.batches = [][]string{{"bad1.", "bad2."}, nil, {"good."}}
			script.errs = []error{nil, errors.New("flaky backend")}

			res := newOrchestrator().Complete(ctx, target("h1"))

			Expect(res.Status).To(Equal(completion.StatusSuccess))
			rounds := res.Attempts[0].Rounds
			Expect(rounds).To(HaveLen(3))
			Expect(rounds[1].Err).To(HaveOccurred())
			Expect(rounds[2].ParentProofID).To(Equal(rounds[0].Proofs[1].ID()))
			Expect(counterValue(reg, "proofpilot_completion_generation_failures_total", nil)).To(Equal(1.0))
		})

		It("falls through to the next configured model", func() {
			script.errs = []error{errors.New("down")}

			backup := &scriptedProvider{batches: [][]string{{"good."}}}
			backupSvc, _ := newService(backup)
			second := completion.Model{Service: backupSvc, Params: openAIParams(withSetting("modelId", "backup"))}

			res := newOrchestrator(model, second).Complete(ctx, target("h1"))

			Expect(res.Status).To(Equal(completion.StatusSuccess))
			Expect(res.Attempts).To(HaveLen(2))
			Expect(res.Attempts[0].Status).To(Equal(completion.StatusErrorOccurred))
			Expect(res.Attempts[1].ModelID).To(Equal("backup"))
		})
	})

	It("stops on a configuration error without trying other models", func() {
		model.Params = openAIParams(withSetting("tokensLimit", 110))
		backup := &scriptedProvider{batches: [][]string{{"good."}}}
		backupSvc, _ := newService(backup)

		res := newOrchestrator(model, completion.Model{Service: backupSvc, Params: openAIParams()}).Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusErrorOccurred))
		Expect(llm.IsConfigurationError(res.Err)).To(BeTrue())
		Expect(res.Attempts).To(HaveLen(1))
		Expect(script.calls).To(Equal(0))
		Expect(backup.calls).To(Equal(0))
	})

	It("reports TIMEOUT_EXCEEDED once the hole deadline passes", func() {
		script.batches = [][]string{{"bad1.", "bad2."}, {"good."}}
		validator.onCheck = func() { clock.Advance(6 * time.Minute) }

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusTimeoutExceeded))
		Expect(res.Err).To(MatchError(completion.ErrHoleTimeout))
		Expect(res.Rounds()).To(Equal(1))
		Expect(script.calls).To(Equal(1))
	})

	It("lets the in-flight round finish and stops at the next boundary when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		script.batches = [][]string{{"bad1.", "bad2."}, {"good."}}
		validator.onCheck = cancel

		res := newOrchestrator().Complete(cctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusErrorOccurred))
		Expect(res.Err).To(MatchError(context.Canceled))
		Expect(validator.checked).To(Equal([]string{"bad1.", "bad2."}))
		Expect(script.calls).To(Equal(1))
	})

	It("reports generations log failures without changing the outcome", func() {
		script.batches = [][]string{{"good."}}
		Expect(log.Close()).To(Succeed())

		res := newOrchestrator().Complete(ctx, target("h1"))

		Expect(res.Status).To(Equal(completion.StatusSuccess))
		Expect(res.LogFailures).To(HaveLen(1))
		Expect(res.LogFailures[0]).To(MatchError(genlog.ErrClosed))
	})

	Describe("CompleteAll", func() {
		It("completes every hole and keeps input order", func() {
			script.batches = [][]string{{"good."}, {"good."}, {"good."}}
			targets := []document.Target{target("a"), target("b"), target("c")}

			results := newOrchestrator().CompleteAll(ctx, targets)

			Expect(results).To(HaveLen(3))
			for i, r := range results {
				Expect(r.HoleID).To(Equal(targets[i].Hole.ID))
				Expect(r.Status).To(Equal(completion.StatusSuccess))
			}
			Expect(publisher.events).To(HaveLen(3))
		})

		It("reports holes that never started after cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			results := newOrchestrator().CompleteAll(cctx, []document.Target{target("a")})

			Expect(results).To(HaveLen(1))
			Expect(results[0].Status).To(Equal(completion.StatusErrorOccurred))
			Expect(results[0].Err).To(MatchError(context.Canceled))
		})
	})
})

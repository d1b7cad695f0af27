package completion

import (
	"time"

	"github.com/papercomputeco/proofpilot/pkg/llm"
	"github.com/papercomputeco/proofpilot/pkg/proof"
)

// Status is the terminal outcome of a hole, or of one model's attempt at it.
type Status string

const (
	// StatusSuccess means a valid proof was found.
	StatusSuccess Status = "SUCCESS"

	// StatusSearchFailed means the round budget was spent without a valid
	// proof. It is a normal outcome, not an error.
	StatusSearchFailed Status = "SEARCH_FAILED"

	// StatusErrorOccurred means the pipeline itself broke: bad configuration,
	// a first-round generation failure, a checker failure or cancellation.
	StatusErrorOccurred Status = "ERROR_OCCURRED"

	// StatusTimeoutExceeded means the hole's wall-clock limit was reached.
	StatusTimeoutExceeded Status = "TIMEOUT_EXCEEDED"
)

// Result is the terminal report for one hole.
type Result struct {
	HoleID  string `json:"holeId"`
	URI     string `json:"uri"`
	Theorem string `json:"theorem"`

	Status Status `json:"status"`

	// Proof is the valid version when Status is StatusSuccess.
	Proof *proof.Version `json:"proof,omitempty"`

	// Err explains StatusErrorOccurred and StatusTimeoutExceeded.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	// Attempts holds one entry per model tried, in configuration order.
	Attempts []*Attempt `json:"attempts"`

	// LogFailures lists errors hit while recording generations. They never
	// change Status.
	LogFailures []error `json:"-"`

	Elapsed time.Duration `json:"elapsed"`
}

// Rounds counts the rounds of every attempt.
func (r *Result) Rounds() int {
	n := 0
	for _, a := range r.Attempts {
		n += len(a.Rounds)
	}
	return n
}

func (r *Result) fail(status Status, err error) {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Attempt is the repair loop of one configured model on one hole.
type Attempt struct {
	Service string `json:"service"`
	ModelID string `json:"modelId"`
	Status  Status `json:"status"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	Rounds []*RoundReport `json:"rounds"`

	// Diagnostics holds the checker diagnostics of the last validated batch
	// when the attempt ends with StatusSearchFailed.
	Diagnostics []string `json:"diagnostics,omitempty"`

	chain *proof.Chain
}

// Chain exposes the repair lineage of the attempt.
func (a *Attempt) Chain() *proof.Chain {
	return a.chain
}

func (a *Attempt) fail(status Status, err error) {
	a.Status = status
	a.Err = err
	if err != nil {
		a.Error = err.Error()
	}
}

// Candidates counts the versions generated across all rounds.
func (a *Attempt) Candidates() int {
	n := 0
	for _, r := range a.Rounds {
		n += len(r.Proofs)
	}
	return n
}

// TokensSpent sums the tokens of every round.
func (a *Attempt) TokensSpent() llm.GenerationTokens {
	var total llm.GenerationTokens
	for _, r := range a.Rounds {
		total = total.Add(r.TokensSpent)
	}
	return total
}

// RoundReport records one generate-then-validate cycle.
type RoundReport struct {
	Number        int    `json:"number"`
	RoundID       string `json:"roundId"`
	ParentProofID string `json:"parentProofId,omitempty"`

	ContextTheorems []string             `json:"contextTheorems"`
	TokensSpent     llm.GenerationTokens `json:"tokensSpent"`
	Elapsed         time.Duration        `json:"elapsed"`

	// Proofs are the round's candidates in backend order. Candidates after
	// the first valid one stay NonValidated.
	Proofs []*proof.Version `json:"proofs"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Package proofpilotcmder
package proofpilotcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/auth"
	completecmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/complete"
	configcmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/config"
	initcmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/init"
	logscmder "github.com/papercomputeco/proofpilot/cmd/proofpilot/logs"
	versioncmder "github.com/papercomputeco/proofpilot/cmd/version"
)

const proofpilotLongDesc string = `ProofPilot fills holes in Coq documents with proofs generated by language
models, checking every candidate and repairing invalid ones round by round.

Get started using:
  proofpilot init --preset openai     Create a .proofpilot/ directory
  proofpilot auth openai              Store an API key
  proofpilot complete holes.json      Complete every hole of a holes file
  proofpilot logs openai              Inspect the generations log`

const proofpilotShortDesc string = "ProofPilot - LLM proof completion"

func NewProofPilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "proofpilot",
		Short:         proofpilotShortDesc,
		Long:          proofpilotLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .proofpilot/ config directory")

	cmd.AddCommand(completecmder.NewCompleteCmd())
	cmd.AddCommand(logscmder.NewLogsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

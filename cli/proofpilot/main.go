package main

import (
	"os"

	proofpilotcmder "github.com/papercomputeco/proofpilot/cmd/proofpilot"
)

func main() {
	cmd := proofpilotcmder.NewProofPilotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

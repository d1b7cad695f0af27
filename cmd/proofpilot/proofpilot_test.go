package proofpilotcmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	proofpilotcmder "github.com/papercomputeco/proofpilot/cmd/proofpilot"
)

var _ = Describe("NewProofPilotCmd", func() {
	It("wires every subcommand", func() {
		cmd := proofpilotcmder.NewProofPilotCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("complete", "logs", "config", "init", "auth", "version"))
	})

	It("has global debug and config-dir flags", func() {
		cmd := proofpilotcmder.NewProofPilotCmd()
		Expect(cmd.PersistentFlags().Lookup("debug").Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("passes the global config dir to subcommands", func() {
		dir := GinkgoT().TempDir()
		out := &bytes.Buffer{}

		cmd := proofpilotcmder.NewProofPilotCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"config", "set", "checker.command", "coq-check", "--config-dir", dir})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(dir))

		out.Reset()
		cmd = proofpilotcmder.NewProofPilotCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"config", "get", "checker.command", "--config-dir", dir})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("coq-check"))
	})

	It("prints the version", func() {
		out := &bytes.Buffer{}
		cmd := proofpilotcmder.NewProofPilotCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"version"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Agent: proofpilot/dev"))
	})
})

// Package versioncmder prints build information for the proofpilot CLI.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/proofpilot/pkg/cliui"
	"github.com/papercomputeco/proofpilot/pkg/utils"
)

// Info is the build information shown by the version command.
type Info struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	BuiltAt   string `json:"built_at"`
	Agent     string `json:"agent"`
	GoVersion string `json:"go_version"`
}

// Current returns the build information of the running binary.
func Current() Info {
	return Info{
		Version:   utils.Version,
		Sha:       utils.Sha,
		BuiltAt:   utils.Buildtime,
		Agent:     utils.AgentName + "/" + utils.Version,
		GoVersion: runtime.Version(),
	}
}

type versionCommander struct {
	short  bool
	asJSON bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of the proofpilot CLI and the agent name it reports to model services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "print only the version")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "print build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")

	return cmd
}

func (c *versionCommander) run(out io.Writer) error {
	info := Current()

	switch {
	case c.short:
		fmt.Fprintln(out, info.Version)
	case c.asJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	default:
		fmt.Fprintln(out)
		cliui.Field(out, "Version: ", info.Version)
		cliui.Field(out, "Sha:     ", info.Sha)
		cliui.Field(out, "Built at:", info.BuiltAt)
		cliui.Field(out, "Agent:   ", info.Agent)
		cliui.Field(out, "Go:      ", info.GoVersion)
		fmt.Fprintln(out)
	}
	return nil
}

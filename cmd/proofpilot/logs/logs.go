// Package logscmder provides the logs command for inspecting the generations
// log of a model service.
package logscmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/proofpilot/pkg/cliui"
	"github.com/papercomputeco/proofpilot/pkg/config"
	"github.com/papercomputeco/proofpilot/pkg/dotdir"
	"github.com/papercomputeco/proofpilot/pkg/genlog"
	"github.com/papercomputeco/proofpilot/pkg/llm/modelparams"
	"github.com/papercomputeco/proofpilot/pkg/utils"
)

const logsLongDesc string = `Show the generations log of a model service.

Every request sent to a service is recorded in <generations dir>/<service>.log
with its model, status, number of choices and estimated tokens. Failed
requests also record the error kind and message.

Examples:
  proofpilot logs openai
  proofpilot logs openai --since-last-success
  proofpilot logs predefined-proofs --json`

const logsShortDesc string = "Show the generations log of a service"

type logsCommander struct {
	configDir        string
	generationsDir   string
	sinceLastSuccess bool
	asJSON           bool
}

func NewLogsCmd() *cobra.Command {
	cmder := &logsCommander{}

	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: logsShortDesc,
		Long:  logsLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run(args[0], cmd.OutOrStdout())
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				ids := modelparams.SupportedServices()
				out := make([]string, len(ids))
				for i, id := range ids {
					out[i] = string(id)
				}
				return out, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	config.AddFlag(cmd, config.CompletionFlags, config.FlagGenerationsDir, &cmder.generationsDir)
	cmd.Flags().BoolVar(&cmder.sinceLastSuccess, "since-last-success", false, "Only show the last success and the records after it")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print records as JSON")

	return cmd
}

func (c *logsCommander) run(service string, out io.Writer) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}

	path := genlog.PathFor(dir, service)
	records, err := genlog.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "  %s No generations logged for %s.\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(service))
		return nil
	}
	if err != nil {
		return err
	}
	if c.sinceLastSuccess {
		records = genlog.SinceLastSuccess(records)
	}

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	printRecords(out, path, records)
	return nil
}

func (c *logsCommander) dir() (string, error) {
	if c.generationsDir != "" {
		return c.generationsDir, nil
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	if cfg.GenerationsLog.Dir != "" {
		return cfg.GenerationsLog.Dir, nil
	}

	return dotdir.NewManager().GenerationsDir(c.configDir)
}

func printRecords(out io.Writer, path string, records []genlog.Record) {
	cliui.Heading(out, "Generations log:", path)

	if len(records) == 0 {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("No records."))
		return
	}

	for _, r := range records {
		tokens := "-"
		if r.EstimatedTokens != nil {
			tokens = strconv.Itoa(*r.EstimatedTokens)
		}

		fmt.Fprintf(out, "  %s %s  %s  choices=%d tokens=%s\n",
			cliui.MarkIf(r.IsSuccess()),
			cliui.DimStyle.Render(r.Timestamp.Format("2006-01-02 15:04:05")),
			cliui.NameStyle.Render(r.ModelID),
			r.Choices,
			tokens,
		)
		if r.Error != nil {
			msg := utils.Truncate(utils.OneLine(r.Error.Message), 100)
			fmt.Fprintf(out, "      %s %s\n", cliui.WarnStyle.Render(r.Error.Kind), msg)
		}
	}
	fmt.Fprintln(out)
}

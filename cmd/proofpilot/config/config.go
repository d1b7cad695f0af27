// Package configcmder provides the config command for managing persistent
// proofpilot configuration stored in the .proofpilot/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent proofpilot configuration.

Configuration is stored as config.toml in the .proofpilot/ directory and
provides default values for command flags. CLI flags and PROOFPILOT_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  completion.workers, completion.hole_timeout, completion.ranker,
  completion.ranker_seed, completion.requests_per_minute,
  generations_log.dir, generations_log.debug, generations_log.clean_on_start,
  checker.command, checker.args, checker.timeout, checker.workers,
  embedding.provider, embedding.target, embedding.model,
  events.provider, events.brokers, events.topic

Model services are configured as [[services.<id>]] tables edited directly in
config.toml; "proofpilot init --preset" writes a starting point.

Use subcommands to get, set, or list configuration values:
  proofpilot config set <key> <value>    Set a configuration value
  proofpilot config get <key>            Get a configuration value
  proofpilot config list                 List all configuration values

Examples:
  proofpilot config set checker.command coq-check
  proofpilot config set completion.hole_timeout 5m
  proofpilot config get checker.command
  proofpilot config list`

const configShortDesc string = "Manage persistent proofpilot configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// Package commands defines all Cobra CLI commands for the lexqa binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/audit"
	"github.com/davral/lexqa-go/internal/config"
	"github.com/davral/lexqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lexqa",
		Short: "LexQA — contract question answering with clause citations",
		Long: `LexQA is a local-first AI assistant for contract review.

Point it at a contract (PDF or plain text) and ask questions in natural
language. Every answer is grounded in retrieved contract clauses and returned
as a structured summary of obligations, risks, and verbatim supporting
citations.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.lexqa/config.yaml).
See 'lexqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env never overrides already-set env vars.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.lexqa/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return root
}

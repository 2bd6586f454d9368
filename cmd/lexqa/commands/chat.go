package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/logging"
	"github.com/davral/lexqa-go/internal/tui"
)

// NewChatCmd constructs the `lexqa chat` command, which opens an interactive
// terminal chat against one contract.
func NewChatCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with a contract",
		Long: `Open an interactive terminal chat bound to one contract.

Each question is answered from the contract's clauses with obligations,
risks, and citations. Ctrl+E toggles the retrieved clause evidence behind
the latest answers. With LEXQA_WATCH=true, editing the contract file on disk
re-indexes it before the next question.

Examples:
  lexqa chat --file lease.pdf
  LEXQA_WATCH=true lexqa chat --file msa.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if file == "" {
				return fmt.Errorf("chat: --file is required")
			}

			manager, cleanup, err := buildManager(ctx, log, watchEnabled())
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			sess, err := manager.Open(ctx, file)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			program := tea.NewProgram(tui.New(manager, sess), tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the contract file (PDF or plain text)")

	return cmd
}

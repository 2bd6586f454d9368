package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/logging"
)

// NewAskCmd constructs the `lexqa ask` command, which answers a single
// question about a contract and prints the structured answer to stdout.
func NewAskCmd() *cobra.Command {
	var file string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about a contract",
		Long: `Ask a natural language question about a contract.

The contract is chunked and indexed on first use; identical file content is
never re-embedded. The answer is grounded in the retrieved clauses and
includes obligations, risks, and verbatim supporting citations.

Examples:
  lexqa ask --file lease.pdf "How much is the monthly rent?"
  lexqa ask --file msa.pdf "What happens if we terminate early?"
  lexqa ask --file nda.txt --top-k 8 "How long does confidentiality survive?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if file == "" {
				return fmt.Errorf("ask: --file is required")
			}
			if topK > 0 {
				// Flags win over env and YAML.
				os.Setenv("RAG_TOP_K", strconv.Itoa(topK))
			}

			manager, cleanup, err := buildManager(ctx, log, watchEnabled())
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			sess, err := manager.Open(ctx, file)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			ans, err := manager.Ask(ctx, sess, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Rendered)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the contract file (PDF or plain text)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of clauses to retrieve per question")

	return cmd
}

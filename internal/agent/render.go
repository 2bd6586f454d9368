package agent

import (
	"fmt"
	"strings"
)

// Render formats a LegalResponse for terminal or chat display: the summary
// paragraph, then obligations and risks as bulleted sections, then the cited
// clauses. Empty sections are omitted entirely rather than rendered as empty
// headers.
func Render(resp *LegalResponse) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Summary))

	if len(resp.Obligations) > 0 {
		b.WriteString("\n\n**Obligations:**\n")
		writeBullets(&b, resp.Obligations)
	}
	if len(resp.Risks) > 0 {
		b.WriteString("\n\n**Risks:**\n")
		writeBullets(&b, resp.Risks)
	}
	if len(resp.SupportingClauses) > 0 {
		b.WriteString("\n\n**Supporting Clauses:**\n")
		for _, ref := range resp.SupportingClauses {
			fmt.Fprintf(&b, "- **%s**: *%s*\n", ref.ID, strings.TrimSpace(ref.Text))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", strings.TrimSpace(item))
	}
}

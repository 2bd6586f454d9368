package agent

import (
	"fmt"
	"strings"
)

// groundViolations checks that every supporting clause the model cited is a
// real quote from the retrieved contract text. Comparison is case-insensitive
// and whitespace-normalized so line wrapping in the PDF extraction does not
// fail an otherwise exact quote. Returns one violation per fabricated clause.
func groundViolations(resp *LegalResponse, contextText string) []string {
	haystack := normalize(contextText)

	var violations []string
	for _, ref := range resp.SupportingClauses {
		needle := normalize(ref.Text)
		if needle == "" || !strings.Contains(haystack, needle) {
			violations = append(violations, fmt.Sprintf(
				"supporting clause %q quotes text that is not in the provided contract clauses", ref.ID))
		}
	}
	return violations
}

// normalize lowercases s and collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

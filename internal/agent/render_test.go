package agent

import (
	"strings"
	"testing"
)

func Test_Render_FullResponse(t *testing.T) {
	t.Parallel()

	got := Render(&LegalResponse{
		Summary:     "Rent is $2,500.00 per month.",
		Obligations: []string{"Pay rent on the first of each month."},
		Risks:       []string{"Late payment incurs a $50 fee."},
		SupportingClauses: []ClauseReference{
			{ID: "Clause 1", Text: "The tenant shall pay rent of $2,500.00."},
		},
	})

	if !strings.HasPrefix(got, "Rent is $2,500.00 per month.") {
		t.Errorf("summary must lead the output:\n%s", got)
	}
	for _, want := range []string{
		"**Obligations:**\n- Pay rent on the first of each month.",
		"**Risks:**\n- Late payment incurs a $50 fee.",
		"**Supporting Clauses:**\n- **Clause 1**: *The tenant shall pay rent of $2,500.00.*",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func Test_Render_OmitsEmptySections(t *testing.T) {
	t.Parallel()

	got := Render(&LegalResponse{
		Summary:           "The contract is silent on parking.",
		Obligations:       []string{},
		Risks:             []string{},
		SupportingClauses: []ClauseReference{},
	})

	if got != "The contract is silent on parking." {
		t.Errorf("empty sections must be omitted entirely, got:\n%q", got)
	}
	if strings.Contains(got, "**Obligations:**") || strings.Contains(got, "**Risks:**") {
		t.Error("empty section headers must not be rendered")
	}
}

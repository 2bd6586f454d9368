package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseResponse decodes model output into a LegalResponse. Markdown code
// fences around the JSON are tolerated and stripped; anything else that is
// not the exact schema yields a violation list for the corrective retry.
func parseResponse(output string) (*LegalResponse, []string) {
	raw := stripFences(output)
	if strings.TrimSpace(raw) == "" {
		return nil, []string{"output is empty"}
	}

	// Pointer fields distinguish a missing key from a present-but-empty one.
	var shadow struct {
		Summary           *string            `json:"summary"`
		Obligations       *[]string          `json:"obligations"`
		Risks             *[]string          `json:"risks"`
		SupportingClauses *[]ClauseReference `json:"supporting_clauses"`
	}
	if err := json.Unmarshal([]byte(raw), &shadow); err != nil {
		return nil, []string{"output is not valid JSON: " + err.Error()}
	}

	var violations []string
	if shadow.Summary == nil {
		violations = append(violations, `missing required field "summary"`)
	} else if strings.TrimSpace(*shadow.Summary) == "" {
		violations = append(violations, `field "summary" must not be empty`)
	}
	if shadow.Obligations == nil {
		violations = append(violations, `missing required field "obligations"`)
	}
	if shadow.Risks == nil {
		violations = append(violations, `missing required field "risks"`)
	}
	if shadow.SupportingClauses == nil {
		violations = append(violations, `missing required field "supporting_clauses"`)
	} else {
		for i, ref := range *shadow.SupportingClauses {
			if strings.TrimSpace(ref.Text) == "" {
				violations = append(violations, fmt.Sprintf("supporting_clauses[%d] has empty text", i))
			}
		}
	}
	if len(violations) > 0 {
		return nil, violations
	}

	return &LegalResponse{
		Summary:           *shadow.Summary,
		Obligations:       *shadow.Obligations,
		Risks:             *shadow.Risks,
		SupportingClauses: *shadow.SupportingClauses,
	}, nil
}

// stripFences removes a single wrapping markdown code fence, with or without
// a language tag, leaving the inner text untouched.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	// Drop the opening fence line ("```" or "```json").
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	} else {
		return trimmed
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

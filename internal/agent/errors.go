package agent

import (
	"fmt"
	"strings"
)

// SchemaViolationError is returned when the model's output still fails schema
// or grounding validation after every corrective retry. RawOutput carries the
// final model output so callers can log it for diagnosis.
type SchemaViolationError struct {
	// RawOutput is the model output from the last attempt.
	RawOutput string
	// Violations lists what was wrong with it.
	Violations []string
}

// Error implements the error interface.
func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("agent: response failed schema validation: %s", strings.Join(e.Violations, "; "))
}

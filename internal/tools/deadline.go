// Package tools implements the contract-analysis tools the agent can invoke
// during a conversation. Each tool satisfies Eino's tool.BaseTool interface so
// it can be registered directly with the react agent. The tools are pure
// functions of their input: no filesystem, network, or subprocess access.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// deadlineLayout is the only date format the deadline tool accepts.
const deadlineLayout = "2006-01-02"

// deadlineFormatError is returned to the model as the tool result when the
// start date does not parse. It is a result string, not a Go error, so the
// model sees it and can correct the date in its next call.
const deadlineFormatError = "Error: Use YYYY-MM-DD format."

// DeadlineTool computes the calendar date a contractual period ends on, e.g.
// "termination takes effect 60 days after notice served on 2024-03-01".
type DeadlineTool struct{}

// deadlineInput is the JSON-serialisable input schema for DeadlineTool.
type deadlineInput struct {
	// StartDate is the period start in YYYY-MM-DD form.
	StartDate string `json:"start_date"`

	// Days is the number of calendar days in the period.
	Days int `json:"days"`
}

// NewDeadlineTool constructs a DeadlineTool.
func NewDeadlineTool() *DeadlineTool { return &DeadlineTool{} }

// Name returns the tool name registered with the agent.
func (t *DeadlineTool) Name() string { return "calculate_deadline" }

// Description returns the LLM-facing description of this tool.
func (t *DeadlineTool) Description() string {
	return "Calculates the calendar date that falls a given number of days after a start date. " +
		"Use this for notice periods, cure periods, and payment deadlines instead of counting days yourself. " +
		"The start date must be in YYYY-MM-DD format."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *DeadlineTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"start_date": {
				Type:     schema.String,
				Desc:     "Start date of the period in YYYY-MM-DD format.",
				Required: true,
			},
			"days": {
				Type:     schema.Integer,
				Desc:     "Number of calendar days to add to the start date.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string. A
// malformed start date yields a corrective result string rather than an
// error, so the agent loop continues and the model can retry.
func (t *DeadlineTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input deadlineInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("calculate_deadline: invalid input: %w", err)
	}
	return CalculateDeadline(input.StartDate, input.Days), nil
}

// CalculateDeadline returns the date input.Days calendar days after
// startDate, in YYYY-MM-DD form. A start date that does not parse returns the
// corrective format message.
func CalculateDeadline(startDate string, days int) string {
	start, err := time.Parse(deadlineLayout, startDate)
	if err != nil {
		return deadlineFormatError
	}
	return start.AddDate(0, 0, days).Format(deadlineLayout)
}

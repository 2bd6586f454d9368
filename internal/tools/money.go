package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// moneyPattern matches a currency marker together with its amount, in either
// order: "$2,500.00", "USD 1,000", "1.000,00 EUR", "€500". Capturing the
// marker and the amount as one match keeps the currency attached to its
// value in the result.
var moneyPattern = regexp.MustCompile(
	`(?:[$€£]\s?` + amountPattern + `)` +
		`|(?:\b(?:USD|EUR|GBP)\s?` + amountPattern + `)` +
		`|(?:\b` + amountPattern + `\s?(?:USD|EUR|GBP)\b)` +
		`|(?:\b` + amountPattern + `\s(?:dollars|euros|pounds)\b)`,
)

// amountPattern matches a number with optional thousands separators and an
// optional two-digit cents part, in either US or European punctuation.
const amountPattern = `\d+(?:[.,]\d{3})*(?:[.,]\d{1,2})?`

// MoneyTool scans clause text for monetary amounts so the model does not have
// to transcribe figures itself.
type MoneyTool struct{}

// moneyInput is the JSON-serialisable input schema for MoneyTool.
type moneyInput struct {
	// Text is the clause text to scan.
	Text string `json:"text"`
}

// NewMoneyTool constructs a MoneyTool.
func NewMoneyTool() *MoneyTool { return &MoneyTool{} }

// Name returns the tool name registered with the agent.
func (t *MoneyTool) Name() string { return "extract_monetary_values" }

// Description returns the LLM-facing description of this tool.
func (t *MoneyTool) Description() string {
	return "Extracts every monetary amount from the given text, keeping each amount attached to its " +
		"currency marker ($, €, £, USD, EUR, GBP). Use this to list payment obligations, penalties, " +
		"and deposits exactly as the contract states them."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *MoneyTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"text": {
				Type:     schema.String,
				Desc:     "Clause text to scan for monetary amounts.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string and
// returns the amounts one per line, in order of occurrence. No amounts yields
// an explicit message so the model does not mistake silence for failure.
func (t *MoneyTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input moneyInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("extract_monetary_values: invalid input: %w", err)
	}

	values := ExtractMonetaryValues(input.Text)
	if len(values) == 0 {
		return "No monetary values found.", nil
	}
	return strings.Join(values, "\n"), nil
}

// ExtractMonetaryValues returns every monetary amount in text, currency
// marker included, in order of occurrence.
func ExtractMonetaryValues(text string) []string {
	matches := moneyPattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimSpace(m)
	}
	return matches
}

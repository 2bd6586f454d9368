package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/tools"
)

// OpenContractInput is the input schema for the open_contract tool.
type OpenContractInput struct {
	Path string `json:"path" jsonschema:"filesystem path of the contract to open (PDF or plain text)"`
}

// OpenContractOutput is the output schema for the open_contract tool.
type OpenContractOutput struct {
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	Chunks    int    `json:"chunks"`
}

// AnalyzeContractInput is the input schema for the analyze_contract tool.
type AnalyzeContractInput struct {
	SessionID string `json:"session_id" jsonschema:"session returned by open_contract"`
	Question  string `json:"question" jsonschema:"the question to answer about the contract"`
}

// AnalyzeContractOutput is the output schema for the analyze_contract tool.
type AnalyzeContractOutput struct {
	Answer   *agent.LegalResponse `json:"answer"`
	Rendered string               `json:"rendered"`
}

// ExtractAmountsInput is the input schema for the extract_amounts tool.
type ExtractAmountsInput struct {
	Text string `json:"text" jsonschema:"the contract text to scan for monetary values"`
}

// ExtractAmountsOutput is the output schema for the extract_amounts tool.
type ExtractAmountsOutput struct {
	Amounts []string `json:"amounts"`
	Count   int      `json:"count"`
}

// ComputeDeadlineInput is the input schema for the compute_deadline tool.
type ComputeDeadlineInput struct {
	StartDate string `json:"start_date" jsonschema:"start date in YYYY-MM-DD format"`
	Days      int    `json:"days" jsonschema:"number of calendar days to add"`
}

// ComputeDeadlineOutput is the output schema for the compute_deadline tool.
type ComputeDeadlineOutput struct {
	Result string `json:"result"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "open_contract",
		Description: "Open a contract file and index it for question answering",
	}, s.handleOpenContract)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_contract",
		Description: "Answer a question about an opened contract with clause citations",
	}, s.handleAnalyzeContract)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_amounts",
		Description: "Extract all monetary values from a block of contract text",
	}, s.handleExtractAmounts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compute_deadline",
		Description: "Add a number of calendar days to a start date",
	}, s.handleComputeDeadline)
}

// handleOpenContract handles the open_contract tool invocation.
func (s *Server) handleOpenContract(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input OpenContractInput,
) (*mcp.CallToolResult, OpenContractOutput, error) {
	sess, err := s.contracts.Open(ctx, input.Path)
	if err != nil {
		return nil, OpenContractOutput{}, err
	}
	return nil, OpenContractOutput{
		SessionID: sess.ID,
		Source:    sess.Source,
		Chunks:    sess.ChunkCount(),
	}, nil
}

// handleAnalyzeContract handles the analyze_contract tool invocation.
func (s *Server) handleAnalyzeContract(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeContractInput,
) (*mcp.CallToolResult, AnalyzeContractOutput, error) {
	sess, ok := s.contracts.Get(input.SessionID)
	if !ok {
		return nil, AnalyzeContractOutput{}, fmt.Errorf("unknown session %q, call open_contract first", input.SessionID)
	}
	ans, err := s.contracts.Ask(ctx, sess, input.Question)
	if err != nil {
		return nil, AnalyzeContractOutput{}, err
	}
	return nil, AnalyzeContractOutput{
		Answer:   ans.Response,
		Rendered: ans.Rendered,
	}, nil
}

// handleExtractAmounts handles the extract_amounts tool invocation.
func (s *Server) handleExtractAmounts(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ExtractAmountsInput,
) (*mcp.CallToolResult, ExtractAmountsOutput, error) {
	amounts := tools.ExtractMonetaryValues(input.Text)
	return nil, ExtractAmountsOutput{
		Amounts: amounts,
		Count:   len(amounts),
	}, nil
}

// handleComputeDeadline handles the compute_deadline tool invocation.
func (s *Server) handleComputeDeadline(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ComputeDeadlineInput,
) (*mcp.CallToolResult, ComputeDeadlineOutput, error) {
	return nil, ComputeDeadlineOutput{
		Result: tools.CalculateDeadline(input.StartDate, input.Days),
	}, nil
}

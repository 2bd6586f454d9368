// Package agent composes retrieved contract clauses, conversation history,
// and the analysis tools into a ReAct loop that produces schema-validated
// answers. The model must answer strictly from the clauses it is shown and
// return a LegalResponse JSON object; output that fails schema or grounding
// validation triggers a bounded corrective retry before the question fails
// with a SchemaViolationError.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	einoagent "github.com/cloudwego/eino/flow/agent"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/davral/lexqa-go/internal/budget"
	"github.com/davral/lexqa-go/internal/logging"
	"github.com/davral/lexqa-go/internal/rag"
	"github.com/davral/lexqa-go/internal/store"
)

// systemPrompt establishes the agent's persona and the hard rules: clauses
// are the only source of truth, tools do the arithmetic, and the output is a
// bare JSON object in the LegalResponse schema.
const systemPrompt = `You are an expert Legal AI Agent specializing in contract analysis. You answer
questions about a single contract using ONLY the contract clauses provided in
the conversation.

Rules you must never break:
- Answer strictly from the provided clauses. If the clauses do not contain the
  information needed, say so in the summary — never draw on outside legal
  knowledge and never invent contract terms.
- Focus on what matters in contract review: obligations (who must do what),
  risks (penalties, liabilities, exposure), and financial terms (amounts,
  deadlines, payment conditions).
- Use the calculate_deadline tool whenever a date must be computed from a
  notice or cure period. Do not count days yourself.
- Use the extract_monetary_values tool to pull amounts out of clause text
  before discussing financial terms. Do not transcribe figures yourself.
- Every supporting clause you cite must be quoted verbatim from the provided
  clauses, not paraphrased.

Respond with ONLY a JSON object in this exact shape — no markdown fencing, no
text before or after the JSON:

{
  "summary": "Plain-language answer to the question.",
  "obligations": ["Each obligation relevant to the question."],
  "risks": ["Each risk relevant to the question."],
  "supporting_clauses": [
    { "id": "Clause 2", "text": "Verbatim text quoted from the provided clauses." }
  ]
}

All four fields are required. Use empty arrays for obligations or risks when
the question touches neither. The id of each supporting clause is its label in
the provided context, e.g. "Clause 2".`

// DefaultSchemaRetries is the number of corrective retries after invalid
// model output before the question fails.
const DefaultSchemaRetries = 2

// DefaultMaxSteps bounds the ReAct tool loop per attempt.
const DefaultMaxSteps = 8

// runner is the streaming surface the composer drives. *react.Agent
// satisfies it; tests substitute a scripted fake.
type runner interface {
	Stream(ctx context.Context, input []*schema.Message, opts ...einoagent.AgentOption) (*schema.StreamReader[*schema.Message], error)
}

// Config holds the dependencies required to construct a Composer.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of analysis tools available to the agent.
	Tools []tool.BaseTool

	// MaxSteps bounds the ReAct tool loop per attempt. Defaults to
	// DefaultMaxSteps if zero.
	MaxSteps int

	// SchemaRetries is the number of corrective retries after invalid output.
	// Zero means DefaultSchemaRetries; use a negative value to disable
	// retries entirely.
	SchemaRetries int

	// History is the optional conversation store used to persist and replay
	// prior turns. If nil, each question is stateless.
	History store.ConversationStore

	// HistoryDepth is the number of prior turns (user+assistant pairs) to
	// inject per question. Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full input
	// context. History is trimmed oldest-first and the clause block is
	// clamped to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Composer runs the question-answering loop against a built contract index.
type Composer struct {
	runner           runner
	schemaRetries    int
	history          store.ConversationStore
	historyDepth     int
	maxContextTokens int
}

// Request is one question against one contract session.
type Request struct {
	// SessionID keys the conversation history thread.
	SessionID string

	// Question is the user's question.
	Question string

	// Retriever serves the session's contract index.
	Retriever rag.Retriever

	// TopK is the number of clauses to retrieve. Defaults to
	// rag.DefaultTopK if zero.
	TopK int
}

// Answer is a validated response plus the clauses it was answered from.
type Answer struct {
	// Response is the schema-validated structured answer.
	Response *LegalResponse

	// Chunks holds the retrieved clauses, in retrieval order, matching the
	// [Clause N] labels the response cites.
	Chunks []rag.Chunk

	// Rendered is the display form of the response.
	Rendered string
}

// New constructs a Composer from the provided Config.
func New(ctx context.Context, cfg *Config) (*Composer, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
		MaxStep: maxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	return newComposer(reactAgent, cfg), nil
}

// newComposer wires a Composer around any runner. Split from New so tests can
// drive the loop with a scripted runner instead of a live model.
func newComposer(r runner, cfg *Config) *Composer {
	retries := cfg.SchemaRetries
	switch {
	case retries == 0:
		retries = DefaultSchemaRetries
	case retries < 0:
		retries = 0
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 10
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Composer{
		runner:           r,
		schemaRetries:    retries,
		history:          cfg.History,
		historyDepth:     depth,
		maxContextTokens: maxCtx,
	}
}

// Answer retrieves the clauses relevant to the question, runs the ReAct loop,
// and validates the output against the LegalResponse schema and the retrieved
// clause text. Invalid output is retried with a corrective message up to the
// configured retry budget; if every attempt fails, the error is a
// *SchemaViolationError carrying the final output.
func (c *Composer) Answer(ctx context.Context, req *Request) (*Answer, error) {
	if req.Retriever == nil {
		return nil, fmt.Errorf("agent: request has no retriever")
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("agent: question must not be empty")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	chunks, err := req.Retriever.Retrieve(ctx, req.Question, topK)
	if err != nil {
		return nil, fmt.Errorf("agent: clause retrieval failed: %w", err)
	}
	contextBlock := buildClauseContext(chunks, c.maxContextTokens/2)

	messages, err := c.buildMessages(ctx, req, contextBlock)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	var lastOutput string
	var lastViolations []string

	for attempt := 0; attempt <= c.schemaRetries; attempt++ {
		output, err := c.run(ctx, messages)
		if err != nil {
			return nil, err
		}
		lastOutput = output

		resp, violations := parseResponse(output)
		if resp != nil {
			violations = groundViolations(resp, contextBlock)
		}
		if len(violations) == 0 {
			c.persistTurn(ctx, req.SessionID, req.Question, resp)
			return &Answer{
				Response: resp,
				Chunks:   chunks,
				Rendered: Render(resp),
			}, nil
		}

		lastViolations = violations
		log.Warn("response failed validation, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("violations", len(violations)),
		)
		messages = append(messages,
			schema.AssistantMessage(output, nil),
			schema.UserMessage(correctiveMessage(violations)),
		)
	}

	return nil, &SchemaViolationError{
		RawOutput:  lastOutput,
		Violations: lastViolations,
	}
}

// run executes one ReAct attempt and collects the streamed output.
func (c *Composer) run(ctx context.Context, messages []*schema.Message) (string, error) {
	sr, err := c.runner.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg != nil && msg.Content != "" {
			buf.WriteString(msg.Content)
		}
	}
	return buf.String(), nil
}

// buildMessages assembles [system, ...history, clause context, question],
// trimming history oldest-first to fit the token budget.
func (c *Composer) buildMessages(ctx context.Context, req *Request, contextBlock string) ([]*schema.Message, error) {
	var historyMsgs []*schema.Message
	if c.history != nil {
		prior, err := c.history.Recent(ctx, req.SessionID, c.historyDepth*2)
		if err != nil {
			logging.FromContext(ctx).Warn("history: failed to load prior messages", slog.Any("error", err))
		} else {
			for _, m := range prior {
				switch m.Role {
				case store.RoleUser:
					historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
				case store.RoleAssistant:
					historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
				}
			}
		}
	}

	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage(contextBlock),
		schema.UserMessage(req.Question),
	}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, c.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", c.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, 2+len(historyMsgs)+1)
	result = append(result, fixed[0])
	result = append(result, historyMsgs...)
	result = append(result, fixed[1], fixed[2])
	return result, nil
}

// persistTurn records the question and the rendered answer. Non-fatal on
// error — a history write failure must not lose a valid answer.
func (c *Composer) persistTurn(ctx context.Context, sessionID, question string, resp *LegalResponse) {
	if c.history == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := c.history.Append(ctx, sessionID, store.RoleUser, question); err != nil {
		log.Warn("history: failed to persist user message", slog.Any("error", err))
	}
	if err := c.history.Append(ctx, sessionID, store.RoleAssistant, Render(resp)); err != nil {
		log.Warn("history: failed to persist assistant message", slog.Any("error", err))
	}
}

// buildClauseContext labels each retrieved chunk as [Clause N] and clamps the
// block to the token budget so an oversized retrieval cannot crowd out the
// question. Labels are 1-based in retrieval order.
func buildClauseContext(chunks []rag.Chunk, maxTokens int) string {
	if len(chunks) == 0 {
		return "No relevant contract clauses were found for this question."
	}

	var b strings.Builder
	b.WriteString("Relevant contract clauses:\n\n")
	for i, ch := range chunks {
		fmt.Fprintf(&b, "[Clause %d]", i+1)
		if ch.Heading != "" {
			fmt.Fprintf(&b, " (%s)", ch.Heading)
		}
		fmt.Fprintf(&b, ": %s\n\n", strings.TrimSpace(ch.Text))
	}
	return budget.ClampText(strings.TrimRight(b.String(), "\n"), maxTokens)
}

// correctiveMessage tells the model exactly what was wrong so the retry can
// fix it rather than guess.
func correctiveMessage(violations []string) string {
	return "Your previous response was invalid:\n- " +
		strings.Join(violations, "\n- ") +
		"\n\nRespond again with ONLY the JSON object in the required schema. " +
		"Quote every supporting clause verbatim from the provided contract clauses."
}

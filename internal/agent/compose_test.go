package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einoagent "github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/schema"

	"github.com/davral/lexqa-go/internal/rag"
	"github.com/davral/lexqa-go/internal/store"
)

// scriptedRunner plays back one canned output per Stream call and records
// every input message slice for assertions.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs []string
	calls   int
	inputs  [][]*schema.Message
}

func (r *scriptedRunner) Stream(_ context.Context, input []*schema.Message, _ ...einoagent.AgentOption) (*schema.StreamReader[*schema.Message], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	i := r.calls
	if i >= len(r.outputs) {
		i = len(r.outputs) - 1
	}
	r.calls++
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(r.outputs[i], nil),
	}), nil
}

// fixedRetriever returns the same chunks for every query.
type fixedRetriever struct {
	chunks []rag.Chunk
	err    error
}

func (r *fixedRetriever) Retrieve(_ context.Context, _ string, topK int) ([]rag.Chunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	if topK > len(r.chunks) {
		topK = len(r.chunks)
	}
	return r.chunks[:topK], nil
}

var leaseChunks = []rag.Chunk{
	{ID: "c1", Ordinal: 0, Text: "The tenant shall pay rent of $2,500.00 on the first of each month.", Source: "lease.pdf", Score: 0.91},
	{ID: "c2", Ordinal: 3, Text: "Either party may terminate this agreement with sixty days written notice.", Source: "lease.pdf", Score: 0.74},
}

const rentAnswer = `{
  "summary": "The monthly rent is $2,500.00, due on the first of each month.",
  "obligations": ["The tenant shall pay rent of $2,500.00 on the first of each month."],
  "risks": [],
  "supporting_clauses": [
    {"id": "Clause 1", "text": "The tenant shall pay rent of $2,500.00 on the first of each month."}
  ]
}`

func newTestComposer(r runner, hist store.ConversationStore) *Composer {
	return newComposer(r, &Config{History: hist})
}

func rentRequest() *Request {
	return &Request{
		SessionID: "sess-1",
		Question:  "How much is the rent and when is it due?",
		Retriever: &fixedRetriever{chunks: leaseChunks},
	}
}

func Test_Answer_ValidFirstAttempt(t *testing.T) {
	t.Parallel()

	run := &scriptedRunner{outputs: []string{rentAnswer}}
	c := newTestComposer(run, nil)

	ans, err := c.Answer(context.Background(), rentRequest())
	if err != nil {
		t.Fatal(err)
	}
	if run.calls != 1 {
		t.Errorf("want 1 model call, got %d", run.calls)
	}
	if !strings.Contains(ans.Response.Summary, "$2,500.00") {
		t.Errorf("summary lost the amount: %q", ans.Response.Summary)
	}
	if len(ans.Chunks) != 2 {
		t.Errorf("answer must carry the retrieved chunks, got %d", len(ans.Chunks))
	}
	if !strings.Contains(ans.Rendered, "**Obligations:**") {
		t.Errorf("rendered answer missing obligations section:\n%s", ans.Rendered)
	}
}

func Test_Answer_InjectsLabeledClauses(t *testing.T) {
	t.Parallel()

	run := &scriptedRunner{outputs: []string{rentAnswer}}
	c := newTestComposer(run, nil)

	if _, err := c.Answer(context.Background(), rentRequest()); err != nil {
		t.Fatal(err)
	}

	input := run.inputs[0]
	if input[0].Role != schema.System {
		t.Fatal("first message must be the system directive")
	}
	var clauseMsg string
	for _, m := range input {
		if m.Role == schema.System && strings.Contains(m.Content, "[Clause 1]") {
			clauseMsg = m.Content
		}
	}
	if clauseMsg == "" {
		t.Fatal("no system message carries the labeled clauses")
	}
	if !strings.Contains(clauseMsg, "[Clause 1]: The tenant shall pay rent") {
		t.Errorf("clause 1 not labeled in retrieval order:\n%s", clauseMsg)
	}
	if !strings.Contains(clauseMsg, "[Clause 2]: Either party may terminate") {
		t.Errorf("clause 2 not labeled in retrieval order:\n%s", clauseMsg)
	}
	last := input[len(input)-1]
	if last.Role != schema.User || !strings.Contains(last.Content, "rent") {
		t.Errorf("question must be the final message, got %s: %q", last.Role, last.Content)
	}
}

func Test_Answer_CorrectiveRetryRecovers(t *testing.T) {
	t.Parallel()

	run := &scriptedRunner{outputs: []string{"The rent is $2,500.00 per month.", rentAnswer}}
	c := newTestComposer(run, nil)

	ans, err := c.Answer(context.Background(), rentRequest())
	if err != nil {
		t.Fatal(err)
	}
	if run.calls != 2 {
		t.Fatalf("want 2 model calls, got %d", run.calls)
	}
	if ans.Response.Summary == "" {
		t.Error("retry must yield the valid response")
	}

	// The retry input must carry the failed output and a corrective message.
	retry := run.inputs[1]
	last := retry[len(retry)-1]
	if last.Role != schema.User || !strings.Contains(last.Content, "invalid") {
		t.Errorf("retry must end with the corrective message, got %s: %q", last.Role, last.Content)
	}
	prev := retry[len(retry)-2]
	if prev.Role != schema.Assistant || !strings.Contains(prev.Content, "The rent is") {
		t.Errorf("retry must include the failed output, got %s: %q", prev.Role, prev.Content)
	}
}

func Test_Answer_ExhaustedRetriesFailHard(t *testing.T) {
	t.Parallel()

	run := &scriptedRunner{outputs: []string{"not json at all"}}
	c := newTestComposer(run, nil)

	_, err := c.Answer(context.Background(), rentRequest())
	var sve *SchemaViolationError
	if !errors.As(err, &sve) {
		t.Fatalf("want *SchemaViolationError, got %v", err)
	}
	// Initial attempt plus DefaultSchemaRetries corrective retries.
	if run.calls != 1+DefaultSchemaRetries {
		t.Errorf("want %d model calls, got %d", 1+DefaultSchemaRetries, run.calls)
	}
	if sve.RawOutput != "not json at all" {
		t.Errorf("error must carry the final output, got %q", sve.RawOutput)
	}
	if len(sve.Violations) == 0 {
		t.Error("error must carry the violations")
	}
}

func Test_Answer_UngroundedCitationRetried(t *testing.T) {
	t.Parallel()

	fabricated := `{
  "summary": "Parking is free.",
  "obligations": [],
  "risks": [],
  "supporting_clauses": [{"id": "Clause 9", "text": "The landlord shall provide free parking."}]
}`
	run := &scriptedRunner{outputs: []string{fabricated, rentAnswer}}
	c := newTestComposer(run, nil)

	ans, err := c.Answer(context.Background(), rentRequest())
	if err != nil {
		t.Fatal(err)
	}
	if run.calls != 2 {
		t.Errorf("fabricated citation must trigger a retry, got %d calls", run.calls)
	}
	if ans.Response.SupportingClauses[0].ID != "Clause 1" {
		t.Errorf("final answer must be the grounded one: %+v", ans.Response)
	}
}

func Test_Answer_HistoryInjectedAndPersisted(t *testing.T) {
	t.Parallel()

	hist := store.NewMemoryStore()
	ctx := context.Background()
	if err := hist.Append(ctx, "sess-1", store.RoleUser, "What is the notice period?"); err != nil {
		t.Fatal(err)
	}
	if err := hist.Append(ctx, "sess-1", store.RoleAssistant, "Sixty days written notice."); err != nil {
		t.Fatal(err)
	}

	run := &scriptedRunner{outputs: []string{rentAnswer}}
	c := newTestComposer(run, hist)

	if _, err := c.Answer(ctx, rentRequest()); err != nil {
		t.Fatal(err)
	}

	// Prior turns sit between the system directive and the clause context.
	input := run.inputs[0]
	if input[1].Role != schema.User || input[1].Content != "What is the notice period?" {
		t.Errorf("prior user turn not injected: %s %q", input[1].Role, input[1].Content)
	}
	if input[2].Role != schema.Assistant {
		t.Errorf("prior assistant turn not injected: %s", input[2].Role)
	}

	// The new turn is persisted after a valid answer.
	msgs, err := hist.Recent(ctx, "sess-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("want 4 persisted messages, got %d", len(msgs))
	}
	if msgs[3].Role != store.RoleAssistant || !strings.Contains(msgs[3].Content, "$2,500.00") {
		t.Errorf("assistant turn not persisted: %+v", msgs[3])
	}
}

func Test_Answer_RetrievalFailureIsFatal(t *testing.T) {
	t.Parallel()

	run := &scriptedRunner{outputs: []string{rentAnswer}}
	c := newTestComposer(run, nil)

	_, err := c.Answer(context.Background(), &Request{
		SessionID: "sess-1",
		Question:  "How much is the rent?",
		Retriever: &fixedRetriever{err: errors.New("store unavailable")},
	})
	if err == nil {
		t.Fatal("retrieval failure must fail the question")
	}
	if run.calls != 0 {
		t.Error("model must not be called without clauses")
	}
}

func Test_Answer_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()

	c := newTestComposer(&scriptedRunner{outputs: []string{rentAnswer}}, nil)
	if _, err := c.Answer(context.Background(), &Request{
		Question:  "   ",
		Retriever: &fixedRetriever{chunks: leaseChunks},
	}); err == nil {
		t.Error("blank question must be rejected")
	}
}

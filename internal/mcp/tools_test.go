package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/session"
)

// fakeContracts implements ContractService for handler tests.
type fakeContracts struct {
	session *session.Session
	openErr error
	answer  *agent.Answer
	askErr  error
	asked   []string
}

func (f *fakeContracts) Open(_ context.Context, path string) (*session.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.session == nil {
		f.session = &session.Session{ID: "sess-1", Source: path}
	}
	return f.session, nil
}

func (f *fakeContracts) Get(id string) (*session.Session, bool) {
	if f.session != nil && f.session.ID == id {
		return f.session, true
	}
	return nil, false
}

func (f *fakeContracts) Ask(_ context.Context, _ *session.Session, question string) (*agent.Answer, error) {
	f.asked = append(f.asked, question)
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func newTestMCPServer(t *testing.T, contracts ContractService) *Server {
	t.Helper()
	s, err := NewServer(contracts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewServer_RequiresContracts(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(nil); err == nil {
		t.Error("nil contract service must fail")
	}
}

func TestHandleOpenContract(t *testing.T) {
	t.Parallel()

	fake := &fakeContracts{}
	s := newTestMCPServer(t, fake)

	_, out, err := s.handleOpenContract(context.Background(), nil, OpenContractInput{Path: "lease.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if out.SessionID == "" || out.Source != "lease.pdf" {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestHandleOpenContract_Error(t *testing.T) {
	t.Parallel()

	fake := &fakeContracts{openErr: errors.New("unreadable document")}
	s := newTestMCPServer(t, fake)

	if _, _, err := s.handleOpenContract(context.Background(), nil, OpenContractInput{Path: "broken.pdf"}); err == nil {
		t.Error("open failure must propagate")
	}
}

func TestHandleAnalyzeContract(t *testing.T) {
	t.Parallel()

	fake := &fakeContracts{
		session: &session.Session{ID: "sess-1", Source: "lease.pdf"},
		answer: &agent.Answer{
			Response: &agent.LegalResponse{
				Summary:           "The rent is $2,500.00 per month.",
				Obligations:       []string{"Tenant pays rent monthly."},
				Risks:             []string{},
				SupportingClauses: []agent.ClauseReference{{ID: "clause-1", Text: "rent of $2,500.00"}},
			},
			Rendered: "The rent is $2,500.00 per month.",
		},
	}
	s := newTestMCPServer(t, fake)

	_, out, err := s.handleAnalyzeContract(context.Background(), nil, AnalyzeContractInput{
		SessionID: "sess-1",
		Question:  "How much is the rent?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Answer == nil || out.Answer.Summary == "" {
		t.Error("expected a structured answer")
	}
	if out.Rendered == "" {
		t.Error("expected a rendered answer")
	}
	if len(fake.asked) != 1 || fake.asked[0] != "How much is the rent?" {
		t.Errorf("question not forwarded: %v", fake.asked)
	}
}

func TestHandleAnalyzeContract_UnknownSession(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, &fakeContracts{})

	_, _, err := s.handleAnalyzeContract(context.Background(), nil, AnalyzeContractInput{
		SessionID: "no-such-session",
		Question:  "q",
	})
	if err == nil {
		t.Fatal("unknown session must fail")
	}
	if !strings.Contains(err.Error(), "open_contract") {
		t.Errorf("error should point the caller at open_contract: %v", err)
	}
}

func TestHandleExtractAmounts(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, &fakeContracts{})

	_, out, err := s.handleExtractAmounts(context.Background(), nil, ExtractAmountsInput{
		Text: "Rent is $2,500.00 with a deposit of USD 1,000.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Amounts) != 2 {
		t.Fatalf("expected 2 amounts, got %+v", out)
	}
	if out.Amounts[0] != "$2,500.00" {
		t.Errorf("first amount: got %q", out.Amounts[0])
	}
}

func TestHandleComputeDeadline(t *testing.T) {
	t.Parallel()

	s := newTestMCPServer(t, &fakeContracts{})

	_, out, err := s.handleComputeDeadline(context.Background(), nil, ComputeDeadlineInput{
		StartDate: "2024-01-01",
		Days:      30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Result != "2024-01-31" {
		t.Errorf("deadline: got %q, want %q", out.Result, "2024-01-31")
	}

	_, out, err = s.handleComputeDeadline(context.Background(), nil, ComputeDeadlineInput{
		StartDate: "01/01/2024",
		Days:      30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Result, "YYYY-MM-DD") {
		t.Errorf("malformed date must return the corrective message, got %q", out.Result)
	}
}

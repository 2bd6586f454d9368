package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/index"
	"github.com/davral/lexqa-go/internal/rag"
)

// stubEmbedder returns a fixed-length vector per text so index builds work
// without a backend.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

// recordingAnswerer captures every request and returns a canned answer.
type recordingAnswerer struct {
	requests []*agent.Request
}

func (a *recordingAnswerer) Answer(_ context.Context, req *agent.Request) (*agent.Answer, error) {
	a.requests = append(a.requests, req)
	return &agent.Answer{
		Response: &agent.LegalResponse{
			Summary:           "canned",
			Obligations:       []string{},
			Risks:             []string{},
			SupportingClauses: []agent.ClauseReference{},
		},
		Rendered: "canned",
	}, nil
}

func newTestManager(t *testing.T, watch bool) (*Manager, *recordingAnswerer) {
	t.Helper()
	idx, err := index.NewManager(&index.Config{
		Embedder: stubEmbedder{},
		Stores: func(context.Context) (rag.VectorStore, error) {
			return rag.NewMemoryStore(), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	ans := &recordingAnswerer{}
	m, err := NewManager(&Config{Indexes: idx, Composer: ans, Watch: watch})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, ans
}

const contractText = "The tenant shall pay rent of $2,500.00 on the first of each month."

func TestManager_LoadAndAsk(t *testing.T) {
	t.Parallel()

	m, ans := newTestManager(t, false)
	ctx := context.Background()

	sess, err := m.Load(ctx, "lease.txt", []byte(contractText))
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" || sess.Source != "lease.txt" {
		t.Errorf("session identity: %+v", sess)
	}
	if sess.ChunkCount() == 0 {
		t.Error("session must report its chunk count")
	}

	got, err := m.Ask(ctx, sess, "How much is the rent?")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rendered != "canned" {
		t.Errorf("answer not routed through the composer: %+v", got)
	}
	if len(ans.requests) != 1 {
		t.Fatalf("want 1 composer request, got %d", len(ans.requests))
	}
	req := ans.requests[0]
	if req.SessionID != sess.ID {
		t.Errorf("request session: got %q, want %q", req.SessionID, sess.ID)
	}
	if req.Retriever == nil {
		t.Error("request must carry the session's retriever")
	}
}

func TestManager_GetByID(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, false)
	sess, err := m.Load(context.Background(), "lease.txt", []byte(contractText))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := m.Get(sess.ID)
	if !ok || got != sess {
		t.Error("session not retrievable by ID")
	}
	if _, ok := m.Get("no-such-id"); ok {
		t.Error("unknown ID must not resolve")
	}
}

func TestManager_SameBytesShareIndex(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, false)
	ctx := context.Background()

	a, err := m.Load(ctx, "a.txt", []byte(contractText))
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Load(ctx, "b.txt", []byte(contractText))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("distinct sessions must have distinct IDs")
	}
	if a.DocKey() != b.DocKey() {
		t.Error("identical bytes must share a document key")
	}
}

func TestManager_WatchedFileReloadedAfterChange(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, true)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "lease.txt")
	if err := os.WriteFile(path, []byte(contractText), 0o600); err != nil {
		t.Fatal(err)
	}

	sess, err := m.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	originalKey := sess.DocKey()

	updated := contractText + "\nAn amendment raises the rent to $2,600.00."
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	// The watcher delivers the event asynchronously; wait for the eviction.
	deadline := time.After(5 * time.Second)
	for {
		if _, ok := m.Get(sess.ID); !ok {
			t.Fatal("session itself must survive the eviction")
		}
		if _, cached := m.indexes.Get(originalKey); !cached {
			break
		}
		select {
		case <-deadline:
			t.Fatal("index was not evicted after the file changed")
		case <-time.After(20 * time.Millisecond):
		}
	}

	// The next question reloads the modified file under a new key.
	if _, err := m.Ask(ctx, sess, "How much is the rent?"); err != nil {
		t.Fatal(err)
	}
	if sess.DocKey() == originalKey {
		t.Error("session must track the new document key after reload")
	}
}

func TestNewManager_RequiresDeps(t *testing.T) {
	t.Parallel()

	idx, err := index.NewManager(&index.Config{
		Embedder: stubEmbedder{},
		Stores: func(context.Context) (rag.VectorStore, error) {
			return rag.NewMemoryStore(), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(&Config{Composer: &recordingAnswerer{}}); err == nil {
		t.Error("nil index manager must fail")
	}
	if _, err := NewManager(&Config{Indexes: idx}); err == nil {
		t.Error("nil composer must fail")
	}
}

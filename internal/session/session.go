// Package session ties one loaded contract to its index and conversation
// thread. The Manager is the single entry point the CLI, server, TUI, and MCP
// surfaces share: open a contract, ask questions against it. With watching
// enabled, a contract file modified on disk is evicted from the index cache
// and transparently reloaded on the next question.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/docload"
	"github.com/davral/lexqa-go/internal/index"
	"github.com/davral/lexqa-go/internal/rag"
)

// Answerer produces a validated answer for one request. *agent.Composer is
// the production implementation.
type Answerer interface {
	Answer(ctx context.Context, req *agent.Request) (*agent.Answer, error)
}

// Session is one open contract: its identity, its document, and the key of
// its built index.
type Session struct {
	// ID keys the conversation history thread.
	ID string

	// Source is the contract filename, for display.
	Source string

	mu     sync.Mutex
	docKey string
	// path is set when the contract was opened from disk; empty for uploads.
	path string
	// chunkCount is the size of the most recent build.
	chunkCount int
}

// DocKey returns the content key of the session's current document.
func (s *Session) DocKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docKey
}

// ChunkCount returns the chunk count of the most recent index build.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// Config holds the dependencies for a session Manager.
type Config struct {
	// Indexes builds and caches contract indexes.
	Indexes *index.Manager

	// Composer answers questions.
	Composer Answerer

	// TopK is the retrieval depth per question. Defaults to rag.DefaultTopK.
	TopK int

	// Watch enables filesystem watching of contracts opened from disk.
	Watch bool
}

// Manager owns the open sessions. Safe for concurrent use.
type Manager struct {
	indexes  *index.Manager
	composer Answerer
	topK     int

	mu       sync.RWMutex
	sessions map[string]*Session

	watcher *watcher
}

// NewManager constructs a session Manager.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Indexes == nil {
		return nil, fmt.Errorf("session: index manager must not be nil")
	}
	if cfg.Composer == nil {
		return nil, fmt.Errorf("session: composer must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	m := &Manager{
		indexes:  cfg.Indexes,
		composer: cfg.Composer,
		topK:     topK,
		sessions: make(map[string]*Session),
	}
	if cfg.Watch {
		w, err := newWatcher(m.indexes)
		if err != nil {
			return nil, err
		}
		m.watcher = w
	}
	return m, nil
}

// Open loads the contract at path, builds its index, and returns a new
// session. With watching enabled, a later modification of the file evicts the
// index so the next question sees the new content.
func (m *Manager) Open(ctx context.Context, path string) (*Session, error) {
	doc, err := docload.Open(path)
	if err != nil {
		return nil, err
	}
	sess, err := m.start(ctx, doc, path)
	if err != nil {
		return nil, err
	}
	if m.watcher != nil {
		if err := m.watcher.add(path, doc.Key); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Load builds a session from uploaded contract bytes.
func (m *Manager) Load(ctx context.Context, name string, data []byte) (*Session, error) {
	doc, err := docload.Read(name, data)
	if err != nil {
		return nil, err
	}
	return m.start(ctx, doc, "")
}

// start builds the index for doc and registers the session.
func (m *Manager) start(ctx context.Context, doc *docload.Document, path string) (*Session, error) {
	ix, _, err := m.indexes.Build(ctx, doc)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:         uuid.NewString(),
		Source:     doc.Source,
		docKey:     doc.Key,
		path:       path,
		chunkCount: ix.Len(),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get returns the session with the given ID, if it exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Ask answers a question against the session's contract. If the watcher
// evicted the index because the file changed, the contract is reloaded from
// disk and re-indexed first.
func (m *Manager) Ask(ctx context.Context, sess *Session, question string) (*agent.Answer, error) {
	ix, err := m.currentIndex(ctx, sess)
	if err != nil {
		return nil, err
	}

	return m.composer.Answer(ctx, &agent.Request{
		SessionID: sess.ID,
		Question:  question,
		Retriever: ix,
		TopK:      m.topK,
	})
}

// currentIndex returns the session's index, rebuilding from disk when the
// cached one was evicted.
func (m *Manager) currentIndex(ctx context.Context, sess *Session) (*index.Index, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if ix, ok := m.indexes.Get(sess.docKey); ok {
		return ix, nil
	}
	if sess.path == "" {
		return nil, fmt.Errorf("session: index for %s is gone and the session has no file to reload", sess.Source)
	}

	doc, err := docload.Open(sess.path)
	if err != nil {
		return nil, fmt.Errorf("session: reload %s: %w", sess.path, err)
	}
	ix, _, err := m.indexes.Build(ctx, doc)
	if err != nil {
		return nil, err
	}
	if m.watcher != nil {
		// Re-key the watch so a further edit evicts the new index.
		m.watcher.rekey(sess.path, doc.Key)
	}
	sess.docKey = doc.Key
	sess.chunkCount = ix.Len()
	return ix, nil
}

// Close stops the watcher, drops all sessions, and closes the index cache.
func (m *Manager) Close() error {
	if m.watcher != nil {
		_ = m.watcher.close()
	}
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	return m.indexes.Close()
}

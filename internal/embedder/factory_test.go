package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// clearEmbedEnv unsets every env var the factory reads so tests are hermetic.
// Not parallel-safe — tests using it must not call t.Parallel().
func clearEmbedEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS",
		"MODEL_PROVIDER", "OPENAI_API_KEY", "OLLAMA_HOST",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_VERSION",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnv_DefaultRequiresOpenAIKey(t *testing.T) {
	clearEmbedEnv(t)

	// No provider set anywhere resolves to openai, which needs a key.
	_, err := NewFromEnv()
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("want *BackendError for missing key, got %v", err)
	}
	if be.Backend != "openai" {
		t.Errorf("want openai backend in error, got %q", be.Backend)
	}
}

func TestNewFromEnv_InheritsModelProvider(t *testing.T) {
	clearEmbedEnv(t)
	t.Setenv("MODEL_PROVIDER", "ollama")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("MODEL_PROVIDER=ollama must yield an OllamaEmbedder, got %T", emb)
	}
}

func TestNewFromEnv_ExplicitProviderWins(t *testing.T) {
	clearEmbedEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("EMBEDDING_PROVIDER must override MODEL_PROVIDER, got %T", emb)
	}
}

func TestNewFromEnv_AzureRequiresEndpoint(t *testing.T) {
	clearEmbedEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")

	if _, err := NewFromEnv(); err == nil {
		t.Error("azure without endpoint must fail")
	}
}

func TestNewFromEnv_UnknownBackend(t *testing.T) {
	clearEmbedEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "bedrock")

	if _, err := NewFromEnv(); err == nil {
		t.Error("unknown backend must fail")
	}
}

func TestDefaultDimensions(t *testing.T) {
	clearEmbedEnv(t)

	if got := DefaultDimensions("ollama"); got != defaultOllamaDimensions {
		t.Errorf("ollama dims: got %d", got)
	}
	if got := DefaultDimensions("openai"); got != defaultOpenAIDimensions {
		t.Errorf("openai dims: got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "512")
	if got := DefaultDimensions("ollama"); got != 512 {
		t.Errorf("EMBEDDING_DIMENSIONS override: got %d, want 512", got)
	}
}

func TestValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("openai without key fails", func(t *testing.T) {
		clearEmbedEnv(t)
		if err := Validate(log); err == nil {
			t.Error("missing OPENAI_API_KEY must fail validation")
		}
	})

	t.Run("openai with key passes", func(t *testing.T) {
		clearEmbedEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-test")
		if err := Validate(log); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("ollama needs no credential", func(t *testing.T) {
		clearEmbedEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "ollama")
		if err := Validate(log); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})
}

func Test_looksLikeChatModel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"llama3", true},
		{"text-embedding-3-small", false},
		{"nomic-embed-text", false},
	}
	for _, tc := range cases {
		if got := looksLikeChatModel(tc.model); got != tc.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// OpenAI HTTP client
// ---------------------------------------------------------------------------

func TestOpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization header: got %q", got)
		}
		var req openaiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		// Respond out of order to exercise the index-based reassembly.
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
	})

	got, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Errorf("embeddings not reassembled by index: %v", got)
	}
}

func TestOpenAIEmbedder_BackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})

	_, err := emb.Embed(context.Background(), []string{"text"})
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("credential rejection must be a *BackendError, got %v", err)
	}
}

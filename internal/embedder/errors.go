package embedder

import "fmt"

// BackendError marks an embedding failure caused by the backend being
// unreachable or rejecting the credentials — not by the input text. Callers
// surface it to the user as retryable: fix the credential or the endpoint and
// run the same command again. A build that fails with a BackendError caches
// nothing, so the retry starts clean.
type BackendError struct {
	// Backend is the embedding backend name (openai, azure, ollama).
	Backend string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s embedder: %v", e.Backend, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *BackendError) Unwrap() error { return e.Err }

// backendErr wraps err in a BackendError for the named backend.
func backendErr(backend string, format string, args ...any) error {
	return &BackendError{Backend: backend, Err: fmt.Errorf(format, args...)}
}

package ai

import "fmt"

// ConfigurationError means a required credential or endpoint is absent.
// It is raised before any network attempt and should surface to the
// user as a "check your settings" message, never as a retry.
type ConfigurationError struct {
	Provider Provider
	Missing  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Provider, e.Missing)
}

// EmbeddingError reports a failed embedding batch. Batch is the
// zero-based index of the batch that failed; earlier batches may have
// succeeded but the caller must discard the whole run.
type EmbeddingError struct {
	Batch int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d failed: %v", e.Batch, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ChatProviderError reports a failed language-model call.
type ChatProviderError struct {
	Provider Provider
	Err      error
}

func (e *ChatProviderError) Error() string {
	return fmt.Sprintf("%s chat call failed: %v", e.Provider, e.Err)
}

func (e *ChatProviderError) Unwrap() error { return e.Err }

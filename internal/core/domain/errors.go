package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent retrieval failures.
// Typed errors below unwrap to these sentinels so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested section does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed options, queries or evaluation cases.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorpusIntegrity indicates a corpus snapshot failed validation.
	// Duplicate IDs and mixed embedding spaces are fatal to a build.
	ErrCorpusIntegrity = errors.New("corpus integrity violation")

	// ErrEmbeddingUnavailable indicates the embedding backend failed or timed out.
	// Dense and hybrid retrieval cannot proceed; the caller decides whether
	// to retry or fall back to lexical retrieval.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrClassificationUnavailable indicates the router's classifier failed or timed out.
	// The router recovers from it by routing to the full corpus.
	ErrClassificationUnavailable = errors.New("classification service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrNoSnapshot indicates no corpus snapshot has been built yet.
	ErrNoSnapshot = errors.New("corpus not built")
)

// CorpusIntegrityError describes why a snapshot build was rejected.
type CorpusIntegrityError struct {
	// SectionID is the offending section, when one can be named.
	SectionID string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements error.
func (e *CorpusIntegrityError) Error() string {
	if e.SectionID == "" {
		return fmt.Sprintf("corpus integrity: %s", e.Reason)
	}
	return fmt.Sprintf("corpus integrity: section %q: %s", e.SectionID, e.Reason)
}

// Unwrap returns ErrCorpusIntegrity.
func (e *CorpusIntegrityError) Unwrap() error {
	return ErrCorpusIntegrity
}

// EmbeddingUnavailableError wraps a backend failure of an embedding provider.
type EmbeddingUnavailableError struct {
	// Model is the embedding model that failed.
	Model string

	// Err is the underlying cause (network error, context deadline, ...).
	Err error
}

// Error implements error.
func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding unavailable (model %s): %v", e.Model, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *EmbeddingUnavailableError) Unwrap() []error {
	return []error{ErrEmbeddingUnavailable, e.Err}
}

// NewEmbeddingUnavailable wraps err unless it already is an embedding error.
func NewEmbeddingUnavailable(model string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EmbeddingUnavailableError
	if errors.As(err, &existing) {
		return err
	}
	return &EmbeddingUnavailableError{Model: model, Err: err}
}

// ClassificationUnavailableError wraps a backend failure of a query classifier.
type ClassificationUnavailableError struct {
	// Classifier is the name of the classifier that failed.
	Classifier string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ClassificationUnavailableError) Error() string {
	return fmt.Sprintf("classification unavailable (%s): %v", e.Classifier, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *ClassificationUnavailableError) Unwrap() []error {
	return []error{ErrClassificationUnavailable, e.Err}
}

// NewClassificationUnavailable wraps err unless it already is a classification error.
func NewClassificationUnavailable(classifier string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ClassificationUnavailableError
	if errors.As(err, &existing) {
		return err
	}
	return &ClassificationUnavailableError{Classifier: classifier, Err: err}
}

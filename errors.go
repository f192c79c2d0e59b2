package gotmem

import "fmt"

// TranslationError is the base error type for translation failures.
type TranslationError struct {
	Message string
	Cause   error
}

func (e *TranslationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// ProviderError indicates a generation provider failure (API error, rate limit, etc.).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// StoreError indicates a persistence backend failure. Callers treat it as a
// degraded path: the in-memory state stays authoritative and the write is
// retried on the next mutation.
type StoreError struct {
	Op      string // the failing operation, e.g. "set", "scan"
	Key     string
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store error (%s %s): %s: %v", e.Op, e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("store error (%s %s): %s", e.Op, e.Key, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// SerializationError indicates a stored payload could not be decoded. The
// entry is discarded and the lookup treated as a miss.
type SerializationError struct {
	Key   string
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error for %q: %v", e.Key, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// CountMismatchError indicates the provider returned a different number of
// translations than requested.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch: expected %d, got %d", e.Expected, e.Got)
}

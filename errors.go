package flagstore

import (
	"errors"
	"fmt"
)

var (
	ErrNilProvider = errors.New("flagstore: provider is required")
	ErrClosed      = errors.New("flagstore: store is closed")
)

// DecodeError reports a stored record that could not be decoded. It is
// never treated as "absent": guessing a version could let an older write
// replace a newer one.
type DecodeError struct {
	Namespace string
	Key       string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flagstore: decode %s/%q: %v", e.Namespace, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UpdateError reports an Upsert aborted by a store failure or by the
// caller's context. Attempts counts the conditional writes tried so far,
// including the failing one.
type UpdateError struct {
	Namespace string
	Key       string
	Attempts  int
	Err       error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("flagstore: update %s/%q aborted after %d attempt(s): %v",
		e.Namespace, e.Key, e.Attempts, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyContent    = errors.New("content is required")
	ErrInvalidRole     = errors.New("invalid role")
)

// PersistenceError reports a failed store write or read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ProviderError reports a failed LLM call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("provider failure: %v", e.Err)
	}
	return fmt.Sprintf("%s provider failure: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means a chat or message does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChatNotFound) || errors.Is(err, ErrMessageNotFound)
}

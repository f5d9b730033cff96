package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSessionAvailable indicates Send could not resolve a default session.
	ErrNoSessionAvailable = errors.New("no mail session available")

	// ErrNoRecipient indicates the message has no To, Cc or Bcc address.
	ErrNoRecipient = errors.New("message must have at least one recipient")

	// ErrNoProvider indicates the session carries no delivery provider.
	ErrNoProvider = errors.New("session has no delivery provider")
)

// SendFailureError reports a message the transport could not deliver.
type SendFailureError struct {
	Provider string
	Err      error
}

func (e *SendFailureError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("send failed: %v", e.Err)
	}
	return fmt.Sprintf("send via %s failed: %v", e.Provider, e.Err)
}

func (e *SendFailureError) Unwrap() error {
	return e.Err
}

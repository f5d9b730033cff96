// Package template provides the deferred subject and body sources that a
// message builder merges against a shared context right before sending.
package template

import (
	"errors"
	"fmt"
)

// Context holds the variables available to every template of a message.
type Context map[string]any

// Template is a named, parameterizable text source.
type Template interface {
	// Name identifies the template in errors and logs.
	Name() string
	// Merge renders the template against ctx.
	Merge(ctx Context) (string, error)
}

// ErrUnknownExtension is returned by LoadFS for files it cannot map to an engine.
var ErrUnknownExtension = errors.New("unknown template extension")

// RenderError reports a template that failed to parse or execute.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

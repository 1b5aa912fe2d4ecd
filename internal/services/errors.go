// Package services holds error taxonomy and context helpers shared across
// the analysis pipeline's components.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind captures the taxonomy of service errors.
type ErrorKind string

const (
	ErrorKindExternal      ErrorKind = "external"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindTransient     ErrorKind = "transient"
)

var markerKinds = map[error]ErrorKind{
	ErrExternalTool:  ErrorKindExternal,
	ErrValidation:    ErrorKindValidation,
	ErrConfiguration: ErrorKindConfiguration,
	ErrNotFound:      ErrorKindNotFound,
	ErrTimeout:       ErrorKindTimeout,
	ErrTransient:     ErrorKindTransient,
}

// ComponentError provides structured error context for phase failures.
type ComponentError struct {
	Marker    error
	Kind      ErrorKind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	detail := buildDetail(e.Component, e.Operation, e.Message)
	if detail == "" {
		detail = "component failure"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", detail, e.Cause)
	}
	return detail
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ComponentError) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if e.Marker != nil && errors.Is(e.Marker, target) {
		return true
	}
	return errors.Is(e.Cause, target)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(component) != "" {
		parts = append(parts, component)
	}
	if strings.TrimSpace(operation) != "" {
		parts = append(parts, operation)
	}
	detail := strings.Join(parts, " ")
	message = strings.TrimSpace(message)
	switch {
	case detail == "" && message == "":
		return ""
	case detail == "":
		return message
	case message == "":
		return detail
	default:
		return fmt.Sprintf("%s: %s", detail, message)
	}
}

// Wrap builds an error carrying component context and tags it with the
// provided marker for later classification.
func Wrap(marker error, component, operation, message string, cause error) error {
	kind, ok := markerKinds[marker]
	if !ok {
		kind = ErrorKindTransient
	}
	return &ComponentError{
		Marker:    marker,
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// WrapHint attaches a human-readable hint to the resulting error.
func WrapHint(marker error, component, operation, message, hint string, cause error) error {
	err := Wrap(marker, component, operation, message, cause).(*ComponentError)
	err.Hint = hint
	return err
}

// ErrorDetails exposes a snapshot of a ComponentError for structured logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts structured error information when available.
func Details(err error) ErrorDetails {
	var compErr *ComponentError
	if errors.As(err, &compErr) && compErr != nil {
		return ErrorDetails{
			Kind:      compErr.Kind,
			Component: compErr.Component,
			Operation: compErr.Operation,
			Message:   strings.TrimSpace(compErr.Message),
			Hint:      strings.TrimSpace(compErr.Hint),
			Cause:     compErr.Cause,
		}
	}
	if err == nil {
		return ErrorDetails{}
	}
	return ErrorDetails{Kind: ErrorKindTransient, Message: strings.TrimSpace(err.Error()), Cause: err}
}

// IsFatal reports whether err should abort the track entirely (ProbeFailed
// and StoreIOError per the error handling design) rather than degrade to a
// defaulted phase result.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	details := Details(err)
	return details.Component == "probe" || details.Component == "library"
}

package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidRequest        Kind = "invalid_request"
	KindGenerationUnavailable Kind = "generation_unavailable"
	KindGeneration            Kind = "generation"
	KindPersistence           Kind = "persistence"
	KindNoTranscripts         Kind = "no_transcripts"
	KindNotFound              Kind = "not_found"
	KindPolicy                Kind = "policy"
	KindInternal              Kind = "internal"
)

type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(kind Kind, message string, cause error) error {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidRequest(message string) error {
	return New(KindInvalidRequest, message, nil)
}

func NewGenerationUnavailable(message string, cause error) error {
	return New(KindGenerationUnavailable, message, cause)
}

func NewGeneration(message string, cause error) error {
	return New(KindGeneration, message, cause)
}

func NewPersistence(message string, cause error) error {
	return New(KindPersistence, message, cause)
}

func NewNoTranscripts(message string) error {
	return New(KindNoTranscripts, message, nil)
}

func NewNotFound(message string) error {
	return New(KindNotFound, message, nil)
}

func NewPolicy(message string) error {
	return New(KindPolicy, message, nil)
}

func NewInternal(message string, cause error) error {
	return New(KindInternal, message, cause)
}

// KindOf returns the kind of the outermost AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf returns the AppError message without kind prefix or cause.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func IsInvalidRequest(err error) bool        { return is(err, KindInvalidRequest) }
func IsGenerationUnavailable(err error) bool { return is(err, KindGenerationUnavailable) }
func IsNoTranscripts(err error) bool         { return is(err, KindNoTranscripts) }
func IsNotFound(err error) bool              { return is(err, KindNotFound) }
func IsPolicy(err error) bool                { return is(err, KindPolicy) }

func is(err error, kind Kind) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

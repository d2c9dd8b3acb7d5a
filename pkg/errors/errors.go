// Package errors provides error wrapping utilities and the error kinds surfaced
// to the user when acquiring or converting a whiteboard image.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure for user-facing notification.
type Kind string

// Error kinds
const (
	KindUnknown              Kind = "unknown"
	KindInvalidMediaType     Kind = "invalid_media_type"
	KindImageTooLarge        Kind = "image_too_large"
	KindCameraUnavailable    Kind = "camera_unavailable"
	KindCaptureFailed        Kind = "capture_failed"
	KindConversionFailed     Kind = "conversion_failed"
	KindInvalidResponseShape Kind = "invalid_response_shape"
	KindBusy                 Kind = "busy"
	KindInvalidState         Kind = "invalid_state"
)

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrInvalidMediaType     = &kindError{kind: KindInvalidMediaType, msg: "invalid media type"}
	ErrImageTooLarge        = &kindError{kind: KindImageTooLarge, msg: "image too large"}
	ErrCameraUnavailable    = &kindError{kind: KindCameraUnavailable, msg: "camera unavailable"}
	ErrCaptureFailed        = &kindError{kind: KindCaptureFailed, msg: "capture failed"}
	ErrConversionFailed     = &kindError{kind: KindConversionFailed, msg: "conversion failed"}
	ErrInvalidResponseShape = &kindError{kind: KindInvalidResponseShape, msg: "invalid response shape"}
	ErrBusy                 = &kindError{kind: KindBusy, msg: "conversion in progress"}
	ErrInvalidState         = &kindError{kind: KindInvalidState, msg: "invalid state"}
)

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// New attaches a kind to a detail message, e.g. New(ErrCaptureFailed, "empty frame").
func New(kind error, detail string) error {
	return fmt.Errorf("%w: %s", kind, detail)
}

// Mark attaches a kind to an underlying cause while keeping both matchable.
func Mark(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// KindOf returns the kind of the first sentinel found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

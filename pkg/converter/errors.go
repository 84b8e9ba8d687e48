package converter

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversion failure modes
var (
	ErrDecode             = errors.New("audio could not be decoded")
	ErrAnalysisDegenerate = errors.New("no usable peaks in audio")
	ErrEncoding           = errors.New("midi encoding failed")
	ErrEmptySequence      = errors.New("empty pitch sequence")
	ErrVLQOverflow        = errors.New("value too large for variable-length quantity")
)

// ErrorKind classifies why a conversion degraded or failed
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindDecode
	KindAnalysisDegenerate
	KindEncoding
)

// String returns a short identifier for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDecode:
		return "decode"
	case KindAnalysisDegenerate:
		return "analysis_degenerate"
	case KindEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// ConversionError records the stage where a conversion step failed
type ConversionError struct {
	Kind  ErrorKind
	Stage State
	Cause error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed at %s: %v", e.Kind, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s failed at %s", e.Kind, e.Stage)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error kind
func (e *ConversionError) Is(target error) bool {
	switch e.Kind {
	case KindDecode:
		return target == ErrDecode
	case KindAnalysisDegenerate:
		return target == ErrAnalysisDegenerate
	case KindEncoding:
		return target == ErrEncoding
	}
	return false
}

// IsRecoverable returns true if a fallback sequence can replace the output
func (e *ConversionError) IsRecoverable() bool {
	return e.Kind == KindDecode || e.Kind == KindAnalysisDegenerate
}

// NewConversionError creates a ConversionError
func NewConversionError(kind ErrorKind, stage State, cause error) *ConversionError {
	return &ConversionError{Kind: kind, Stage: stage, Cause: cause}
}

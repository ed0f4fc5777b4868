package streaming

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType classifies broadcast failures
type ErrorType int

const (
	// ErrorTypeSupplier is a failed or timed out catalog fetch
	ErrorTypeSupplier ErrorType = iota
	// ErrorTypeSegmenter is a failed slicing run
	ErrorTypeSegmenter
	// ErrorTypeCapacity is backpressure: the caller should retry later
	ErrorTypeCapacity
	// ErrorTypeNotFound is a lookup miss
	ErrorTypeNotFound
	// ErrorTypeInvariant is content that cannot be used, e.g. zero segments
	ErrorTypeInvariant
	// ErrorTypeLifecycle is an operation on a station that is not running
	ErrorTypeLifecycle
	// ErrorTypeInternal is anything unclassified
	ErrorTypeInternal
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeSupplier:
		return "supplier"
	case ErrorTypeSegmenter:
		return "segmenter"
	case ErrorTypeCapacity:
		return "capacity"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeInvariant:
		return "invariant"
	case ErrorTypeLifecycle:
		return "lifecycle"
	default:
		return "internal"
	}
}

// ErrorSeverity represents how loudly an error should be reported
type ErrorSeverity int

const (
	// SeverityInfo is expected and never logged above debug
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is a skipped fragment or a transient failure
	SeverityWarning
	// SeverityError is a failure that counts toward the refill threshold
	SeverityError
)

// String returns the string representation of ErrorSeverity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Sentinel errors
var (
	ErrNilSegment          = errors.New("segment is nil")
	ErrSequenceRegression  = errors.New("segment sequence is not above the highest retained one")
	ErrNilFragment         = errors.New("sound fragment is nil")
	ErrNoSegments          = errors.New("slicing produced no segments")
	ErrRegularQueueFull    = errors.New("regular queue is at capacity")
	ErrStationStopped      = errors.New("station is not running")
	ErrStationRunning      = errors.New("station is already running")
	ErrStationNotFound     = errors.New("station not found")
	ErrInvalidSegmentName  = errors.New("invalid segment name")
	ErrSegmentNotAvailable = errors.New("segment not available")
)

// BroadcastError is a classified failure with the station it happened on.
type BroadcastError struct {
	Type        ErrorType
	Severity    ErrorSeverity
	Station     string
	Message     string
	Cause       error
	Recoverable bool
}

// NewBroadcastError creates a BroadcastError with severity derived from the type.
func NewBroadcastError(errorType ErrorType, station, message string, cause error) *BroadcastError {
	severity, recoverable := errorTypeAttributes(errorType)
	return &BroadcastError{
		Type:        errorType,
		Severity:    severity,
		Station:     station,
		Message:     message,
		Cause:       cause,
		Recoverable: recoverable,
	}
}

// Error implements the error interface
func (e *BroadcastError) Error() string {
	prefix := e.Type.String()
	if e.Station != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Station)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *BroadcastError) Unwrap() error {
	return e.Cause
}

func errorTypeAttributes(errorType ErrorType) (ErrorSeverity, bool) {
	switch errorType {
	case ErrorTypeSupplier, ErrorTypeSegmenter:
		return SeverityError, true
	case ErrorTypeCapacity:
		return SeverityInfo, true
	case ErrorTypeNotFound:
		return SeverityInfo, true
	case ErrorTypeInvariant:
		return SeverityWarning, true
	case ErrorTypeLifecycle:
		return SeverityInfo, false
	default:
		return SeverityError, false
	}
}

// ClassifyError maps any error returned by this package onto a BroadcastError.
func ClassifyError(err error) *BroadcastError {
	if err == nil {
		return nil
	}

	var be *BroadcastError
	if errors.As(err, &be) {
		return be
	}

	switch {
	case errors.Is(err, ErrRegularQueueFull):
		return NewBroadcastError(ErrorTypeCapacity, "", "regular queue full", err)
	case errors.Is(err, ErrSegmentNotAvailable), errors.Is(err, ErrStationNotFound), errors.Is(err, ErrInvalidSegmentName):
		return NewBroadcastError(ErrorTypeNotFound, "", "not found", err)
	case errors.Is(err, ErrNoSegments), errors.Is(err, ErrNilSegment),
		errors.Is(err, ErrSequenceRegression), errors.Is(err, ErrNilFragment):
		return NewBroadcastError(ErrorTypeInvariant, "", "unusable content", err)
	case errors.Is(err, ErrStationStopped), errors.Is(err, ErrStationRunning):
		return NewBroadcastError(ErrorTypeLifecycle, "", "lifecycle misuse", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewBroadcastError(ErrorTypeSupplier, "", "operation timed out", err)
	default:
		return NewBroadcastError(ErrorTypeInternal, "", "unclassified failure", err)
	}
}

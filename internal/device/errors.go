package device

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred in the core
type ErrorType int

const (
	// ErrTypeLockTimeout indicates the state store guard was not acquired in time
	ErrTypeLockTimeout ErrorType = iota
	// ErrTypeBackpressure indicates the command queue stayed full past the enqueue timeout
	ErrTypeBackpressure
	// ErrTypeMalformedMessage indicates an inbound payload could not be parsed or
	// referenced an unknown method or target
	ErrTypeMalformedMessage
	// ErrTypeSensorInvalid indicates the sensor collaborator delivered a non-numeric reading
	ErrTypeSensorInvalid
	// ErrTypeActuationFailure indicates a physical write failed
	ErrTypeActuationFailure
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeLockTimeout:
		return "Lock Timeout"
	case ErrTypeBackpressure:
		return "Backpressure"
	case ErrTypeMalformedMessage:
		return "Malformed Message"
	case ErrTypeSensorInvalid:
		return "Sensor Invalid"
	case ErrTypeActuationFailure:
		return "Actuation Failure"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is the typed error returned by core components.
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same category, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is.
var (
	ErrLockTimeout      = &Error{Type: ErrTypeLockTimeout, Message: "state lock not acquired"}
	ErrBackpressure     = &Error{Type: ErrTypeBackpressure, Message: "command queue full"}
	ErrMalformedMessage = &Error{Type: ErrTypeMalformedMessage, Message: "malformed message"}
	ErrSensorInvalid    = &Error{Type: ErrTypeSensorInvalid, Message: "sensor reading invalid"}
	ErrActuationFailure = &Error{Type: ErrTypeActuationFailure, Message: "actuation failed"}
)

// NewLockTimeoutError creates a lock timeout error for the named operation
func NewLockTimeoutError(op string) *Error {
	return &Error{Type: ErrTypeLockTimeout, Message: op}
}

// NewBackpressureError creates a backpressure error
func NewBackpressureError(message string) *Error {
	return &Error{Type: ErrTypeBackpressure, Message: message}
}

// NewMalformedError creates a malformed message error
func NewMalformedError(message string, err error) *Error {
	return &Error{Type: ErrTypeMalformedMessage, Message: message, Err: err}
}

// NewSensorInvalidError creates a sensor invalid error
func NewSensorInvalidError(message string) *Error {
	return &Error{Type: ErrTypeSensorInvalid, Message: message}
}

// NewActuationError creates an actuation failure error wrapping the driver error
func NewActuationError(target ActuatorID, err error) *Error {
	return &Error{Type: ErrTypeActuationFailure, Message: fmt.Sprintf("write to %s failed", target), Err: err}
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsLockTimeout checks if an error is a lock timeout
func IsLockTimeout(err error) bool { return isType(err, ErrTypeLockTimeout) }

// IsBackpressure checks if an error is a backpressure error
func IsBackpressure(err error) bool { return isType(err, ErrTypeBackpressure) }

// IsMalformed checks if an error is a malformed message error
func IsMalformed(err error) bool { return isType(err, ErrTypeMalformedMessage) }

// IsSensorInvalid checks if an error is a sensor invalid error
func IsSensorInvalid(err error) bool { return isType(err, ErrTypeSensorInvalid) }

// IsActuationFailure checks if an error is an actuation failure
func IsActuationFailure(err error) bool { return isType(err, ErrTypeActuationFailure) }

// WireMessage returns the short error text sent back over the wire protocols
func WireMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Type {
	case ErrTypeLockTimeout, ErrTypeBackpressure:
		return "busy"
	case ErrTypeMalformedMessage:
		if e.Message == "" {
			return "malformed message"
		}
		return e.Message
	case ErrTypeActuationFailure:
		return "actuation failed"
	default:
		return e.Message
	}
}

package nodeclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the node refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeBusy indicates the node answered 503 because its store or queue was saturated
	ErrTypeBusy
	// ErrTypeRejected indicates the node refused the request as malformed
	ErrTypeRejected
	// ErrTypeHTTP indicates any other non-success status code
	ErrTypeHTTP
	// ErrTypeParse indicates the response body could not be decoded
	ErrTypeParse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeBusy:
		return "Node Busy"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// NodeError is returned by every Client call.
type NodeError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *NodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps transport failures onto error types. All network
// failures are retryable except DNS resolution.
func classifyNetworkError(message string, err error) *NodeError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	e := &NodeError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err):
		e.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		e.Type = ErrTypeDNS
		e.Retryable = false
	case errors.Is(err, syscall.ECONNREFUSED):
		e.Type = ErrTypeConnectionRefused
	}
	return e
}

// newStatusError converts a non-success status and the API error text.
func newStatusError(status int, text string) *NodeError {
	e := &NodeError{Type: ErrTypeHTTP, StatusCode: status, Message: text}
	switch {
	case status == http.StatusServiceUnavailable:
		e.Type = ErrTypeBusy
		e.Retryable = true
	case status == http.StatusBadRequest:
		e.Type = ErrTypeRejected
	case status >= 500:
		e.Retryable = true
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("unexpected status code: %d", status)
	}
	return e
}

func newParseError(message string, err error) *NodeError {
	return &NodeError{Type: ErrTypeParse, Message: message, Err: err}
}

func hasType(err error, types ...ErrorType) bool {
	var ne *NodeError
	if !errors.As(err, &ne) {
		return false
	}
	for _, t := range types {
		if ne.Type == t {
			return true
		}
	}
	return false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	return hasType(err, ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS)
}

// IsBusy checks if the node reported saturation.
func IsBusy(err error) bool {
	return hasType(err, ErrTypeBusy)
}

// IsRejected checks if the node refused the request as malformed.
func IsRejected(err error) bool {
	return hasType(err, ErrTypeRejected)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	return hasType(err, ErrTypeParse)
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return false
}

// TroubleshootingHint returns operator advice for an error.
func TroubleshootingHint(err error) string {
	var ne *NodeError
	if !errors.As(err, &ne) {
		return "An unexpected error occurred. Please try again."
	}

	switch ne.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The node did not respond in time.",
			"Troubleshooting:",
			"  • Check that the node is powered on and running climanode",
			"  • Try increasing --timeout",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The node refused the connection.",
			"Troubleshooting:",
			"  • The UI server may be restarting; the supervisor brings it back",
			"  • Verify the port (ui.port, default 80)",
		}, "\n")
	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the node hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead, or run 'climanode-cfg discover'",
		}, "\n")
	case ErrTypeBusy:
		return "The node is saturated (store lock or command queue). Retry shortly."
	case ErrTypeRejected:
		return "The node rejected the request. Check the target and state values."
	case ErrTypeParse:
		return "Failed to parse the node's response. Check that client and node versions match."
	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Ensure you're on the same network as the node",
		}, "\n")
	default:
		return "An error occurred. Please check the error message for details."
	}
}

package nodeclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
)

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{http.StatusServiceUnavailable, ErrTypeBusy, true},
		{http.StatusBadRequest, ErrTypeRejected, false},
		{http.StatusInternalServerError, ErrTypeHTTP, true},
		{http.StatusNotFound, ErrTypeHTTP, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := newStatusError(tt.status, "")
			if err.Type != tt.wantType || err.Retryable != tt.retryable {
				t.Errorf("got %v retryable=%v", err.Type, err.Retryable)
			}
			if err.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrTypeConnectionRefused, true},
		{"dns", &net.DNSError{Name: "nowhere.invalid", Err: "no such host"}, ErrTypeDNS, false},
		{"generic", errors.New("boom"), ErrTypeNetwork, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNetworkError("request failed", tt.err)
			if got.Type != tt.wantType || got.Retryable != tt.retryable {
				t.Errorf("got %v retryable=%v", got.Type, got.Retryable)
			}
			if !IsNetworkError(got) {
				t.Error("IsNetworkError = false")
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("status: %w", classifyNetworkError("request failed", cause))
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !IsRetryable(err) {
		t.Error("wrapped error lost retryability")
	}
	if IsRetryable(cause) {
		t.Error("plain errors are not retryable")
	}
}

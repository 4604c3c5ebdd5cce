package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransientNetwork covers connectivity failures and timeouts.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrDataShape means the payload was undecodable or missing required fields.
	ErrDataShape = errors.New("unexpected response shape")
)

// RemoteError is a non-2xx reply or an API-level failure payload.
type RemoteError struct {
	Source  string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error (%d)", e.Source, e.Status)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Source, e.Status, e.Message)
}

// Retryable reports whether repeating the request could succeed.
func (e *RemoteError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether err is a network-level failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// AsRemote extracts a RemoteError from err's chain.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Retryable reports whether a fetch error is worth retrying.
func Retryable(err error) bool {
	if IsTransient(err) {
		return true
	}
	if re, ok := AsRemote(err); ok {
		return re.Retryable()
	}
	return false
}

// classifyTransport wraps errors from http.Client.Do. Anything the client
// returns is a transport failure (dial, TLS, timeout); caller cancellation is
// passed through untouched.
func classifyTransport(source string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", source, ErrTransientNetwork, err)
}

func dataShape(source, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", source, ErrDataShape, fmt.Sprintf(format, args...))
}

type errorResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Status  struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

type errorInfo struct {
	Info string `json:"info"`
	Type string `json:"type"`
}

func parseHTTPError(source string, status int, payload []byte) error {
	re := &RemoteError{Source: source, Status: status}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		switch {
		case apiErr.Status.ErrorMessage != "":
			re.Message = apiErr.Status.ErrorMessage
		case apiErr.Message != "":
			re.Message = apiErr.Message
		case len(apiErr.Error) > 0:
			re.Message = errorMessage(apiErr.Error)
		}
		if re.Message != "" {
			return re
		}
	}
	if len(payload) > 0 {
		re.Message = strings.TrimSpace(string(payload))
	}
	return re
}

// errorMessage accepts both {"error":"text"} and {"error":{"info":"text"}}.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var info errorInfo
	if err := json.Unmarshal(raw, &info); err == nil {
		if info.Info != "" {
			return info.Info
		}
		return info.Type
	}
	return ""
}

// Package account is a client for the social-media account service: login,
// session probing, and publishing photos and videos. It never persists
// anything itself; session bundles are handed to internal/session.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tonimelisma/reelpost/internal/session"
)

// Sentinel errors. Use errors.Is(err, account.ErrLoginRequired) to check.
var (
	ErrBadRequest         = errors.New("account: bad request")
	ErrLoginRequired      = errors.New("account: login required")
	ErrBadCredentials     = errors.New("account: invalid credentials")
	ErrCheckpointRequired = errors.New("account: checkpoint challenge required")
	ErrNotFound           = errors.New("account: not found")
	ErrThrottled          = errors.New("account: throttled")
	ErrServerError        = errors.New("account: server error")
)

// APIError carries the HTTP status and the service's own error message.
// Message is what the user sees; Body is kept for debug logging.
type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("account: HTTP %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("account: HTTP %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorEnvelope is the JSON shape of a failed API response.
type errorEnvelope struct {
	Status             string `json:"status"`
	Message            string `json:"message"`
	ErrorType          string `json:"error_type"`
	InvalidCredentials bool   `json:"invalid_credentials"`
	CheckpointURL      string `json:"checkpoint_url"`
}

// newAPIError decodes the response body if it is JSON and classifies the
// failure. Message falls back to the raw body when no message is present.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		apiErr.Message = http.StatusText(status)
		apiErr.Err = classifyStatus(status)

		return apiErr
	}

	apiErr.Message = env.Message
	apiErr.ErrorType = env.ErrorType
	apiErr.Err = classify(status, &env)

	return apiErr
}

// classify maps an error envelope to a sentinel. The message and error_type
// fields take precedence over the status code because the service reports
// most failures as 400.
func classify(status int, env *errorEnvelope) error {
	switch {
	case env.Message == "checkpoint_required" || env.ErrorType == "checkpoint_challenge_required" ||
		env.CheckpointURL != "":
		return ErrCheckpointRequired
	case env.InvalidCredentials || env.ErrorType == "bad_password" || env.ErrorType == "invalid_user":
		return ErrBadCredentials
	case env.Message == "login_required":
		return loginRequired()
	}

	return classifyStatus(status)
}

// loginRequired wraps session.ErrExpired so the session cache recognizes a
// rejected bundle without importing this package.
func loginRequired() error {
	return fmt.Errorf("%w (%w)", ErrLoginRequired, session.ErrExpired)
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return loginRequired()
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

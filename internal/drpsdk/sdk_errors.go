package drpsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	// sdk common
	ErrNoServerURL    = errors.New("sdk: server url missing")
	ErrNoRefreshToken = errors.New("sdk: refresh token missing")
	ErrFileNotFound   = errors.New("sdk: file not found")

	// auth
	ErrInvalidCredentials = errors.New("sdk: invalid credentials")

	// drops
	ErrKeyNotFound       = errors.New("sdk: key not found")
	ErrKeyConflict       = errors.New("sdk: key owned by another account")
	ErrServerUnavailable = errors.New("sdk: server unavailable")
)

// APIError is the error body the drp server returns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError folds transport failures and API error responses into the
// sentinel taxonomy above.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		if errors.Is(requestErr, context.Canceled) ||
			errors.Is(requestErr, context.DeadlineExceeded) ||
			errors.Is(requestErr, ErrInvalidCredentials) ||
			errors.Is(requestErr, ErrServerUnavailable) {
			return fmt.Errorf("%s: %w", operation, requestErr)
		}
		// connection resets, DNS failures and friends are retryable
		return fmt.Errorf("%s: %w: %v", operation, ErrServerUnavailable, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	msg := resp.Status
	if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Message != "" {
		msg = apiErr.Message
	}

	code := resp.StatusCode
	switch {
	case code == 404:
		return fmt.Errorf("%s: %w", operation, ErrKeyNotFound)
	case code == 409:
		return fmt.Errorf("%s: %w: %s", operation, ErrKeyConflict, msg)
	case code == 401 || code == 403:
		return fmt.Errorf("%s: %w: %s", operation, ErrInvalidCredentials, msg)
	case code == 429 || code >= 500:
		return fmt.Errorf("%s: %w: %s", operation, ErrServerUnavailable, msg)
	default:
		return fmt.Errorf("%s: api error %d: %s", operation, code, msg)
	}
}

package core

import "fmt"

// AuthError is returned when the credential exchange is rejected, or when a
// call still fails authentication after one token refresh. It aborts the run:
// there is no valid way to proceed without a token.
type AuthError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "authentication error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: authentication failed: status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: authentication failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: authentication failed", e.Op)
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransientError is returned when a call exhausted its retry budget against
// 5xx responses, network errors, or malformed bodies. The last underlying
// cause is attached.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	if e == nil {
		return "transient error"
	}
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RequestError is returned for non-auth 4xx responses. The request itself is
// malformed or rejected, so retrying cannot help.
//
// Body holds the response body bytes and must never include credentials.
type RequestError struct {
	StatusCode int
	Body       []byte
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request error"
	}
	return fmt.Sprintf("request rejected: status %d: %s", e.StatusCode, string(e.Body))
}

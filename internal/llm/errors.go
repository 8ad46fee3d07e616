package llm

import "fmt"

// AuthError reports a missing or rejected API credential.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// RateLimitError reports upstream throttling.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// UpstreamError covers every other completion failure. The upstream
// message is preserved verbatim so handlers can pass it through.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion failed: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

package relay

import "fmt"

// AuthError indicates the server rejected the request with 401. The relay
// never refreshes credentials itself; the caller must obtain a new token.
type AuthError struct{}

func (e *AuthError) Error() string {
	return "authentication failed"
}

// ServerError indicates the server answered with a non-2xx status other than
// 401. Message carries the server-supplied error when one was present.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

// NetworkError indicates the request was sent but no response arrived.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("no response from server: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RequestError indicates the request could not be constructed or sent at all.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

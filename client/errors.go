package client

import "fmt"

// Error codes the transport attaches when it cannot produce a more
// specific one.
const (
	CodeNetworkError = "NETWORK_ERROR"
)

// Forced-logout codes a server 401 may carry. Any of them means the
// stored token is dead and client state must be torn down.
const (
	CodeSessionTerminated = "SESSION_TERMINATED"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeUserInactive      = "USER_INACTIVE"
)

var forcedLogoutCodes = map[string]bool{
	CodeSessionTerminated: true,
	CodeSessionExpired:    true,
	CodeTokenExpired:      true,
	CodeInvalidToken:      true,
	CodeUserInactive:      true,
}

// IsForcedLogoutCode reports whether code is one of the five
// session-invalidation codes.
func IsForcedLogoutCode(code string) bool {
	return forcedLogoutCodes[code]
}

// APIError is the normalized failure shape every transport call
// returns. Status is zero for errors that never reached the server.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func networkError(err error) *APIError {
	return &APIError{Code: CodeNetworkError, Message: err.Error()}
}

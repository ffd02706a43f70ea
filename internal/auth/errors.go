package auth

import "errors"

var (
	// ErrNotAuthenticated is returned when no valid session is present.
	// HTTP handlers map it to a redirect to the login page.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned when a valid session lacks the required
	// role. HTTP handlers map it to an access-denied response, never a
	// login redirect.
	ErrUnauthorized = errors.New("insufficient role")
)

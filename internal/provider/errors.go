package provider

import (
	"errors"
	"fmt"
)

// AuthorizationError indicates an interactive authorization that did not
// produce a token: the provider returned an explicit error, or the consent
// surface closed without delivering an access token. User cancellation and
// consent denial are indistinguishable in the implicit flow, so both
// surface as this error.
type AuthorizationError struct {
	ProviderID string
	Reason     string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed (%s): %s", e.ProviderID, e.Reason)
}

// IsAuthorizationError reports whether err (or any error in its chain) is
// an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// APIError is a non-success HTTP response from a provider's REST API.
type APIError struct {
	ProviderID string
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api request failed: %s", e.ProviderID, e.Status)
}

// ErrProviderNotFound is returned by Registry.Get for an unknown provider
// id. A lookup miss is a configuration error, never silently ignored.
var ErrProviderNotFound = errors.New("provider not found")

// ErrAccountNotFound is returned when a logout or open-mail request names
// an email that is not in the stored account list.
var ErrAccountNotFound = errors.New("account not found")

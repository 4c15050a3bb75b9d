// Package mail implements the provider-specific send and token-refresh
// clients for the prescription delivery pipeline. Two providers are
// supported; they behave like Gmail's raw-message API and Microsoft Graph's
// sendMail API.
package mail

import (
	"context"
	"errors"
	"fmt"
)

// Message is one outbound email with the rendered prescription attached.
type Message struct {
	From           string
	To             string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// Sender delivers a message through a provider's send API using a bearer
// token. Implementations tag 401 responses as *AuthError so the dispatcher
// can run its refresh-and-retry cycle.
type Sender interface {
	Send(ctx context.Context, accessToken string, msg Message) error
}

// RefreshedTokens is the outcome of a refresh-token exchange. RefreshToken is
// empty when the provider did not rotate it; callers must then retain the
// previous one.
type RefreshedTokens struct {
	AccessToken  string
	RefreshToken string
}

// TokenRefresher exchanges a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (RefreshedTokens, error)
}

// AuthError marks a provider send rejected with HTTP 401. It is the only
// send failure the dispatcher retries.
type AuthError struct {
	Provider string
	Body     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mail: %s rejected token (status 401): %s", e.Provider, e.Body)
}

// IsAuthError reports whether err is a provider authorization failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ErrRefreshFailed indicates the provider rejected the refresh-token
// exchange; the user must reconnect their email account.
var ErrRefreshFailed = errors.New("mail: token refresh failed")

// sendStatusError maps a non-2xx send response to the pipeline taxonomy.
func sendStatusError(provider string, status int, body string) error {
	switch status {
	case 401:
		return &AuthError{Provider: provider, Body: body}
	case 403:
		return fmt.Errorf("mail: %s permissions insufficient (status 403): %s", provider, body)
	default:
		return fmt.Errorf("mail: %s send failed (status %d): %s", provider, status, body)
	}
}

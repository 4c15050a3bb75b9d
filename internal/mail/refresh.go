package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veldmed/practice-platform/pkg/logging"
)

var refreshTracer = otel.Tracer("veldmed.internal.mail.refresh")

// OAuthConfig holds one provider's token-endpoint credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scope        string
}

// GoogleOAuthConfig returns the refresh configuration for Gmail connections.
func GoogleOAuthConfig(clientID, clientSecret string) OAuthConfig {
	return OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://oauth2.googleapis.com/token",
	}
}

// MicrosoftOAuthConfig returns the refresh configuration for Outlook
// connections.
func MicrosoftOAuthConfig(clientID, clientSecret string) OAuthConfig {
	return OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		Scope:        "https://graph.microsoft.com/Mail.Send offline_access",
	}
}

// Refresher performs form-encoded refresh-token exchanges against a
// provider's OAuth token endpoint.
type Refresher struct {
	cfg        OAuthConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRefresher builds a refresher for one provider.
func NewRefresher(cfg OAuthConfig, httpClient *http.Client, logger *logging.Logger) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Refresher{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ TokenRefresher = (*Refresher)(nil)

// Refresh exchanges the refresh token for new credentials. Missing client
// credentials are a configuration error and fail before any network call.
// The provider may omit a rotated refresh token; RefreshedTokens.RefreshToken
// is empty in that case.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (RefreshedTokens, error) {
	if refreshToken == "" {
		return RefreshedTokens{}, errors.New("mail: refresh token required")
	}
	if r.cfg.ClientID == "" || r.cfg.ClientSecret == "" {
		return RefreshedTokens{}, errors.New("mail: oauth client credentials not configured")
	}

	ctx, span := refreshTracer.Start(ctx, "mail.oauth.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("veldmed.token_url", r.cfg.TokenURL))

	form := url.Values{}
	form.Set("client_id", r.cfg.ClientID)
	form.Set("client_secret", r.cfg.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	if r.cfg.Scope != "" {
		form.Set("scope", r.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return RefreshedTokens{}, fmt.Errorf("mail: failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RefreshedTokens{}, fmt.Errorf("mail: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return RefreshedTokens{}, fmt.Errorf("%w (status %d): %s", ErrRefreshFailed, resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return RefreshedTokens{}, fmt.Errorf("mail: failed to decode refresh response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return RefreshedTokens{}, fmt.Errorf("%w: provider returned no access token", ErrRefreshFailed)
	}

	r.logger.Info("access token refreshed", "rotated_refresh_token", tokenResp.RefreshToken != "")
	return RefreshedTokens{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}

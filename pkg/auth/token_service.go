package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"golang.org/x/oauth2"
)

// TokenService fetches access tokens from a remote token management service.
// Tokens are looked up per account and platform.
type TokenService struct {
	baseURL  string
	apiKey   string
	platform string
	client   *http.Client
}

// TokenData is the credential block returned by the token service
type TokenData struct {
	Token         string `json:"token"`
	RefreshToken  string `json:"refreshToken"`
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	SetToExpireOn string `json:"setToExpireOn"`
	IsExpired     bool   `json:"isExpired"`
}

// AccountToken is a single token entry for an account
type AccountToken struct {
	TokenData     TokenData `json:"tokenData"`
	TokenUID      string    `json:"tokenUID"`
	IsMasterToken bool      `json:"isMasterToken"`
	IsPrimary     bool      `json:"isPrimary"`
}

// TokenResponse represents the API response structure
type TokenResponse struct {
	Success bool           `json:"success"`
	Data    []AccountToken `json:"data"`
}

// Credentials are the usable parts of a token entry
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	ExpiresAt    time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithPlatform sets the platform query parameter (default "API").
func WithPlatform(platform string) TokenServiceOption {
	return func(s *TokenService) { s.platform = platform }
}

// WithHTTPClient replaces the HTTP client used for token lookups.
func WithHTTPClient(c *http.Client) TokenServiceOption {
	return func(s *TokenService) { s.client = c }
}

// NewTokenService creates a token service client
func NewTokenService(baseURL, apiKey string, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		platform: "API",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the primary credentials of accountID.
func (s *TokenService) Fetch(ctx context.Context, accountID string) (*Credentials, error) {
	endpoint := fmt.Sprintf("%s/v1/api/account/%s/tokens?platform=%s",
		s.baseURL, url.PathEscape(accountID), url.QueryEscape(s.platform))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create token request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach token service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeAuthentication, "token service returned status %d", resp.StatusCode).
			WithDetail("status_code", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := jsonpool.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode token response")
	}
	if !tokenResp.Success || len(tokenResp.Data) == 0 {
		return nil, errors.New(errors.ErrorTypeAuthentication, "no tokens found for account").
			WithDetail("account_id", accountID)
	}

	token := tokenResp.Data[0]
	for _, t := range tokenResp.Data {
		if t.IsPrimary {
			token = t
			break
		}
	}

	creds := &Credentials{
		AccessToken:  token.TokenData.Token,
		RefreshToken: token.TokenData.RefreshToken,
		ClientID:     token.TokenData.ClientID,
		ClientSecret: token.TokenData.ClientSecret,
	}
	if token.TokenData.SetToExpireOn != "" {
		expiresAt, err := time.Parse(time.RFC3339, token.TokenData.SetToExpireOn)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse expiration time")
		}
		creds.ExpiresAt = expiresAt
	}
	return creds, nil
}

// Token fetches the account's primary credentials as a bearer token. The
// lookup is bounded by ctx.
func (s *TokenService) Token(ctx context.Context, accountID string) (*oauth2.Token, error) {
	creds, err := s.Fetch(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.ExpiresAt,
	}, nil
}

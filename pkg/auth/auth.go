// Package auth normalizes backend authentication for connectors.
//
// Static credentials (API keys and bearer tokens) are applied while a call is
// being formatted, which keeps request formatting free of I/O. Schemes that
// need the outgoing request itself or a token fetch (basic and oauth) are
// applied by Authorize just before the call is sent.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ajitpratap0/mcpbridge/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Scheme identifies an authentication method
type Scheme string

const (
	SchemeNone   Scheme = "none"
	SchemeAPIKey Scheme = "api_key"
	SchemeBasic  Scheme = "basic"
	SchemeBearer Scheme = "bearer"
	SchemeOAuth  Scheme = "oauth"
)

// KeyLocation is where an API key is sent
type KeyLocation string

const (
	KeyInHeader KeyLocation = "header"
	KeyInQuery  KeyLocation = "query"
)

// DefaultKeyName is used when an api_key config names no key
const DefaultKeyName = "api_key"

// Config describes how a connector authenticates. Only the fields relevant
// to Scheme are read.
type Config struct {
	Scheme Scheme `yaml:"scheme" json:"scheme"`

	// api_key
	KeyName     string      `yaml:"key_name" json:"key_name,omitempty"`
	KeyValue    string      `yaml:"key_value" json:"-"`
	KeyLocation KeyLocation `yaml:"key_location" json:"key_location,omitempty"`

	// basic
	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"-"`

	// bearer, or a static oauth access token
	Token string `yaml:"token" json:"-"`

	// oauth client credentials flow
	TokenURL     string   `yaml:"token_url" json:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret" json:"-"`
	Scopes       []string `yaml:"scopes" json:"scopes,omitempty"`

	// oauth tokens issued by a remote token service
	TokenServiceURL string `yaml:"token_service_url" json:"token_service_url,omitempty"`
	TokenServiceKey string `yaml:"token_service_key" json:"-"`
	AccountID       string `yaml:"account_id" json:"account_id,omitempty"`

	// TokenSource overrides every other oauth setting when set
	TokenSource oauth2.TokenSource `yaml:"-" json:"-"`
}

// Authenticator applies a validated Config to outgoing calls. It is safe for
// concurrent use.
type Authenticator struct {
	cfg    Config
	tokens *tokenCache
}

// None returns an authenticator that leaves calls untouched.
func None() *Authenticator {
	return &Authenticator{cfg: Config{Scheme: SchemeNone}}
}

// New validates cfg and prepares its token source, if any. Validation
// failures are config errors.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeNone
	}

	a := &Authenticator{cfg: cfg}
	switch cfg.Scheme {
	case SchemeNone:
	case SchemeAPIKey:
		if cfg.KeyValue == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "api_key auth requires key_value")
		}
		if a.cfg.KeyName == "" {
			a.cfg.KeyName = DefaultKeyName
		}
		switch cfg.KeyLocation {
		case "":
			a.cfg.KeyLocation = KeyInHeader
		case KeyInHeader, KeyInQuery:
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported api key location %q", cfg.KeyLocation)
		}
	case SchemeBasic:
		if cfg.Username == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "basic auth requires username")
		}
	case SchemeBearer:
		if cfg.Token == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "bearer auth requires token")
		}
	case SchemeOAuth:
		fetch, early, err := tokenFetcher(cfg)
		if err != nil {
			return nil, err
		}
		a.tokens = &tokenCache{fetch: fetch, early: early}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported auth scheme %q", cfg.Scheme)
	}
	return a, nil
}

// fetchFunc obtains a fresh token bounded by ctx
type fetchFunc func(ctx context.Context) (*oauth2.Token, error)

// tokenFetcher picks the token origin for cfg and how long before expiry a
// cached token is refreshed.
func tokenFetcher(cfg Config) (fetchFunc, time.Duration, error) {
	switch {
	case cfg.TokenSource != nil:
		return sourceFetcher(cfg.TokenSource), 0, nil
	case cfg.TokenURL != "":
		if cfg.ClientID == "" {
			return nil, 0, errors.New(errors.ErrorTypeConfig, "oauth client credentials require client_id")
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		return cc.Token, 0, nil
	case cfg.TokenServiceURL != "":
		if cfg.AccountID == "" {
			return nil, 0, errors.New(errors.ErrorTypeConfig, "oauth token service requires account_id")
		}
		svc := NewTokenService(cfg.TokenServiceURL, cfg.TokenServiceKey)
		return func(ctx context.Context) (*oauth2.Token, error) {
			return svc.Token(ctx, cfg.AccountID)
		}, 5 * time.Minute, nil
	case cfg.Token != "":
		tok := &oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}
		return func(context.Context) (*oauth2.Token, error) { return tok, nil }, 0, nil
	default:
		return nil, 0, errors.New(errors.ErrorTypeConfig,
			"oauth auth requires a token, token_url, token_service_url or token source")
	}
}

// sourceFetcher bounds a caller-supplied TokenSource, which takes no
// context, by running it in its own goroutine.
func sourceFetcher(src oauth2.TokenSource) fetchFunc {
	return func(ctx context.Context) (*oauth2.Token, error) {
		type result struct {
			tok *oauth2.Token
			err error
		}
		done := make(chan result, 1)
		go func() {
			tok, err := src.Token()
			done <- result{tok, err}
		}()
		select {
		case r := <-done:
			return r.tok, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// tokenCache keeps the last token and refetches it with the caller's
// context once it is within early of expiring.
type tokenCache struct {
	fetch fetchFunc
	early time.Duration

	mu  sync.Mutex
	tok *oauth2.Token
}

func (c *tokenCache) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	tok := c.tok
	c.mu.Unlock()
	if fresh(tok, c.early) {
		return tok, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, stderrors.New("token source returned an empty token")
	}

	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
	return tok, nil
}

func fresh(tok *oauth2.Token, early time.Duration) bool {
	if tok == nil || !tok.Valid() {
		return false
	}
	return tok.Expiry.IsZero() || time.Until(tok.Expiry) > early
}

// Scheme returns the configured scheme
func (a *Authenticator) Scheme() Scheme {
	if a == nil {
		return SchemeNone
	}
	return a.cfg.Scheme
}

// Config returns a copy of the configuration
func (a *Authenticator) Config() Config {
	return a.cfg
}

// ApplyStatic adds credentials that need no I/O: API keys and bearer tokens.
func (a *Authenticator) ApplyStatic(header http.Header, query url.Values) {
	if a == nil {
		return
	}
	switch a.cfg.Scheme {
	case SchemeAPIKey:
		if a.cfg.KeyLocation == KeyInQuery {
			query.Set(a.cfg.KeyName, a.cfg.KeyValue)
		} else {
			header.Set(a.cfg.KeyName, a.cfg.KeyValue)
		}
	case SchemeBearer:
		header.Set("Authorization", "Bearer "+a.cfg.Token)
	}
}

// Authorize adds execution-time credentials to req. Token fetches are bound
// to req's context: a fetch cut short by its deadline is a timeout error, one
// cut short by cancellation a canceled error, and any other failure an
// authentication error.
func (a *Authenticator) Authorize(req *http.Request) error {
	if a == nil {
		return nil
	}
	switch a.cfg.Scheme {
	case SchemeBasic:
		req.SetBasicAuth(a.cfg.Username, a.cfg.Password)
	case SchemeOAuth:
		ctx := req.Context()
		tok, err := a.tokens.token(ctx)
		if err != nil {
			switch {
			case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
				return errors.Wrap(err, errors.ErrorTypeTimeout, "timed out obtaining oauth token")
			case stderrors.Is(ctx.Err(), context.Canceled):
				return errors.Wrap(err, errors.ErrorTypeCanceled, "canceled while obtaining oauth token")
			}
			return errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to obtain oauth token")
		}
		tok.SetAuthHeader(req)
	}
	return nil
}

// Package auth obtains vendor access tokens with the OAuth2 password grant.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

// Config holds the token endpoint settings. Secrets come from the
// environment only.
type Config struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Password       string
	UsernamePrefix string
	Timeout        time.Duration
}

// PasswordGrant implements domain.TokenIssuer
type PasswordGrant struct {
	oauth      oauth2.Config
	password   string
	prefix     string
	httpClient *http.Client
}

// NewPasswordGrant creates a token issuer
func NewPasswordGrant(config *Config) *PasswordGrant {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PasswordGrant{
		oauth: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		password:   config.Password,
		prefix:     config.UsernamePrefix,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Username is the vendor login for org
func (g *PasswordGrant) Username(org string) string {
	return g.prefix + strings.ToLower(strings.TrimSpace(org))
}

// Token logs in as the organization's service user
func (g *PasswordGrant) Token(ctx context.Context, org string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	tok, err := g.oauth.PasswordCredentialsToken(ctx, g.Username(org), g.password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if stderrors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%w: %s", domain.ErrAuthFailed, describe(retrieveErr))
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token received", domain.ErrAuthFailed)
	}
	return tok.AccessToken, nil
}

func describe(err *oauth2.RetrieveError) string {
	switch {
	case err.ErrorDescription != "":
		return err.ErrorDescription
	case err.ErrorCode != "":
		return err.ErrorCode
	case err.Response != nil:
		return fmt.Sprintf("token endpoint returned %d", err.Response.StatusCode)
	}
	return err.Error()
}

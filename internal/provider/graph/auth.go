package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenExpiryBuffer is the time before actual expiry when we consider a token expired.
// This prevents using a token that is about to expire during a request.
const tokenExpiryBuffer = 5 * time.Minute

// graphScope requests every application permission granted to the client.
const graphScope = "https://graph.microsoft.com/.default"

// tokenCache hands out OAuth2 client credentials tokens, reusing a token
// until it is within tokenExpiryBuffer of expiring.
type tokenCache struct {
	mu         sync.Mutex
	config     *clientcredentials.Config
	httpClient *http.Client
	source     oauth2.TokenSource
}

// newTokenCache creates a new token cache for the given OAuth2 client credentials.
func newTokenCache(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenCache {
	tc := &tokenCache{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
	tc.source = tc.newSource()
	return tc
}

func (tc *tokenCache) newSource() oauth2.TokenSource {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tc.httpClient)
	return oauth2.ReuseTokenSourceWithExpiry(nil, tc.config.TokenSource(ctx), tokenExpiryBuffer)
}

// Token returns a valid access token, refreshing it if necessary.
// This method is safe for concurrent use.
func (tc *tokenCache) Token() (string, error) {
	tc.mu.Lock()
	src := tc.source
	tc.mu.Unlock()

	return accessToken(src)
}

// ForceRefresh discards the current token and acquires a new one.
// This is used when a 401 response indicates the token is invalid.
func (tc *tokenCache) ForceRefresh() (string, error) {
	tc.mu.Lock()
	tc.source = tc.newSource()
	src := tc.source
	tc.mu.Unlock()

	return accessToken(src)
}

func accessToken(src oauth2.TokenSource) (string, error) {
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", fmt.Errorf("token endpoint returned %d: %w", rerr.Response.StatusCode, err)
		}
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	return tok.AccessToken, nil
}

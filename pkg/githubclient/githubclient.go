// Package githubclient builds authenticated go-github clients for a GitHub
// integration: a personal access token, a GitHub App installation, or
// anonymous access.
package githubclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"

	"github.com/tilsley/scmreader/pkg/integration"
)

const defaultAPIURL = "https://api.github.com"

// New picks the auth mode from the integration config: App credentials win
// over a token; with neither the client is anonymous. base is the transport
// the auth layer wraps; nil means http.DefaultTransport.
func New(i *integration.GitHubIntegration, base http.RoundTripper) (*gogithub.Client, error) {
	cfg := i.Config()
	if base == nil {
		base = http.DefaultTransport
	}
	switch {
	case cfg.AppID != 0:
		return NewAppClient(cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath, cfg.APIBaseURL, base)
	default:
		return NewTokenClient(cfg.Token, cfg.APIBaseURL, base), nil
	}
}

// NewTokenClient creates a client authenticated with a personal access token.
// An empty token yields an anonymous client.
func NewTokenClient(token, baseURL string, base http.RoundTripper) *gogithub.Client {
	httpClient := &http.Client{Transport: base}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, ts)
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// privateKeyPath is the path to the app's PEM private key.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string, base http.RoundTripper) (*gogithub.Client, error) {
	apiURL := baseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	tr, err := ghinstallation.NewKeyFromFile(base, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	tr.BaseURL = strings.TrimRight(apiURL, "/")

	c := gogithub.NewClient(&http.Client{Transport: tr})
	applyBaseURL(c, baseURL)
	return c, nil
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}

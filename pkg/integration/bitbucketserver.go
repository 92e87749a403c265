// Package integration holds per-host integration settings for the supported
// source-control providers and the pure URL and header derivations the
// readers use to talk to them.
package integration

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tilsley/scmreader/pkg/giturl"
)

// BitbucketServerConfig describes one Bitbucket Server instance.
type BitbucketServerConfig struct {
	// Host is the host[:port] of the instance, without scheme.
	Host string `yaml:"host" validate:"required,hostname_port|hostname"`
	// APIBaseURL is the REST root, e.g. https://bitbucket.acme.io/rest/api/1.0.
	// Defaults to https://{host}/rest/api/1.0.
	APIBaseURL string `yaml:"apiBaseUrl" validate:"omitempty,url"`
	// Token is an HTTP access token sent as a bearer token.
	Token string `yaml:"token"`
	// Username and Password enable basic auth when no token is set.
	Username string `yaml:"username" validate:"required_with=Password"`
	Password string `yaml:"password" validate:"required_with=Username"`
}

// BitbucketServerIntegration is a resolved, immutable Bitbucket Server config.
type BitbucketServerIntegration struct {
	config BitbucketServerConfig
}

// NewBitbucketServerIntegration applies defaults to cfg and returns the
// integration. The host must not carry a scheme or path.
func NewBitbucketServerIntegration(cfg BitbucketServerConfig) (*BitbucketServerIntegration, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("bitbucket server integration: host is required")
	}
	if strings.Contains(cfg.Host, "/") {
		return nil, fmt.Errorf("bitbucket server integration: host %q must not contain a scheme or path", cfg.Host)
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://" + cfg.Host + "/rest/api/1.0"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &BitbucketServerIntegration{config: cfg}, nil
}

// Config returns a copy of the resolved configuration.
func (i *BitbucketServerIntegration) Config() BitbucketServerConfig {
	return i.config
}

// Host returns the configured host.
func (i *BitbucketServerIntegration) Host() string {
	return i.config.Host
}

// ResolveURL resolves a (possibly repository-absolute) path against base.
func (i *BitbucketServerIntegration) ResolveURL(target, base string) (string, error) {
	return ResolveURL(target, base)
}

// BitbucketServerFileFetchURL maps a browse URL onto the raw content endpoint:
//
//	{apiBaseUrl}/projects/{project}/repos/{repo}/raw/{path}[?at={ref}]
func BitbucketServerFileFetchURL(rawURL string, cfg BitbucketServerConfig) (string, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return "", err
	}
	p := strings.TrimPrefix(u.Filepath, "/")
	if p == "" {
		return "", &giturl.Error{URL: rawURL, Reason: "does not point at a file"}
	}

	out, err := repoEndpoint(cfg, u, "raw", p)
	if err != nil {
		return "", err
	}
	if u.Ref != "" {
		q := out.Query()
		q.Set("at", u.Ref)
		out.RawQuery = q.Encode()
	}
	return out.String(), nil
}

// BitbucketServerDownloadURL maps a tree URL onto the archive endpoint. The
// archive is always gzip-compressed and wrapped in a {project}-{repo}/ prefix.
func BitbucketServerDownloadURL(rawURL string, cfg BitbucketServerConfig) (string, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return "", err
	}
	out, err := repoEndpoint(cfg, u, "archive")
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("format", "tgz")
	q.Set("prefix", u.Owner+"-"+u.Name)
	if u.Ref != "" {
		q.Set("at", u.Ref)
	}
	if u.Filepath != "" {
		q.Set("path", u.Filepath)
	}
	out.RawQuery = q.Encode()
	return out.String(), nil
}

// BitbucketServerCommitsURL returns the commit history endpoint for the
// repository addressed by rawURL. The newest commit comes first.
func BitbucketServerCommitsURL(rawURL string, cfg BitbucketServerConfig) (string, error) {
	u, err := giturl.Parse(rawURL)
	if err != nil {
		return "", err
	}
	out, err := repoEndpoint(cfg, u, "commits")
	if err != nil {
		return "", err
	}
	if u.Ref != "" {
		out.RawQuery = url.Values{"until": {u.Ref}}.Encode()
	}
	return out.String(), nil
}

// BitbucketServerRequestOptions returns the headers every request to the
// instance carries.
func BitbucketServerRequestOptions(cfg BitbucketServerConfig) http.Header {
	req := &http.Request{Header: http.Header{}}
	switch {
	case cfg.Token != "":
		(&oauth2.Token{AccessToken: cfg.Token, TokenType: "bearer"}).SetAuthHeader(req)
	case cfg.Username != "" && cfg.Password != "":
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
	return req.Header
}

func repoEndpoint(cfg BitbucketServerConfig, u *giturl.URL, elem ...string) (*url.URL, error) {
	base := cfg.APIBaseURL
	if base == "" {
		base = "https://" + cfg.Host + "/rest/api/1.0"
	}
	out, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", base, err)
	}
	parts := append([]string{"projects", u.Owner, "repos", u.Name}, elem...)
	return out.JoinPath(parts...), nil
}

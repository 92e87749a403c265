package integration

import (
	"fmt"
	"strings"
)

const (
	githubHost       = "github.com"
	githubAPIBaseURL = "https://api.github.com"
)

// GitHubConfig describes one GitHub or GitHub Enterprise host.
type GitHubConfig struct {
	Host string `yaml:"host" validate:"required,hostname_port|hostname"`
	// APIBaseURL defaults to https://api.github.com for github.com and
	// https://{host}/api/v3 otherwise.
	APIBaseURL string `yaml:"apiBaseUrl" validate:"omitempty,url"`
	Token      string `yaml:"token"`
	// App credentials take precedence over Token when AppID is set.
	AppID          int64  `yaml:"appId"`
	InstallationID int64  `yaml:"installationId" validate:"required_with=AppID"`
	PrivateKeyPath string `yaml:"privateKeyPath" validate:"required_with=AppID"`
}

// GitHubIntegration is a resolved, immutable GitHub config.
type GitHubIntegration struct {
	config GitHubConfig
}

// NewGitHubIntegration applies defaults to cfg and returns the integration.
func NewGitHubIntegration(cfg GitHubConfig) (*GitHubIntegration, error) {
	if cfg.Host == "" {
		cfg.Host = githubHost
	}
	if strings.Contains(cfg.Host, "/") {
		return nil, fmt.Errorf("github integration: host %q must not contain a scheme or path", cfg.Host)
	}
	if cfg.APIBaseURL == "" {
		if cfg.Host == githubHost {
			cfg.APIBaseURL = githubAPIBaseURL
		} else {
			cfg.APIBaseURL = "https://" + cfg.Host + "/api/v3"
		}
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &GitHubIntegration{config: cfg}, nil
}

// Config returns a copy of the resolved configuration.
func (i *GitHubIntegration) Config() GitHubConfig {
	return i.config
}

// Host returns the configured host.
func (i *GitHubIntegration) Host() string {
	return i.config.Host
}

// Authed reports whether requests carry credentials.
func (i *GitHubIntegration) Authed() bool {
	return i.config.Token != "" || i.config.AppID != 0
}

// ResolveURL resolves a (possibly repository-absolute) path against base.
func (i *GitHubIntegration) ResolveURL(target, base string) (string, error) {
	return ResolveURL(target, base)
}

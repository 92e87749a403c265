package integration

import (
	"fmt"
	"net/url"
)

// ScmIntegrations is the set of configured integrations, grouped by provider.
type ScmIntegrations struct {
	BitbucketServer []*BitbucketServerIntegration
	GitHub          []*GitHubIntegration
}

// New resolves every provider config. Hosts must be unique per provider.
func New(bitbucketServer []BitbucketServerConfig, github []GitHubConfig) (*ScmIntegrations, error) {
	out := &ScmIntegrations{}

	seen := make(map[string]bool)
	for _, cfg := range bitbucketServer {
		i, err := NewBitbucketServerIntegration(cfg)
		if err != nil {
			return nil, err
		}
		if seen[i.Host()] {
			return nil, fmt.Errorf("duplicate bitbucket server integration for host %q", i.Host())
		}
		seen[i.Host()] = true
		out.BitbucketServer = append(out.BitbucketServer, i)
	}

	seen = make(map[string]bool)
	for _, cfg := range github {
		i, err := NewGitHubIntegration(cfg)
		if err != nil {
			return nil, err
		}
		if seen[i.Host()] {
			return nil, fmt.Errorf("duplicate github integration for host %q", i.Host())
		}
		seen[i.Host()] = true
		out.GitHub = append(out.GitHub, i)
	}
	return out, nil
}

// BitbucketServerByURL returns the Bitbucket Server integration whose host
// matches rawURL, or nil.
func (s *ScmIntegrations) BitbucketServerByURL(rawURL string) *BitbucketServerIntegration {
	host := hostOf(rawURL)
	for _, i := range s.BitbucketServer {
		if i.Host() == host {
			return i
		}
	}
	return nil
}

// GitHubByURL returns the GitHub integration whose host matches rawURL, or nil.
func (s *ScmIntegrations) GitHubByURL(rawURL string) *GitHubIntegration {
	host := hostOf(rawURL)
	for _, i := range s.GitHub {
		if i.Host() == host {
			return i
		}
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

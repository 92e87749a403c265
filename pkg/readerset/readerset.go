// Package readerset assembles the URL reader mux from a loaded config. The
// server and CLI share it.
package readerset

import (
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/tilsley/scmreader/pkg/config"
	"github.com/tilsley/scmreader/pkg/githubclient"
	"github.com/tilsley/scmreader/pkg/integration"
	"github.com/tilsley/scmreader/pkg/reading"
)

// Build registers one reader per configured host: Bitbucket Server first,
// then GitHub.
func Build(cfg *config.Config, deps reading.Deps) (*reading.URLReaders, error) {
	ints, err := cfg.ScmIntegrations()
	if err != nil {
		return nil, fmt.Errorf("integrations: %w", err)
	}

	var transport http.RoundTripper
	if deps.Client != nil {
		transport = deps.Client.Transport
	}

	return reading.NewURLReaders(reading.FactoryOptions{
		Integrations: ints,
		Deps:         deps,
		GitHubClient: func(i *integration.GitHubIntegration) (*gogithub.Client, error) {
			return githubclient.New(i, transport)
		},
	}, reading.BitbucketServerReaderFactory, reading.GitHubReaderFactory)
}

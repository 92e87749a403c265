package integration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/pkg/integration"
)

func TestNew_GroupsByProvider(t *testing.T) {
	s, err := integration.New(
		[]integration.BitbucketServerConfig{{Host: "bb.acme.io"}, {Host: "bb2.acme.io"}},
		[]integration.GitHubConfig{{}},
	)
	require.NoError(t, err)
	require.Len(t, s.BitbucketServer, 2)
	require.Len(t, s.GitHub, 1)
	assert.Equal(t, "github.com", s.GitHub[0].Host())
	assert.Equal(t, "https://api.github.com", s.GitHub[0].Config().APIBaseURL)
}

func TestNew_DuplicateHost(t *testing.T) {
	_, err := integration.New(
		[]integration.BitbucketServerConfig{{Host: "bb.acme.io"}, {Host: "bb.acme.io"}},
		nil,
	)
	assert.Error(t, err)
}

func TestByURL(t *testing.T) {
	s, err := integration.New(
		[]integration.BitbucketServerConfig{{Host: "bb.acme.io"}},
		[]integration.GitHubConfig{{Host: "ghe.acme.io"}},
	)
	require.NoError(t, err)

	assert.NotNil(t, s.BitbucketServerByURL("https://bb.acme.io/projects/P/repos/r"))
	assert.Nil(t, s.BitbucketServerByURL("https://other.io/projects/P/repos/r"))
	gh := s.GitHubByURL("https://ghe.acme.io/acme/api")
	require.NotNil(t, gh)
	assert.Equal(t, "https://ghe.acme.io/api/v3", gh.Config().APIBaseURL)
	assert.False(t, gh.Authed())
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name, target, base, want string
	}{
		{
			name:   "absolute url passes through",
			target: "https://elsewhere.io/x",
			base:   "https://bb.io/projects/P/repos/r/browse/a.md",
			want:   "https://elsewhere.io/x",
		},
		{
			name:   "repo-absolute path anchored at repo root",
			target: "/src/a/b.yaml",
			base:   "https://host/project/repo/src/**/*.yaml",
			want:   "https://host/project/repo/src/a/b.yaml",
		},
		{
			name:   "repo-absolute path keeps the ref query",
			target: "/docs/index.md",
			base:   "https://bb.io/projects/P/repos/r/browse/docs/**?at=main",
			want:   "https://bb.io/projects/P/repos/r/browse/docs/index.md?at=main",
		},
		{
			name:   "relative path resolves against the file",
			target: "../b.md",
			base:   "https://bb.io/projects/P/repos/r/browse/docs/x/a.md?at=main",
			want:   "https://bb.io/projects/P/repos/r/browse/docs/b.md?at=main",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := integration.ResolveURL(tt.target, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

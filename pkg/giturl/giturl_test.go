package giturl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/pkg/giturl"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want giturl.URL
	}{
		{
			name: "bitbucket server browse url with ref",
			in:   "https://bitbucket.acme.io/projects/PLAT/repos/gitops/browse/apps/catalog-info.yaml?at=refs/heads/main",
			want: giturl.URL{
				Host:         "bitbucket.acme.io",
				Owner:        "PLAT",
				Name:         "gitops",
				Ref:          "refs/heads/main",
				Filepath:     "apps/catalog-info.yaml",
				FilepathType: "browse",
				RootPath:     "/projects/PLAT/repos/gitops/browse",
			},
		},
		{
			name: "bitbucket server repo root under a context path",
			in:   "https://acme.io/bitbucket/projects/PLAT/repos/gitops",
			want: giturl.URL{
				Host:     "acme.io",
				Owner:    "PLAT",
				Name:     "gitops",
				RootPath: "/bitbucket/projects/PLAT/repos/gitops",
			},
		},
		{
			name: "github blob url",
			in:   "https://github.com/acme/billing-api/blob/main/charts/values.yaml",
			want: giturl.URL{
				Host:         "github.com",
				Owner:        "acme",
				Name:         "billing-api",
				Ref:          "main",
				Filepath:     "charts/values.yaml",
				FilepathType: "blob",
				RootPath:     "/acme/billing-api/blob/main",
			},
		},
		{
			name: "short form with glob",
			in:   "https://host/project/repo/src/**/*.yaml",
			want: giturl.URL{
				Host:     "host",
				Owner:    "project",
				Name:     "repo",
				Filepath: "src/**/*.yaml",
				RootPath: "/project/repo",
			},
		},
		{
			name: "clone url",
			in:   "https://bitbucket.acme.io/scm/plat/gitops.git",
			want: giturl.URL{
				Host:     "bitbucket.acme.io",
				Owner:    "plat",
				Name:     "gitops",
				RootPath: "/scm/plat/gitops.git",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := giturl.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{
		"ftp://host/a/b",
		"https:///a/b",
		"https://host/only-owner",
		"://bad",
	} {
		_, err := giturl.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFullName(t *testing.T) {
	u, err := giturl.Parse("https://host/projects/P/repos/r")
	require.NoError(t, err)
	assert.Equal(t, "P/r", u.FullName())
}

func TestStripFilepath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://host/project/repo/src/**/*.yaml", "https://host/project/repo"},
		{"https://host/project/repo/", "https://host/project/repo"},
		{
			"https://bb.io/projects/P/repos/r/browse/docs/**/*.md?at=main",
			"https://bb.io/projects/P/repos/r/browse?at=main",
		},
	}
	for _, tt := range tests {
		got, err := giturl.StripFilepath(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParse_ErrorsAreTyped(t *testing.T) {
	_, err := giturl.Parse("ftp://host/a/b")
	require.Error(t, err)
	assert.True(t, giturl.IsInvalid(err))
	assert.Contains(t, err.Error(), `unsupported scheme "ftp"`)
}

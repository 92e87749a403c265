package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/scmreader/pkg/config"
)

const sample = `
integrations:
  bitbucketServer:
    - host: bitbucket.acme.io
      token: ${TEST_BB_TOKEN}
    - host: bitbucket.internal:7990
      apiBaseUrl: http://bitbucket.internal:7990/rest/api/1.0
      username: svc
      password: hunter2
  github:
    - host: github.com
      token: ghp_x
`

func TestParse_ExpandsEnvAndBuildsIntegrations(t *testing.T) {
	t.Setenv("TEST_BB_TOKEN", "bb-secret")

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, cfg.Integrations.BitbucketServer, 2)
	assert.Equal(t, "bb-secret", cfg.Integrations.BitbucketServer[0].Token)

	ints, err := cfg.ScmIntegrations()
	require.NoError(t, err)
	require.Len(t, ints.BitbucketServer, 2)
	assert.Equal(t, "https://bitbucket.acme.io/rest/api/1.0", ints.BitbucketServer[0].Config().APIBaseURL)
	assert.Equal(t, "http://bitbucket.internal:7990/rest/api/1.0", ints.BitbucketServer[1].Config().APIBaseURL)
	require.Len(t, ints.GitHub, 1)
	assert.True(t, ints.GitHub[0].Authed())
}

func TestParse_Empty(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Integrations.BitbucketServer)
}

func TestParse_MissingHost(t *testing.T) {
	_, err := config.Parse([]byte("integrations:\n  bitbucketServer:\n    - token: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Host")
}

func TestParse_PasswordWithoutUsername(t *testing.T) {
	_, err := config.Parse([]byte("integrations:\n  bitbucketServer:\n    - host: h.io\n      password: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Username")
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := config.Parse([]byte("integrations:\n  gitlab: []\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scmreader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("integrations:\n  bitbucketServer:\n    - host: h.io\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "h.io", cfg.Integrations.BitbucketServer[0].Host)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	assert.Equal(t, config.DefaultPath, config.Path(""))

	t.Setenv(config.EnvPath, "/etc/scmreader.yaml")
	assert.Equal(t, "/etc/scmreader.yaml", config.Path(""))
	assert.Equal(t, "flag.yaml", config.Path("flag.yaml"))
}

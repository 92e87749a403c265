// Package config loads the integration file shared by the scmreader server
// and CLI.
//
// The file is YAML. ${VAR} references are expanded from the environment before
// parsing so tokens can stay out of the file:
//
//	integrations:
//	  bitbucketServer:
//	    - host: bitbucket.acme.io
//	      token: ${BITBUCKET_TOKEN}
//	  github:
//	    - host: github.com
//	      token: ${GITHUB_TOKEN}
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tilsley/scmreader/pkg/integration"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "SCMREADER_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath is set.
const DefaultPath = "scmreader.yaml"

// Config is the root of the config file.
type Config struct {
	Integrations Integrations `yaml:"integrations"`
}

// Integrations lists the per-provider host configs.
type Integrations struct {
	BitbucketServer []integration.BitbucketServerConfig `yaml:"bitbucketServer" validate:"dive"`
	GitHub          []integration.GitHubConfig          `yaml:"github" validate:"dive"`
}

// Path returns flagValue, else $SCMREADER_CONFIG, else DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(EnvPath); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads, expands and validates the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment references in raw, decodes it and validates the
// result. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return nil, fmt.Errorf("invalid %s: failed %q check", f.Namespace(), f.Tag())
		}
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &cfg, nil
}

// ScmIntegrations resolves the configured hosts.
func (c *Config) ScmIntegrations() (*integration.ScmIntegrations, error) {
	return integration.New(c.Integrations.BitbucketServer, c.Integrations.GitHub)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

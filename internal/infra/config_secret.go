package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig holds credentials kept out of the main config file
// (secrets/local.yaml, secrets/hosted.yaml). The auth token seeds the
// key-value store on first run; later logins overwrite it.
type SecretConfig struct {
	Auth struct {
		Token string `yaml:"token"`
		Email string `yaml:"email"`
	} `yaml:"auth"`
}

// LoadSecretConfig loads credentials from a separate yaml file.
// It returns error if file is missing (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	// Env var wins over the file
	if tok := os.Getenv("STOREFRONT_AUTH_TOKEN"); tok != "" {
		cfg.Auth.Token = tok
	}

	return &cfg, nil
}

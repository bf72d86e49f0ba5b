package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR points the suite at a running deployment, e.g.
	// "http://localhost:8080". Empty skips the suite.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	// E2E_DEBUG_JSON dumps full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// Accounts used by the scenarios. They are registered on first run
	// and reused afterwards.
	UserEmail    string `envconfig:"E2E_USER_EMAIL" default:"e2e-user@team-chat.local"`
	UserPassword string `envconfig:"E2E_USER_PASSWORD" default:"E2e!Passw0rd#2024"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

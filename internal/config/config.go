// Package config loads the daemon's YAML configuration file, following the
// defaulting pattern of the teacher's top-level LoadConfig.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for rainbow-espd.
type Config struct {
	Server struct {
		// URL is the WebSocket endpoint the firmware dials to reach the
		// remote game server. Defaults to ws://localhost:3000, matching
		// the original firmware's hard-coded target.
		URL string `yaml:"url"`
	} `yaml:"server"`

	Admin struct {
		// Listen is the admin HTTP surface's listen address, e.g. ":8080".
		Listen string `yaml:"listen"`
	} `yaml:"admin"`
}

const (
	defaultServerURL   = "ws://localhost:3000"
	defaultAdminListen = ":8080"
)

// Default returns a Config populated entirely with defaults.
func Default() Config {
	var c Config
	c.Server.URL = defaultServerURL
	c.Admin.Listen = defaultAdminListen
	return c
}

// Load reads and parses the YAML config file at path, falling back to
// defaults for any field left unset.
func Load(path string) (Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}

	if c.Server.URL == "" {
		c.Server.URL = defaultServerURL
	}
	if c.Admin.Listen == "" {
		c.Admin.Listen = defaultAdminListen
	}
	return c, nil
}

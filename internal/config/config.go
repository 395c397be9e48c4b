// Package config holds the host-side settings shared by uictl and the MCP
// server. The agent itself has no config file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/channel"
)

// FileName is looked up in the working directory when no path is given.
const FileName = "uiinject.toml"

// Config is the host configuration.
type Config struct {
	PipePrefix     string        `toml:"pipe_prefix"`
	AgentName      string        `toml:"agent_name"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	RetryInterval  time.Duration `toml:"retry_interval"`
	WaitTimeout    time.Duration `toml:"wait_timeout"`
	VerifyLoad     bool          `toml:"verify_load"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PipePrefix:     channel.EndpointPrefix,
		AgentName:      injector.DefaultPayloadName,
		ConnectTimeout: 5 * time.Second,
		RetryInterval:  100 * time.Millisecond,
		WaitTimeout:    injector.DefaultWaitTimeout,
	}
}

// Load reads path over the defaults. An empty path means FileName in the
// working directory, and a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "reading config")
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(err, "parsing config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects empty names and non-positive durations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.PipePrefix) == "" {
		return errors.New("pipe_prefix is empty")
	}
	if strings.TrimSpace(c.AgentName) == "" {
		return errors.New("agent_name is empty")
	}
	for _, d := range []struct {
		key string
		v   time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"retry_interval", c.RetryInterval},
		{"wait_timeout", c.WaitTimeout},
	} {
		if d.v <= 0 {
			return errors.Errorf("%s must be positive, got %s", d.key, d.v)
		}
	}
	return nil
}

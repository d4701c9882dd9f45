package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	client "github.com/MrEthical07/goAuthClient"
)

const envPrefix = "AUTHCLIENT"

// settings is everything the commands read from flags, AUTHCLIENT_* variables,
// and the optional config file, in that order of precedence.
type settings struct {
	Config      string        `mapstructure:"config"`
	BaseURL     string        `mapstructure:"base-url"`
	Store       string        `mapstructure:"store"`
	File        string        `mapstructure:"file"`
	RedisAddr   string        `mapstructure:"redis-addr"`
	RedisPrefix string        `mapstructure:"redis-prefix"`
	RedisTTL    time.Duration `mapstructure:"redis-ttl"`
	Lead        time.Duration `mapstructure:"renewal-lead"`
	Serialize   bool          `mapstructure:"serialize-renewals"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LogLevel    string        `mapstructure:"log-level"`
	Audit       bool          `mapstructure:"audit"`
}

func addGlobalFlags(cmd *cobra.Command) {
	defaults := client.DefaultConfig()
	f := cmd.PersistentFlags()
	f.String("config", "", "optional YAML config file")
	f.String("base-url", defaults.BaseURL, "API base URL")
	f.String("store", "file", "session store: file, redis or memory")
	f.String("file", "", "session file (default <user config dir>/authclient/session.json)")
	f.String("redis-addr", "localhost:6379", `redis address, or "mini" for an embedded server`)
	f.String("redis-prefix", "authclient", "redis key prefix")
	f.Duration("redis-ttl", 0, "expire idle session keys after this long (0 keeps them)")
	f.Duration("renewal-lead", defaults.Renewal.Lead, "renew this long before the token expires")
	f.Bool("serialize-renewals", false, "coalesce concurrent renewals of the same token")
	f.Duration("timeout", defaults.HTTP.Timeout, "per-request timeout")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.Bool("audit", false, "log audit events")
}

// load merges flags, environment, and config file into s. Flags of the
// running command are bound here, so command-local flags such as --password
// can come from AUTHCLIENT_PASSWORD too.
func load(v *viper.Viper, cmd *cobra.Command, s *settings) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(s); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return s.validate()
}

func (s *settings) validate() error {
	switch s.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unknown store %q", s.Store)
	}
	if s.Store == "redis" && s.RedisAddr == "" {
		return fmt.Errorf("redis store needs --redis-addr")
	}
	return nil
}

func (s *settings) sessionFile() (string, error) {
	if s.File != "" {
		return s.File, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "authclient", "session.json"), nil
}

// clientConfig maps settings onto the library configuration.
func (s *settings) clientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.BaseURL = s.BaseURL
	cfg.HTTP.Timeout = s.Timeout
	cfg.Renewal.Lead = s.Lead
	cfg.Renewal.Serialize = s.Serialize
	cfg.Audit.Enabled = s.Audit
	return cfg
}

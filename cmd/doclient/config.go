package main

import (
	"strings"

	doclient "github.com/goliatone/go-doclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cliConfig is the configuration of the command line client.
type cliConfig struct {
	doclient.Options `mapstructure:",squash"`
	TokenDB          string `mapstructure:"token_db"`
	LogLevel         string `mapstructure:"log_level"`
}

var configDefaults = map[string]any{
	"base_url":      "http://localhost:5000/api",
	"timeout":       doclient.DefaultTimeout,
	"token_key":     doclient.DefaultTokenKey,
	"login_route":   doclient.DefaultLoginRoute,
	"default_route": doclient.DefaultRoute,
	"user_agent":    doclient.DefaultUserAgent + "/" + version,
	"per_page":      doclient.DefaultPerPage,
	"token_db":      "file:doclient.db",
	"log_level":     "warn",
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"base-url":  "base_url",
	"timeout":   "timeout",
	"per-page":  "per_page",
	"token-db":  "token_db",
	"log-level": "log_level",
}

// loadConfig resolves the configuration from defaults, an optional
// doclient.yaml file, DOCLIENT_* environment variables and flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command, configFile string) (cliConfig, error) {
	var c cliConfig
	v := viper.New()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("doclient")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.SetEnvPrefix("doclient")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return c, err
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

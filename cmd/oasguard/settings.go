package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erraggy/oasguard/httpvalidator"
	"github.com/erraggy/oasguard/internal/options"
	"github.com/erraggy/oasguard/logging"
)

// envPrefix prefixes environment variables; "validation.max_body_size" is read
// from OASGUARD_VALIDATION_MAX_BODY_SIZE.
const envPrefix = "OASGUARD"

// Settings is the resolved CLI configuration.
type Settings struct {
	Addr       string                 `mapstructure:"addr" validate:"required,hostname_port"`
	Contract   string                 `mapstructure:"contract"`
	Log        logging.Config         `mapstructure:"log"`
	Validation httpvalidator.Settings `mapstructure:"validation"`
}

// setDefaults registers every key so environment variables can override it.
func setDefaults(v *viper.Viper) {
	d := httpvalidator.DefaultSettings()
	v.SetDefault("addr", ":8080")
	v.SetDefault("contract", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("validation.discard_unknown_bodies", d.DiscardUnknownBodies)
	v.SetDefault("validation.discard_unknown_query_parameters", d.DiscardUnknownQueryParameters)
	v.SetDefault("validation.discard_unknown_headers", d.DiscardUnknownHeaders)
	v.SetDefault("validation.parse_bodies_on_wildcard", d.ParseBodiesOnWildcard)
	v.SetDefault("validation.max_body_size", d.MaxBodySize)
	v.SetDefault("validation.parameter_limit", d.ParameterLimit)
	v.SetDefault("validation.multipart.parts", d.Multipart.Parts)
	v.SetDefault("validation.multipart.fields", d.Multipart.Fields)
	v.SetDefault("validation.multipart.files", d.Multipart.Files)
	v.SetDefault("validation.multipart.field_size", d.Multipart.FieldSize)
	v.SetDefault("validation.multipart.file_size", d.Multipart.FileSize)
}

// readConfig prepares v: defaults, environment and the optional config file.
func readConfig(v *viper.Viper, cmd *cobra.Command) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// loadSettings unmarshals and validates the resolved configuration.
func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := options.Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

package config

import (
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultFile is read from the working directory if it exists
const DefaultFile = "srp-build.toml"

// Config describes all configuration options
type Config struct {
	Root       string `toml:"root" usage:"Project root (defaults to the closest directory containing .git)"`
	Automation struct {
		Dir        string   `toml:"dir" default:"../automation-tools" usage:"Directory containing the automation tools"`
		Module     string   `toml:"module" default:"unity_package_build" usage:"Name of the automation module"`
		SearchPath []string `toml:"search_path" usage:"Additional directories to search for automation modules"`
	} `toml:"automation"`
	Log struct {
		Level string `toml:"level" default:"info"`
		Debug bool   `toml:"debug" default:"false" usage:"Include stack traces and raw log fields"`
	} `toml:"log"`
	DryRun bool `toml:"dry_run" default:"false"`
	Force  bool `toml:"force" default:"false"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object. Flags are
// handled by cobra so aconfig only looks at defaults, config files and the environment. Unknown
// SRP_BUILD_* variables are ignored.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{DefaultFile}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		EnvPrefix:        "SRP_BUILD",
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return eris.Errorf("Invalid log level %s", cfg.Log.Level)
	}

	if cfg.Automation.Module == "" {
		return eris.New("No automation module configured")
	}

	return nil
}

// LogLevel returns the configured log level. Debug mode always logs at least debug messages.
func (cfg *Config) LogLevel() zerolog.Level {
	level, ok := logLevels[cfg.Log.Level]
	if !ok {
		level = zerolog.InfoLevel
	}

	if cfg.Log.Debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	return level
}

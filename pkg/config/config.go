// Package config resolves dexit's run configuration: a `dexit:` key read
// from a project manifest (dexit.yaml or package.yaml in basePath)
// deep-merged with CLI flags, with CLI flags always winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ManifestNames are tried in order inside basePath; the first one found
// is read.
var ManifestNames = []string{"dexit.yaml", "package.yaml"}

// Config is dexit's fully resolved run configuration.
type Config struct {
	TestsPath     string
	BasePath      string
	ModulesPath   string
	NoAutoload    bool
	NoBuiltin     bool
	IgnoreInvalid bool
	Reporters     []string
	Debug         bool
}

// Flags carries the subset of CLI flags Resolve overlays onto the
// manifest-derived defaults. A zero value for a field means "flag not
// set" except for the four bools, which are tri-state via the pointer.
type Flags struct {
	TestsPath     string
	BasePath      string
	ModulesPath   string
	NoAutoload    *bool
	NoBuiltin     *bool
	IgnoreInvalid *bool
	Reporters     []string
	Debug         *bool
}

// Resolve reads the `dexit:` key from the first manifest found under
// basePath (if any), then overlays non-zero CLI flags on top — CLI wins
// on every field it set explicitly.
func Resolve(basePath string, flags Flags) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("testsPath", "./tests")
	v.SetDefault("basePath", basePath)
	v.SetDefault("modulesPath", "./modules")

	for _, name := range ManifestNames {
		path := filepath.Join(basePath, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		break
	}

	sub := v.Sub("dexit")
	if sub == nil {
		sub = v
	}

	cfg := &Config{
		TestsPath:     sub.GetString("testsPath"),
		BasePath:      basePath,
		ModulesPath:   sub.GetString("modulesPath"),
		NoAutoload:    sub.GetBool("noAutoload"),
		NoBuiltin:     sub.GetBool("noBuiltin"),
		IgnoreInvalid: sub.GetBool("ignoreInvalid"),
		Reporters:     sub.GetStringSlice("reporters"),
		Debug:         sub.GetBool("debug"),
	}

	if flags.TestsPath != "" {
		cfg.TestsPath = flags.TestsPath
	}
	if flags.BasePath != "" {
		cfg.BasePath = flags.BasePath
	}
	if flags.ModulesPath != "" {
		cfg.ModulesPath = flags.ModulesPath
	}
	if flags.NoAutoload != nil {
		cfg.NoAutoload = *flags.NoAutoload
	}
	if flags.NoBuiltin != nil {
		cfg.NoBuiltin = *flags.NoBuiltin
	}
	if flags.IgnoreInvalid != nil {
		cfg.IgnoreInvalid = *flags.IgnoreInvalid
	}
	if len(flags.Reporters) > 0 {
		cfg.Reporters = flags.Reporters
	}
	if flags.Debug != nil {
		cfg.Debug = *flags.Debug
	}
	if cfg.TestsPath == "" {
		cfg.TestsPath = "./tests"
	}
	if cfg.ModulesPath == "" {
		cfg.ModulesPath = "./modules"
	}
	return cfg, nil
}

// Package config loads kalac settings from a TOML file.
package config

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// Config is the root of the kalac configuration file.
type Config struct {
	Compiler CompilerConfig
}

// CompilerConfig controls the compile pipeline and its surroundings.
type CompilerConfig struct {
	// CacheSize is the number of compiled artifacts kept in memory.
	CacheSize int
	// Overwrite permits replacing an existing output file.
	Overwrite bool
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Compiler: CompilerConfig{
			CacheSize: 64,
			Overwrite: false,
		},
	}
}

// Load reads the TOML file at path over the top of cfg.
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	if cfg.Compiler.CacheSize <= 0 {
		return fmt.Errorf("%s: compiler cache size must be positive", path)
	}
	return nil
}

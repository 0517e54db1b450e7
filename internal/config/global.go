package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// GlobalConfig represents global sqlgit settings stored in the user's
// config directory. These settings affect the CLI only; per-repository
// state lives in the database itself.
type GlobalConfig struct {
	Init InitConfig `toml:"init"`
	UI   UIConfig   `toml:"ui"`
}

// InitConfig contains defaults for newly created repositories.
type InitConfig struct {
	Compression string `toml:"compression" desc:"Default compression for new repositories (none, zlib, zstd)"`
}

// UIConfig contains CLI output settings.
type UIConfig struct {
	NoColor bool `toml:"no_color" desc:"Disable colored output"`
}

// DefaultGlobalConfig returns a new global config with default values.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Init: InitConfig{Compression: "none"},
	}
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sqlgit", "config.toml"), nil
}

// LoadGlobal reads the global config, returning defaults when the
// file does not exist.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	path, err := GlobalConfigPath()
	if err != nil {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveGlobal writes the global config, creating the directory if
// needed.
func SaveGlobal(cfg *GlobalConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

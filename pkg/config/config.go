// Package config holds the immutable provisioning configuration and its
// pre-flight validation. Defaults come first, then an optional TOML file,
// then command-line flags; after Validate passes, no component reads
// ambient process state.
package config

import (
	"os"

	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/pelletier/go-toml/v2"
)

// Config is the provisioning configuration for a single run. It is
// populated before validation and treated as immutable afterwards.
type Config struct {
	Username        string `toml:"username"`
	Editor          string `toml:"editor"`
	GrubEnabled     bool   `toml:"grub"`
	EditListEnabled bool   `toml:"edit_list"`
	IsLaptop        bool   `toml:"laptop"`
	EFIDir          string `toml:"efi_dir"`
	EFIPartition    string `toml:"efi_partition"`
	Locale          string `toml:"locale"`
	Timezone        string `toml:"timezone"`
	Hostname        string `toml:"hostname"`
	DotfilesRepo    string `toml:"dotfiles_repo"`
	DotfilesBranch  string `toml:"dotfiles_branch"`
	ProgsPath       string `toml:"progs"`

	DryRun bool `toml:"-"`
}

// Default returns the built-in defaults applied before any file or flag.
func Default() Config {
	return Config{
		Editor: "vim",
	}
}

// LoadFile merges a TOML configuration file over cfg. A missing file is
// only an error when the path was explicitly requested.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigLoad, "cannot read config file %s", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse, "cannot parse config file %s", path)
	}

	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/archstrap/archstrap/internal/version"
	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/config"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/archstrap/archstrap/pkg/provision"
	"github.com/archstrap/archstrap/pkg/system"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the archstrap command tree.
func NewRootCmd() *cobra.Command {
	var (
		verbosity int
		cfgFile   string
	)

	rootCmd := &cobra.Command{
		Use:   "archstrap",
		Short: "Arch Linux post-install provisioner",
		Long: `archstrap provisions a freshly installed Arch Linux system: it creates a
user account, installs a curated package set from the official
repositories, the AUR, and git, deploys a dotfiles repository, and
applies system settings such as timezone, locale, hostname, and the
bootloader. Run it once, as root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, cfgFile)
			if err != nil {
				return err
			}

			if os.Geteuid() != 0 && !cfg.DryRun {
				return errors.New(errors.ErrPermission, "archstrap must run as root")
			}

			runner := cmdexec.NewRunner(cfg.DryRun)
			validator := config.NewValidator(runner)
			if err := validator.Validate(cmd.Context(), cfg); err != nil {
				return err
			}

			sys := system.New(runner, cfg.DryRun)
			pipeline := provision.New(cfg, validator.IsUEFI(), runner, sys)
			return pipeline.Run(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML file with configuration defaults")

	defaults := config.Default()

	f := rootCmd.Flags()
	f.StringP("user", "u", "", "Name of the account to create (required here or in the config file)")
	f.StringP("editor", "e", defaults.Editor, "Editor used when editing the package list")
	f.BoolP("edit-list", "f", false, "Open the package list in the editor before installing")
	f.BoolP("grub", "g", false, "Install the GRUB bootloader")
	f.StringP("efi-dir", "d", "", "EFI system partition mount point (UEFI only)")
	f.StringP("efi-partition", "p", "", "EFI system partition device (UEFI only)")
	f.StringP("locale", "l", "", "Locale to generate and set, e.g. en_US.UTF-8")
	f.StringP("timezone", "t", "", "Timezone to set, e.g. Europe/Berlin")
	f.StringP("hostname", "n", "", "Hostname to set")
	f.StringP("dotfiles", "r", "", "Dotfiles repository to deploy into the user's home")
	f.String("dotfiles-branch", "", "Branch of the dotfiles repository (default: remote default)")
	f.String("progs", "", "Package record list (default: embedded list)")
	f.Bool("laptop", false, "Apply laptop input tweaks (tap-to-click)")
	f.Bool("dry-run", false, "Log what would be done without changing the system")

	// The username is not marked required at the cobra level: the config
	// file may supply it, and resolveConfig rejects a run without one.
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// resolveConfig layers defaults, then the optional config file, then
// any flag the operator actually set.
func resolveConfig(cmd *cobra.Command, cfgFile string) (config.Config, error) {
	cfg := config.Default()

	if cfgFile != "" {
		if err := config.LoadFile(&cfg, cfgFile); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()

	stringFlags := map[string]*string{
		"user":            &cfg.Username,
		"editor":          &cfg.Editor,
		"efi-dir":         &cfg.EFIDir,
		"efi-partition":   &cfg.EFIPartition,
		"locale":          &cfg.Locale,
		"timezone":        &cfg.Timezone,
		"hostname":        &cfg.Hostname,
		"dotfiles":        &cfg.DotfilesRepo,
		"dotfiles-branch": &cfg.DotfilesBranch,
		"progs":           &cfg.ProgsPath,
	}
	for name, target := range stringFlags {
		if f.Changed(name) {
			*target, _ = f.GetString(name)
		}
	}

	boolFlags := map[string]*bool{
		"edit-list": &cfg.EditListEnabled,
		"grub":      &cfg.GrubEnabled,
		"laptop":    &cfg.IsLaptop,
		"dry-run":   &cfg.DryRun,
	}
	for name, target := range boolFlags {
		if f.Changed(name) {
			*target, _ = f.GetBool(name)
		}
	}

	if cfg.Username == "" {
		return cfg, errors.New(errors.ErrInvalidInput, "a username is required (-u)")
	}

	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("archstrap version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}

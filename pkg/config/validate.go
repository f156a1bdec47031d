package config

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
)

var (
	usernameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
	hostnameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-_]*$`)
)

// Validator runs every pre-flight check against the live system before
// any mutating step. Probe locations are fields so tests can point them
// at fixtures.
type Validator struct {
	Runner cmdexec.Runner

	// LookPath resolves a binary on PATH. Defaults to exec.LookPath.
	LookPath func(string) (string, error)

	ZoneinfoDir    string // /usr/share/zoneinfo
	LocaleGenPath  string // /etc/locale.gen
	EFIFirmwareDir string // /sys/firmware/efi, presence means UEFI boot
}

// NewValidator creates a Validator with the standard system paths.
func NewValidator(runner cmdexec.Runner) *Validator {
	return &Validator{
		Runner:         runner,
		LookPath:       exec.LookPath,
		ZoneinfoDir:    "/usr/share/zoneinfo",
		LocaleGenPath:  "/etc/locale.gen",
		EFIFirmwareDir: "/sys/firmware/efi",
	}
}

// Validate runs all checks in one pass and returns every failure joined
// into a single error. It never mutates the system.
func (v *Validator) Validate(ctx context.Context, cfg Config) error {
	logger := logging.GetLogger("config.validate")

	var errs []error
	fail := func(err *errors.Error) {
		logger.Debug().Str("check", string(err.Code)).Msg(err.Message)
		errs = append(errs, err)
	}

	if !usernameRe.MatchString(cfg.Username) {
		fail(errors.Newf(errors.ErrValidation,
			"username %q must start with a lowercase letter or underscore and contain only lowercase letters, digits, - or _", cfg.Username))
	}

	if cfg.Editor != "" {
		if _, err := v.LookPath(cfg.Editor); err != nil {
			fail(errors.Newf(errors.ErrValidation, "editor %q not found on PATH", cfg.Editor))
		}
	}

	if cfg.Hostname != "" && !hostnameRe.MatchString(cfg.Hostname) {
		fail(errors.Newf(errors.ErrValidation, "hostname %q is not a valid hostname", cfg.Hostname))
	}

	if cfg.Timezone != "" {
		if err := v.checkTimezone(cfg.Timezone); err != nil {
			fail(err)
		}
	}

	if cfg.Locale != "" {
		if err := v.checkLocale(cfg.Locale); err != nil {
			fail(err)
		}
	}

	if cfg.GrubEnabled {
		for _, err := range v.checkBootloader(ctx, cfg) {
			fail(err)
		}
	}

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}

	logger.Debug().Msg("All validation checks passed")
	return nil
}

func (v *Validator) checkTimezone(tz string) *errors.Error {
	// Reject anything that could escape the zoneinfo tree.
	if strings.Contains(tz, "..") || strings.HasPrefix(tz, "/") {
		return errors.Newf(errors.ErrValidation, "timezone %q is not a valid zoneinfo name", tz)
	}

	info, err := os.Stat(filepath.Join(v.ZoneinfoDir, tz))
	if err != nil || info.IsDir() {
		return errors.Newf(errors.ErrValidation, "timezone %q has no zoneinfo entry", tz)
	}
	return nil
}

func (v *Validator) checkLocale(locale string) *errors.Error {
	data, err := os.ReadFile(v.LocaleGenPath)
	if err != nil {
		return errors.Newf(errors.ErrValidation, "cannot read %s to verify locale %q", v.LocaleGenPath, locale)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		// Entries look like "en_US.UTF-8 UTF-8".
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == locale {
			return nil
		}
	}

	return errors.Newf(errors.ErrValidation, "locale %q has no entry in %s", locale, v.LocaleGenPath)
}

// IsUEFI reports whether the system booted through UEFI firmware.
func (v *Validator) IsUEFI() bool {
	info, err := os.Stat(v.EFIFirmwareDir)
	return err == nil && info.IsDir()
}

func (v *Validator) checkBootloader(ctx context.Context, cfg Config) []*errors.Error {
	if !v.IsUEFI() {
		// Legacy BIOS needs no EFI directory or partition.
		return nil
	}

	var errs []*errors.Error

	if cfg.EFIDir == "" || cfg.EFIPartition == "" {
		errs = append(errs, errors.New(errors.ErrValidation,
			"GRUB install on a UEFI system requires both an EFI directory (-d) and an EFI partition (-p)"))
		return errs
	}

	if _, err := os.Stat(cfg.EFIPartition); err != nil {
		errs = append(errs, errors.Newf(errors.ErrValidation, "EFI partition %s does not exist", cfg.EFIPartition))
		return errs
	}

	fsType, err := cmdexec.Output(ctx, v.Runner, "blkid", "-s", "TYPE", "-o", "value", cfg.EFIPartition)
	if err != nil || fsType != "vfat" {
		errs = append(errs, errors.Newf(errors.ErrValidation,
			"EFI partition %s is not FAT-formatted (found %q)", cfg.EFIPartition, fsType))
	}

	mountedAt, err := cmdexec.Output(ctx, v.Runner, "findmnt", "-n", "-o", "TARGET", cfg.EFIPartition)
	if err == nil && mountedAt != "" && mountedAt != cfg.EFIDir {
		errs = append(errs, errors.Newf(errors.ErrValidation,
			"EFI partition %s is already mounted at %s", cfg.EFIPartition, mountedAt))
	}

	return errs
}

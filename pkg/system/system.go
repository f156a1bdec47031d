// Package system implements the configurator steps applied after
// package installation: user account, timezone, locale, hostname,
// sudoers policy, bootloader, services, and small host tweaks. Every
// step returns immediately when its setting is unset, so steps are
// independently skippable.
package system

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/rs/zerolog"
)

// System applies configuration to the host. Paths are fields so tests
// can point every step at a scratch tree instead of /etc.
type System struct {
	Runner cmdexec.Runner

	EtcDir      string // /etc
	BootDir     string // /boot
	ZoneinfoDir string // /usr/share/zoneinfo
	HomeRoot    string // /home

	// DryRun skips all file mutations (commands are already gated by
	// the runner).
	DryRun bool

	logger zerolog.Logger
}

// New creates a System with the standard host paths.
func New(runner cmdexec.Runner, dryRun bool) *System {
	return &System{
		Runner:      runner,
		EtcDir:      "/etc",
		BootDir:     "/boot",
		ZoneinfoDir: "/usr/share/zoneinfo",
		HomeRoot:    "/home",
		DryRun:      dryRun,
		logger:      logging.GetLogger("system"),
	}
}

// UserHome returns the home directory for a user account.
func (s *System) UserHome(user string) string {
	return filepath.Join(s.HomeRoot, user)
}

// writeFile is the single choke point for file creation so dry-run can
// skip every mutation in one place.
func (s *System) writeFile(path string, content []byte, perm os.FileMode) error {
	if s.DryRun {
		s.logger.Info().Str("path", path).Msg("Dry run, file write skipped")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create parent of %s", path)
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", path)
	}
	return nil
}

// patchFile applies transform to the file's current content and writes
// the result back. The transform must be idempotent since steps can be
// re-run.
func (s *System) patchFile(path string, transform func(string) string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = nil
	} else if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", path)
	}

	patched := transform(string(data))
	if patched == string(data) {
		return nil
	}

	return s.writeFile(path, []byte(patched), 0644)
}

// symlink replaces path with a symlink to target.
func (s *System) symlink(target, path string) error {
	if s.DryRun {
		s.logger.Info().Str("path", path).Str("target", target).Msg("Dry run, symlink skipped")
		return nil
	}

	_ = os.Remove(path)
	if err := os.Symlink(target, path); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot create symlink %s", path)
	}
	return nil
}

// ensureLine appends line to the file when no existing line matches it
// exactly.
func ensureLine(content, line string) string {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == strings.TrimSpace(line) {
			return content
		}
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line + "\n"
}

package system

import (
	"context"
	"path/filepath"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
)

// SetTimezone links /etc/localtime to the zoneinfo entry and syncs the
// hardware clock. No-op when tz is empty.
func (s *System) SetTimezone(ctx context.Context, tz string) error {
	if tz == "" {
		return nil
	}

	s.logger.Info().Str("timezone", tz).Msg("Setting timezone")

	target := filepath.Join(s.ZoneinfoDir, tz)
	if err := s.symlink(target, filepath.Join(s.EtcDir, "localtime")); err != nil {
		return err
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "hwclock",
		Args: []string{"--systohc"},
	}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "cannot sync hardware clock")
	}

	return nil
}

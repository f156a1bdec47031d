package system

import (
	"context"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
)

// EnableServices enables and starts the given units. Units are handled
// one at a time so a single broken unit does not block the rest.
func (s *System) EnableServices(ctx context.Context, units ...string) error {
	var firstErr error
	for _, unit := range units {
		s.logger.Info().Str("unit", unit).Msg("Enabling service")

		if _, err := s.Runner.Run(ctx, cmdexec.Command{
			Name: "systemctl",
			Args: []string{"enable", "--now", unit},
		}); err != nil {
			s.logger.Warn().Err(err).Str("unit", unit).Msg("Cannot enable service")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, errors.ErrStep, "cannot enable %s", unit)
			}
		}
	}
	return firstErr
}

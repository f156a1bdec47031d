package system

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
)

// SetLocale uncomments the locale in /etc/locale.gen, regenerates
// locales, and writes /etc/locale.conf. No-op when locale is empty.
func (s *System) SetLocale(ctx context.Context, locale string) error {
	if locale == "" {
		return nil
	}

	s.logger.Info().Str("locale", locale).Msg("Setting locale")

	localeGen := filepath.Join(s.EtcDir, "locale.gen")
	if err := s.patchFile(localeGen, func(content string) string {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
			if fields := strings.Fields(trimmed); len(fields) > 0 && fields[0] == locale {
				lines[i] = trimmed
			}
		}
		return strings.Join(lines, "\n")
	}); err != nil {
		return err
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{Name: "locale-gen"}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "locale-gen failed")
	}

	return s.writeFile(filepath.Join(s.EtcDir, "locale.conf"), []byte("LANG="+locale+"\n"), 0644)
}

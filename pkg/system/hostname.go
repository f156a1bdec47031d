package system

import (
	"context"
	"path/filepath"
	"strings"
)

// SetHostname writes /etc/hostname and keeps a 127.0.1.1 entry in
// /etc/hosts pointing at it. No-op when hostname is empty.
func (s *System) SetHostname(_ context.Context, hostname string) error {
	if hostname == "" {
		return nil
	}

	s.logger.Info().Str("hostname", hostname).Msg("Setting hostname")

	if err := s.writeFile(filepath.Join(s.EtcDir, "hostname"), []byte(hostname+"\n"), 0644); err != nil {
		return err
	}

	hostsPath := filepath.Join(s.EtcDir, "hosts")
	return s.patchFile(hostsPath, func(content string) string {
		var kept []string
		for _, line := range strings.Split(content, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "127.0.1.1") {
				continue
			}
			kept = append(kept, line)
		}
		return ensureLine(strings.Join(kept, "\n"), "127.0.1.1\t"+hostname+".localdomain "+hostname)
	})
}

package system

import (
	"context"
	"path/filepath"
	"strings"
)

// Sentinel marks every sudoers line this tool manages, so a later pass
// can remove exactly those lines before writing new ones.
const Sentinel = "#ARCHSTRAP"

// PermissiveSudoers is the policy active while packages build: wheel
// may run anything without a password, which makepkg and the AUR helper
// rely on.
func PermissiveSudoers() []string {
	return []string{"%wheel ALL=(ALL:ALL) NOPASSWD: ALL"}
}

// RestrictedSudoers is the final policy: wheel needs a password except
// for routine maintenance commands.
func RestrictedSudoers() []string {
	return []string{
		"%wheel ALL=(ALL:ALL) ALL",
		"%wheel ALL=(ALL:ALL) NOPASSWD: /usr/bin/shutdown,/usr/bin/reboot,/usr/bin/systemctl suspend,/usr/bin/mount,/usr/bin/umount,/usr/bin/pacman -Syu",
	}
}

// ApplySudoers replaces all sentinel-tagged lines in /etc/sudoers with
// the given policy lines, each tagged with the sentinel. Untagged lines
// are never touched.
func (s *System) ApplySudoers(_ context.Context, policy []string) error {
	s.logger.Info().Int("lines", len(policy)).Msg("Applying sudoers policy")

	return s.patchFile(filepath.Join(s.EtcDir, "sudoers"), func(content string) string {
		var kept []string
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(line, Sentinel) {
				continue
			}
			kept = append(kept, line)
		}

		out := strings.Join(kept, "\n")
		for _, line := range policy {
			out = ensureLine(out, line+" "+Sentinel)
		}
		return out
	})
}

package system

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

var (
	colorRe     = regexp.MustCompile(`(?m)^#\s*Color\s*$`)
	makeflagsRe = regexp.MustCompile(`(?m)^#?\s*MAKEFLAGS=.*$`)
)

// libinput tap-to-click and natural scrolling for laptop touchpads.
const libinputConf = `Section "InputClass"
    Identifier "libinput touchpad catchall"
    MatchIsTouchpad "on"
    MatchDevicePath "/dev/input/event*"
    Driver "libinput"
    Option "Tapping" "on"
    Option "NaturalScrolling" "on"
EndSection
`

// ApplyTweaks performs the small host adjustments that do not deserve
// their own step: pacman cosmetics, parallel builds, and the pcspkr
// beep blacklist. Laptop input tweaks are applied only when asked for.
func (s *System) ApplyTweaks(_ context.Context, laptop bool) error {
	if err := s.tweakPacmanConf(); err != nil {
		return err
	}

	if err := s.tweakMakepkgConf(); err != nil {
		return err
	}

	if err := s.writeFile(filepath.Join(s.EtcDir, "modprobe.d", "nobeep.conf"),
		[]byte("blacklist pcspkr\n"), 0644); err != nil {
		return err
	}

	if laptop {
		if err := s.writeFile(filepath.Join(s.EtcDir, "X11", "xorg.conf.d", "40-libinput.conf"),
			[]byte(libinputConf), 0644); err != nil {
			return err
		}
	}

	return nil
}

// tweakPacmanConf uncomments Color and adds ILoveCandy under it.
func (s *System) tweakPacmanConf() error {
	return s.patchFile(filepath.Join(s.EtcDir, "pacman.conf"), func(content string) string {
		content = colorRe.ReplaceAllString(content, "Color")

		if !strings.Contains(content, "ILoveCandy") {
			content = strings.Replace(content, "Color\n", "Color\nILoveCandy\n", 1)
		}
		return content
	})
}

// tweakMakepkgConf sets MAKEFLAGS to use every core.
func (s *System) tweakMakepkgConf() error {
	flags := fmt.Sprintf(`MAKEFLAGS="-j%d"`, runtime.NumCPU())
	return s.patchFile(filepath.Join(s.EtcDir, "makepkg.conf"), func(content string) string {
		if makeflagsRe.MatchString(content) {
			return makeflagsRe.ReplaceAllString(content, flags)
		}
		return ensureLine(content, flags)
	})
}

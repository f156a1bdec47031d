package system

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
)

// BootloaderOptions carries the validated bootloader settings. A single
// EFIPartition field is used for both validation and installation.
type BootloaderOptions struct {
	Enabled      bool
	UEFI         bool
	EFIDir       string
	EFIPartition string
}

var partitionSuffixRe = regexp.MustCompile(`p?[0-9]+$`)

// InstallBootloader installs GRUB. On UEFI systems the EFI partition is
// mounted at the EFI directory first unless it already is; on legacy
// BIOS the install targets the disk holding /boot. No-op when disabled.
func (s *System) InstallBootloader(ctx context.Context, opts BootloaderOptions) error {
	if !opts.Enabled {
		return nil
	}

	if opts.UEFI {
		if err := s.installUEFI(ctx, opts); err != nil {
			return err
		}
	} else {
		if err := s.installBIOS(ctx); err != nil {
			return err
		}
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "grub-mkconfig",
		Args: []string{"-o", filepath.Join(s.BootDir, "grub", "grub.cfg")},
	}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "grub-mkconfig failed")
	}

	return nil
}

func (s *System) installUEFI(ctx context.Context, opts BootloaderOptions) error {
	s.logger.Info().
		Str("efiDir", opts.EFIDir).
		Str("efiPartition", opts.EFIPartition).
		Msg("Installing GRUB for UEFI")

	mountedAt, err := cmdexec.Output(ctx, s.Runner, "findmnt", "-n", "-o", "TARGET", opts.EFIPartition)
	if err != nil || mountedAt != opts.EFIDir {
		if _, err := s.Runner.Run(ctx, cmdexec.Command{
			Name: "mkdir",
			Args: []string{"-p", opts.EFIDir},
		}); err != nil {
			return errors.Wrapf(err, errors.ErrStep, "cannot create %s", opts.EFIDir)
		}
		if _, err := s.Runner.Run(ctx, cmdexec.Command{
			Name: "mount",
			Args: []string{opts.EFIPartition, opts.EFIDir},
		}); err != nil {
			return errors.Wrapf(err, errors.ErrStep, "cannot mount %s at %s", opts.EFIPartition, opts.EFIDir)
		}
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "grub-install",
		Args: []string{"--target=x86_64-efi", "--efi-directory=" + opts.EFIDir, "--bootloader-id=GRUB"},
	}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "grub-install failed")
	}

	return nil
}

func (s *System) installBIOS(ctx context.Context) error {
	// The boot disk is the device backing /boot, falling back to the
	// root filesystem, with any partition suffix stripped.
	source, err := cmdexec.Output(ctx, s.Runner, "findmnt", "-n", "-o", "SOURCE", s.BootDir)
	if err != nil || source == "" {
		source, err = cmdexec.Output(ctx, s.Runner, "findmnt", "-n", "-o", "SOURCE", "/")
		if err != nil || source == "" {
			return errors.New(errors.ErrStep, "cannot determine boot disk for BIOS GRUB install")
		}
	}
	disk := partitionSuffixRe.ReplaceAllString(source, "")

	s.logger.Info().Str("disk", disk).Msg("Installing GRUB for legacy BIOS")

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "grub-install",
		Args: []string{"--target=i386-pc", disk},
	}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "grub-install failed")
	}

	return nil
}

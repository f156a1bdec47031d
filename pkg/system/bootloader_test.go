package system

import (
	"context"
	"strings"
	"testing"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallBootloaderDisabled(t *testing.T) {
	s, rec := testSystem(t)

	require.NoError(t, s.InstallBootloader(context.Background(), BootloaderOptions{Enabled: false}))
	assert.Empty(t, rec.Calls())
}

func TestInstallBootloaderUEFIMountsWhenUnmounted(t *testing.T) {
	s, rec := testSystem(t)
	// findmnt reports the partition is not mounted anywhere.
	rec.Respond("findmnt", cmdexec.Result{}, nil)

	opts := BootloaderOptions{
		Enabled:      true,
		UEFI:         true,
		EFIDir:       "/boot/efi",
		EFIPartition: "/dev/sda1",
	}
	require.NoError(t, s.InstallBootloader(context.Background(), opts))

	lines := rec.CallLines()
	assert.Contains(t, lines, "mount /dev/sda1 /boot/efi")
	assert.Contains(t, lines, "grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=GRUB")

	var sawMkconfig bool
	for _, l := range lines {
		if strings.HasPrefix(l, "grub-mkconfig -o") {
			sawMkconfig = true
			assert.Contains(t, l, "grub/grub.cfg")
		}
	}
	assert.True(t, sawMkconfig)
}

func TestInstallBootloaderUEFIAlreadyMounted(t *testing.T) {
	s, rec := testSystem(t)
	rec.Respond("findmnt", cmdexec.Result{Stdout: "/boot/efi\n"}, nil)

	opts := BootloaderOptions{
		Enabled:      true,
		UEFI:         true,
		EFIDir:       "/boot/efi",
		EFIPartition: "/dev/sda1",
	}
	require.NoError(t, s.InstallBootloader(context.Background(), opts))

	for _, l := range rec.CallLines() {
		assert.NotEqual(t, "mount /dev/sda1 /boot/efi", l, "already mounted, no mount expected")
	}
}

func TestInstallBootloaderBIOS(t *testing.T) {
	s, rec := testSystem(t)
	rec.Respond("findmnt -n -o SOURCE", cmdexec.Result{Stdout: "/dev/sda1\n"}, nil)

	require.NoError(t, s.InstallBootloader(context.Background(), BootloaderOptions{
		Enabled: true,
		UEFI:    false,
	}))

	assert.Contains(t, rec.CallLines(), "grub-install --target=i386-pc /dev/sda")
}

func TestInstallBootloaderBIOSNVMe(t *testing.T) {
	s, rec := testSystem(t)
	rec.Respond("findmnt -n -o SOURCE", cmdexec.Result{Stdout: "/dev/nvme0n1p2\n"}, nil)

	require.NoError(t, s.InstallBootloader(context.Background(), BootloaderOptions{
		Enabled: true,
		UEFI:    false,
	}))

	assert.Contains(t, rec.CallLines(), "grub-install --target=i386-pc /dev/nvme0n1")
}

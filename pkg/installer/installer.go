// Package installer dispatches package records to their install
// strategy: pacman for official packages, the AUR helper for AUR
// packages, and a clone-and-make sequence for git packages. Individual
// record failures are collected, not fatal; the run continues down the
// list in file order.
package installer

import (
	"context"
	"path/filepath"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/gitsync"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/archstrap/archstrap/pkg/pkglist"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// AURHelper is the helper bootstrapped from the AUR and used for all
// AUR-tagged records.
const AURHelper = "yay"

const aurHelperRepo = "https://aur.archlinux.org/yay.git"

// Installer installs package records on behalf of a target user.
type Installer struct {
	runner cmdexec.Runner
	syncer *gitsync.Syncer
	logger zerolog.Logger

	// User is the unprivileged account AUR builds run as.
	User string
	// SrcDir is where git packages are checked out, usually
	// ~user/.local/src.
	SrcDir string
}

// New creates an Installer for the given user. srcDir receives git
// checkouts and the AUR helper build.
func New(runner cmdexec.Runner, user, srcDir string, dryRun bool) *Installer {
	return &Installer{
		runner: runner,
		syncer: gitsync.NewSyncer(runner, user, dryRun),
		logger: logging.GetLogger("installer"),
		User:   user,
		SrcDir: srcDir,
	}
}

// RecordResult is the outcome of one record's installation.
type RecordResult struct {
	Record pkglist.Record
	Err    error
}

// Failed reports whether the record's installation failed.
func (r RecordResult) Failed() bool { return r.Err != nil }

// InstallAll processes records strictly in order, announcing each with
// its position, and returns one result per record. A failing record is
// logged and the loop continues; the caller decides what to do with the
// collected failures.
func (in *Installer) InstallAll(ctx context.Context, records []pkglist.Record) []RecordResult {
	total := len(records)
	results := make([]RecordResult, 0, total)

	for i, record := range records {
		pterm.Info.Printfln("[%d/%d] Installing %s (%s)", i+1, total, record.Name, record.Description)

		err := in.install(ctx, record)
		if err != nil {
			in.logger.Warn().
				Err(err).
				Str("package", record.Name).
				Str("source", record.Source.String()).
				Msg("Record installation failed, continuing")
			pterm.Warning.Printfln("Failed to install %s, continuing", record.Name)
		}

		results = append(results, RecordResult{Record: record, Err: err})
	}

	return results
}

// install routes one record to exactly one strategy based on its source.
func (in *Installer) install(ctx context.Context, record pkglist.Record) error {
	switch record.Source {
	case pkglist.Official:
		return in.installOfficial(ctx, record.Name)
	case pkglist.AUR:
		return in.installAUR(ctx, record.Name)
	case pkglist.Git:
		return in.installGit(ctx, record.Name)
	default:
		return errors.Newf(errors.ErrInternal, "no install strategy for source %v", record.Source)
	}
}

// installOfficial installs from the distribution repositories. The
// --needed flag makes this a no-op for already-installed packages.
func (in *Installer) installOfficial(ctx context.Context, name string) error {
	if _, err := in.runner.Run(ctx, cmdexec.Command{
		Name: "pacman",
		Args: []string{"-S", "--noconfirm", "--needed", name},
	}); err != nil {
		return errors.Wrapf(err, errors.ErrRecord, "pacman install of %s failed", name)
	}
	return nil
}

// installAUR builds through the AUR helper as the target user. Requires
// BootstrapAUR to have succeeded earlier in the run.
func (in *Installer) installAUR(ctx context.Context, name string) error {
	if _, err := in.runner.Run(ctx, cmdexec.Command{
		Name: AURHelper,
		Args: []string{"-S", "--noconfirm", name},
		User: in.User,
	}); err != nil {
		return errors.Wrapf(err, errors.ErrRecord, "AUR install of %s failed", name)
	}
	return nil
}

// installGit clones the repository into the user's source directory and
// runs its own build and install steps.
func (in *Installer) installGit(ctx context.Context, repoURL string) error {
	dir := filepath.Join(in.SrcDir, pkglist.GitDirName(repoURL))

	if err := in.syncer.Sync(ctx, repoURL, dir, ""); err != nil {
		return errors.Wrapf(err, errors.ErrRecord, "cannot sync %s", repoURL)
	}

	if _, err := in.runner.Run(ctx, cmdexec.Command{Name: "make", Dir: dir}); err != nil {
		return errors.Wrapf(err, errors.ErrRecord, "build of %s failed", repoURL)
	}

	if _, err := in.runner.Run(ctx, cmdexec.Command{Name: "make", Args: []string{"install"}, Dir: dir}); err != nil {
		return errors.Wrapf(err, errors.ErrRecord, "install of %s failed", repoURL)
	}

	return nil
}

// BootstrapAUR makes the AUR helper available: a no-op when it is
// already installed, otherwise a clone and makepkg build as the target
// user. A failure here is fatal to the whole run since every AUR record
// depends on it.
func (in *Installer) BootstrapAUR(ctx context.Context) error {
	if _, err := in.runner.Run(ctx, cmdexec.Command{
		Name: "pacman",
		Args: []string{"-Qq", AURHelper},
	}); err == nil {
		in.logger.Debug().Str("helper", AURHelper).Msg("AUR helper already installed")
		return nil
	}

	pterm.Info.Printfln("Bootstrapping AUR helper %s", AURHelper)

	dir := filepath.Join(in.SrcDir, AURHelper)
	if err := in.syncer.Sync(ctx, aurHelperRepo, dir, ""); err != nil {
		return errors.Wrapf(err, errors.ErrBootstrap, "cannot fetch %s", AURHelper)
	}

	if _, err := in.runner.Run(ctx, cmdexec.Command{
		Name: "makepkg",
		Args: []string{"--noconfirm", "-si"},
		Dir:  dir,
		User: in.User,
	}); err != nil {
		return errors.Wrapf(err, errors.ErrBootstrap, "cannot build %s", AURHelper)
	}

	return nil
}

// Summarize prints the aggregate outcome and returns the failed results.
func Summarize(results []RecordResult) []RecordResult {
	var failed []RecordResult
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}

	if len(failed) == 0 {
		pterm.Success.Printfln("All %d packages installed", len(results))
		return nil
	}

	pterm.Warning.Printfln("%d of %d packages failed to install:", len(failed), len(results))
	for _, r := range failed {
		pterm.Warning.Printfln("  %s (%s)", r.Record.Name, r.Record.Source)
	}
	return failed
}

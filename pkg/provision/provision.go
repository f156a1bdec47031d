// Package provision runs the full post-install pipeline: a fixed,
// strictly sequential list of steps. Hard-fail points (user account,
// sudoers handoff, AUR helper bootstrap) abort the run; every other
// step logs its failure and the pipeline moves on.
package provision

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/config"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/gitsync"
	"github.com/archstrap/archstrap/pkg/installer"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/archstrap/archstrap/pkg/pkglist"
	"github.com/archstrap/archstrap/pkg/system"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// Pipeline owns one provisioning run.
type Pipeline struct {
	cfg    config.Config
	uefi   bool
	runner cmdexec.Runner
	sys    *system.System
	inst   *installer.Installer
	logger zerolog.Logger

	// Confirm asks the operator a yes/no question. Defaults to a pterm
	// interactive prompt; tests script it.
	Confirm func(prompt string) bool

	// Collector prompts for the account password.
	Collector *system.Collector

	cred *system.Credential
}

// New assembles a pipeline from the validated configuration. uefi
// reports whether the host booted through UEFI firmware.
func New(cfg config.Config, uefi bool, runner cmdexec.Runner, sys *system.System) *Pipeline {
	srcDir := filepath.Join(sys.UserHome(cfg.Username), ".local", "src")

	return &Pipeline{
		cfg:    cfg,
		uefi:   uefi,
		runner: runner,
		sys:    sys,
		inst:   installer.New(runner, cfg.Username, srcDir, cfg.DryRun),
		logger: logging.GetLogger("provision"),
		Confirm: func(prompt string) bool {
			ok, _ := pterm.DefaultInteractiveConfirm.Show(prompt)
			return ok
		},
		Collector: system.NewCollector(),
	}
}

// step is one entry of the fixed run queue. Fatal steps abort the whole
// pipeline on failure.
type step struct {
	name  string
	fatal bool
	run   func(context.Context) error
}

// Run executes the queue top to bottom. An interrupt or termination
// signal clears the in-memory credential, reports the abort, and stops
// the pipeline at the next step boundary (in-flight commands are killed
// through the context).
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer p.cleanup()

	for _, st := range p.steps() {
		if ctx.Err() != nil {
			p.logger.Warn().Msg("Aborting provisioning")
			pterm.Error.Println("Provisioning aborted")
			return errors.New(errors.ErrAborted, "provisioning aborted")
		}

		p.logger.Info().Str("step", st.name).Msg("Running step")

		if err := st.run(ctx); err != nil {
			if st.fatal || errors.IsErrorCode(err, errors.ErrAborted) {
				pterm.Error.Printfln("Step %s failed: %v", st.name, err)
				return errors.Wrapf(err, errors.ErrStep, "step %s failed", st.name)
			}

			p.logger.Warn().Err(err).Str("step", st.name).Msg("Step failed, continuing")
			pterm.Warning.Printfln("Step %s failed, continuing", st.name)
		}
	}

	return nil
}

// cleanup wipes the credential on both success and abort paths.
func (p *Pipeline) cleanup() {
	if p.cred != nil {
		p.cred.Clear()
	}
}

func (p *Pipeline) steps() []step {
	return []step{
		{name: "welcome", fatal: true, run: p.welcome},
		{name: "credentials", fatal: true, run: p.collectCredentials},
		{name: "user", fatal: true, run: p.setupUser},
		{name: "sudoers-permissive", fatal: true, run: p.permissiveSudoers},
		{name: "refresh-databases", fatal: false, run: p.refreshDatabases},
		{name: "aur-bootstrap", fatal: true, run: p.bootstrapAUR},
		{name: "packages", fatal: false, run: p.installPackages},
		{name: "dotfiles", fatal: false, run: p.deployDotfiles},
		{name: "timezone", fatal: false, run: p.timezone},
		{name: "locale", fatal: false, run: p.locale},
		{name: "hostname", fatal: false, run: p.hostname},
		{name: "bootloader", fatal: false, run: p.bootloader},
		{name: "services", fatal: false, run: p.services},
		{name: "tweaks", fatal: false, run: p.tweaks},
		{name: "sudoers-final", fatal: false, run: p.finalSudoers},
		{name: "finished", fatal: false, run: p.finished},
	}
}

func (p *Pipeline) welcome(_ context.Context) error {
	pterm.DefaultHeader.Println("archstrap")
	pterm.Printfln("This will provision the system for user %s, installing packages and applying configuration.", p.cfg.Username)

	if !p.Confirm("Proceed with provisioning?") {
		return errors.New(errors.ErrAborted, "operator declined to proceed")
	}
	return nil
}

func (p *Pipeline) collectCredentials(_ context.Context) error {
	cred, err := p.Collector.Collect(p.cfg.Username)
	if err != nil {
		return errors.Wrap(err, errors.ErrStep, "cannot read password")
	}
	p.cred = cred
	return nil
}

func (p *Pipeline) setupUser(ctx context.Context) error {
	if err := p.sys.CreateUser(ctx, p.cfg.Username, p.Confirm); err != nil {
		return err
	}

	if err := p.sys.SetPassword(ctx, p.cfg.Username, p.cred); err != nil {
		return err
	}

	// The password is no longer needed once the account has it.
	p.cred.Clear()

	_, err := p.sys.EnsureSrcDir(ctx, p.cfg.Username)
	return err
}

func (p *Pipeline) permissiveSudoers(ctx context.Context) error {
	// makepkg and the AUR helper need passwordless sudo while the
	// package loop runs; the final policy is applied at the end.
	return p.sys.ApplySudoers(ctx, system.PermissiveSudoers())
}

func (p *Pipeline) refreshDatabases(ctx context.Context) error {
	if _, err := p.runner.Run(ctx, cmdexec.Command{
		Name: "pacman",
		Args: []string{"-Syy", "--noconfirm"},
	}); err != nil {
		return errors.Wrap(err, errors.ErrStep, "cannot refresh package databases")
	}
	return nil
}

func (p *Pipeline) bootstrapAUR(ctx context.Context) error {
	return p.inst.BootstrapAUR(ctx)
}

func (p *Pipeline) installPackages(ctx context.Context) error {
	listPath := p.cfg.ProgsPath

	if p.cfg.EditListEnabled {
		if listPath == "" {
			listPath = filepath.Join(os.TempDir(), "archstrap-progs.csv")
			if err := pkglist.WriteDefault(listPath); err != nil {
				return err
			}
		}
		if err := pkglist.EditInteractive(p.cfg.Editor, listPath); err != nil {
			return err
		}
	}

	records, err := pkglist.Load(listPath)
	if err != nil {
		return err
	}

	results := p.inst.InstallAll(ctx, records)
	if failed := installer.Summarize(results); len(failed) > 0 {
		return errors.Newf(errors.ErrRecord, "%d of %d packages failed", len(failed), len(results))
	}
	return nil
}

func (p *Pipeline) deployDotfiles(ctx context.Context) error {
	if p.cfg.DotfilesRepo == "" {
		return nil
	}

	home := p.sys.UserHome(p.cfg.Username)
	syncer := gitsync.NewSyncer(p.runner, p.cfg.Username, p.cfg.DryRun)
	if err := syncer.Sync(ctx, p.cfg.DotfilesRepo, home, p.cfg.DotfilesBranch); err != nil {
		return err
	}

	// Repository clutter has no business in a home directory.
	if !p.cfg.DryRun {
		for _, name := range []string{"README.md", "LICENSE", "FUNDING.yml"} {
			_ = os.Remove(filepath.Join(home, name))
		}
	}
	return nil
}

func (p *Pipeline) timezone(ctx context.Context) error {
	return p.sys.SetTimezone(ctx, p.cfg.Timezone)
}

func (p *Pipeline) locale(ctx context.Context) error {
	return p.sys.SetLocale(ctx, p.cfg.Locale)
}

func (p *Pipeline) hostname(ctx context.Context) error {
	return p.sys.SetHostname(ctx, p.cfg.Hostname)
}

func (p *Pipeline) bootloader(ctx context.Context) error {
	return p.sys.InstallBootloader(ctx, system.BootloaderOptions{
		Enabled:      p.cfg.GrubEnabled,
		UEFI:         p.uefi,
		EFIDir:       p.cfg.EFIDir,
		EFIPartition: p.cfg.EFIPartition,
	})
}

func (p *Pipeline) services(ctx context.Context) error {
	return p.sys.EnableServices(ctx, "NetworkManager", "cronie")
}

func (p *Pipeline) tweaks(ctx context.Context) error {
	return p.sys.ApplyTweaks(ctx, p.cfg.IsLaptop)
}

func (p *Pipeline) finalSudoers(ctx context.Context) error {
	return p.sys.ApplySudoers(ctx, system.RestrictedSudoers())
}

func (p *Pipeline) finished(_ context.Context) error {
	pterm.Success.Println("Provisioning complete. Log out and log back in as " + p.cfg.Username + ".")
	return nil
}

package system

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
)

// UserExists checks for an existing account.
func (s *System) UserExists(ctx context.Context, user string) bool {
	_, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "id",
		Args: []string{"-u", user},
	})
	return err == nil
}

// CreateUser creates the target account with a home directory, wheel as
// the primary group, and zsh as the login shell. When the account
// already exists the confirm callback decides whether to reuse it; a
// decline aborts the run.
func (s *System) CreateUser(ctx context.Context, user string, confirm func(prompt string) bool) error {
	if s.UserExists(ctx, user) {
		prompt := fmt.Sprintf("User %s already exists. Reuse the account and overwrite its password?", user)
		if !confirm(prompt) {
			return errors.Newf(errors.ErrAborted, "refusing to reuse existing user %s", user)
		}

		// Make sure the primary group and login shell match what a
		// fresh account would get.
		if _, err := s.Runner.Run(ctx, cmdexec.Command{
			Name: "usermod",
			Args: []string{"-g", "wheel", "-s", "/bin/zsh", user},
		}); err != nil {
			return errors.Wrapf(err, errors.ErrStep, "cannot update group and shell of %s", user)
		}
		return nil
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "useradd",
		Args: []string{"-m", "-g", "wheel", "-s", "/bin/zsh", user},
	}); err != nil {
		return errors.Wrapf(err, errors.ErrStep, "cannot create user %s", user)
	}

	return nil
}

// SetPassword applies the credential through chpasswd's stdin so the
// password never appears in an argument list.
func (s *System) SetPassword(ctx context.Context, user string, cred *Credential) error {
	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name:  "chpasswd",
		Stdin: user + ":" + string(cred.Bytes()) + "\n",
	}); err != nil {
		return errors.Wrapf(err, errors.ErrStep, "cannot set password for %s", user)
	}
	return nil
}

// EnsureSrcDir creates ~user/.local/src, the checkout area for git
// packages and the AUR helper build, owned by the user.
func (s *System) EnsureSrcDir(ctx context.Context, user string) (string, error) {
	dir := filepath.Join(s.UserHome(user), ".local", "src")

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "mkdir",
		Args: []string{"-p", dir},
	}); err != nil {
		return "", errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dir)
	}

	if _, err := s.Runner.Run(ctx, cmdexec.Command{
		Name: "chown",
		Args: []string{"-R", user + ":", filepath.Join(s.UserHome(user), ".local")},
	}); err != nil {
		return "", errors.Wrapf(err, errors.ErrStep, "cannot chown %s", dir)
	}

	return dir, nil
}

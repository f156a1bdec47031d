// Package gitsync implements the repository sync primitive: clone a git
// repository into a temporary directory as an unprivileged user, then
// union-copy its contents over a destination directory. Files that only
// exist at the destination survive; conflicting files are overwritten.
// Repeated syncs of an unchanged source converge on the same content.
package gitsync

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/rs/zerolog"
)

// Syncer clones repositories and deploys their contents.
type Syncer struct {
	runner cmdexec.Runner
	logger zerolog.Logger

	// User owns the clone and the destination tree.
	User string

	// DryRun skips the clone and every filesystem mutation.
	DryRun bool
}

// NewSyncer creates a Syncer deploying as the given user.
func NewSyncer(runner cmdexec.Runner, user string, dryRun bool) *Syncer {
	return &Syncer{
		runner: runner,
		logger: logging.GetLogger("gitsync"),
		User:   user,
		DryRun: dryRun,
	}
}

// Sync clones sourceURL at branch (empty means the remote default) and
// copies the working tree over dest. The clone is shallow and includes
// submodules.
func (s *Syncer) Sync(ctx context.Context, sourceURL, dest, branch string) error {
	s.logger.Info().
		Str("source", sourceURL).
		Str("dest", dest).
		Str("branch", branch).
		Msg("Syncing repository")

	if s.DryRun {
		s.logger.Info().
			Str("source", sourceURL).
			Str("dest", dest).
			Msg("Dry run, sync skipped")
		return nil
	}

	tmp, err := os.MkdirTemp("", "archstrap-sync-")
	if err != nil {
		return errors.Wrap(err, errors.ErrSync, "cannot create temporary clone directory")
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	// The clone runs as the target user, so the tree must be theirs
	// before git touches it.
	if err := s.chown(ctx, tmp); err != nil {
		return err
	}

	args := []string{"clone", "--depth", "1", "--recursive"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, sourceURL, tmp)

	if _, err := s.runner.Run(ctx, cmdexec.Command{
		Name: "git",
		Args: args,
		User: s.User,
	}); err != nil {
		return errors.Wrapf(err, errors.ErrSync, "cannot clone %s", sourceURL)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrSync, "cannot create destination %s", dest)
	}

	if err := s.chown(ctx, dest); err != nil {
		return err
	}

	if err := CopyTree(tmp, dest); err != nil {
		return err
	}

	// Copied entries were written by this (root) process.
	return s.chown(ctx, dest)
}

func (s *Syncer) chown(ctx context.Context, path string) error {
	if s.User == "" {
		return nil
	}
	if _, err := s.runner.Run(ctx, cmdexec.Command{
		Name: "chown",
		Args: []string{"-R", s.User + ":", path},
	}); err != nil {
		return errors.Wrapf(err, errors.ErrSync, "cannot chown %s to %s", path, s.User)
	}
	return nil
}

// CopyTree recursively copies the contents of src into dest,
// overwriting files that exist in both trees and leaving dest-only
// files alone. Symlinks are recreated, not followed.
func CopyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.ErrSync, "cannot walk %s", path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Wrapf(err, errors.ErrSync, "cannot relativize %s", path)
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(dest, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linkDest, err := os.Readlink(path)
			if err != nil {
				return errors.Wrapf(err, errors.ErrSync, "cannot read symlink %s", path)
			}
			_ = os.Remove(target)
			if err := os.Symlink(linkDest, target); err != nil {
				return errors.Wrapf(err, errors.ErrSync, "cannot create symlink %s", target)
			}

		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "cannot create directory %s", target)
			}

		default:
			if err := copyFile(path, target, info.Mode().Perm()); err != nil {
				return err
			}
		}

		return nil
	})
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrSync, "cannot open %s", src)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot create %s", dest)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot copy to %s", dest)
	}

	return nil
}

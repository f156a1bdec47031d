package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCopyTreeOverwritesConflicts(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	writeFile(t, filepath.Join(src, ".zshrc"), "new zshrc")
	writeFile(t, filepath.Join(src, ".config", "nvim", "init.lua"), "new init")
	writeFile(t, filepath.Join(dest, ".zshrc"), "old zshrc")

	require.NoError(t, CopyTree(src, dest))

	assert.Equal(t, "new zshrc", readFile(t, filepath.Join(dest, ".zshrc")))
	assert.Equal(t, "new init", readFile(t, filepath.Join(dest, ".config", "nvim", "init.lua")))
}

func TestCopyTreePreservesDestOnlyFiles(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	writeFile(t, filepath.Join(src, "common"), "from source")
	writeFile(t, filepath.Join(dest, "local-only"), "precious")
	writeFile(t, filepath.Join(dest, "notes", "todo.txt"), "keep me")

	require.NoError(t, CopyTree(src, dest))

	assert.Equal(t, "precious", readFile(t, filepath.Join(dest, "local-only")))
	assert.Equal(t, "keep me", readFile(t, filepath.Join(dest, "notes", "todo.txt")))
	assert.Equal(t, "from source", readFile(t, filepath.Join(dest, "common")))
}

func TestCopyTreeIdempotent(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	writeFile(t, filepath.Join(src, "a"), "alpha")
	writeFile(t, filepath.Join(src, "dir", "b"), "beta")

	require.NoError(t, CopyTree(src, dest))
	first := snapshot(t, dest)

	require.NoError(t, CopyTree(src, dest))
	second := snapshot(t, dest)

	assert.Equal(t, first, second)
}

func TestCopyTreeSymlinks(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	writeFile(t, filepath.Join(src, "target"), "data")
	require.NoError(t, os.Symlink("target", filepath.Join(src, "link")))

	require.NoError(t, CopyTree(src, dest))

	linkDest, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	assert.Equal(t, "target", linkDest)
}

// snapshot maps relative paths to contents for the whole tree.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// fakeCloneRunner behaves like the real runner for git clone by writing
// files into the clone directory, and records everything else.
type fakeCloneRunner struct {
	*cmdexec.Recorder
	cloneFiles map[string]string
}

func (f *fakeCloneRunner) Run(ctx context.Context, cmd cmdexec.Command) (cmdexec.Result, error) {
	if cmd.Name == "git" && len(cmd.Args) > 0 && cmd.Args[0] == "clone" {
		cloneDir := cmd.Args[len(cmd.Args)-1]
		for name, content := range f.cloneFiles {
			path := filepath.Join(cloneDir, name)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return cmdexec.Result{}, err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return cmdexec.Result{}, err
			}
		}
	}
	return f.Recorder.Run(ctx, cmd)
}

func TestSyncDeploysCloneOverDestination(t *testing.T) {
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "keep"), "dest only")

	runner := &fakeCloneRunner{
		Recorder: cmdexec.NewRecorder(),
		cloneFiles: map[string]string{
			".zshrc":       "from repo",
			"bin/statusbar": "#!/bin/sh",
		},
	}

	s := NewSyncer(runner, "alice", false)
	require.NoError(t, s.Sync(context.Background(), "https://example.com/dotfiles.git", dest, ""))

	assert.Equal(t, "from repo", readFile(t, filepath.Join(dest, ".zshrc")))
	assert.Equal(t, "dest only", readFile(t, filepath.Join(dest, "keep")))

	lines := runner.CallLines()
	var cloneLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "git clone") {
			cloneLine = l
		}
	}
	require.NotEmpty(t, cloneLine, "git clone must be invoked")
	assert.Contains(t, cloneLine, "--depth 1")
	assert.Contains(t, cloneLine, "--recursive")

	// The clone runs as the unprivileged target user.
	for _, c := range runner.Calls() {
		if c.Name == "git" {
			assert.Equal(t, "alice", c.User)
		}
	}

	// Ownership handed to the user on both trees.
	chowns := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "chown -R alice:") {
			chowns++
		}
	}
	assert.GreaterOrEqual(t, chowns, 2)
}

func TestSyncWithBranch(t *testing.T) {
	runner := &fakeCloneRunner{Recorder: cmdexec.NewRecorder()}

	s := NewSyncer(runner, "alice", false)
	require.NoError(t, s.Sync(context.Background(), "https://example.com/repo.git", t.TempDir(), "develop"))

	var cloneLine string
	for _, l := range runner.CallLines() {
		if strings.HasPrefix(l, "git clone") {
			cloneLine = l
		}
	}
	assert.Contains(t, cloneLine, "-b develop")
}

func TestSyncCloneFailure(t *testing.T) {
	rec := cmdexec.NewRecorder()
	rec.Respond("git clone", cmdexec.Result{ExitCode: 128}, assertableError("fatal: repository not found"))

	s := NewSyncer(rec, "alice", false)
	err := s.Sync(context.Background(), "https://example.com/missing.git", t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.git")
}

func TestSyncDryRunTouchesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "home", "alice", ".local", "src", "foo")
	rec := cmdexec.NewRecorder()

	s := NewSyncer(rec, "alice", true)
	require.NoError(t, s.Sync(context.Background(), "https://example.com/foo.git", dest, ""))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "dry run must not create the destination")
	assert.Empty(t, rec.Calls(), "dry run must not run any command")
}

type assertableError string

func (e assertableError) Error() string { return string(e) }

package system

import (
	"context"
	"testing"

	"github.com/archstrap/archstrap/pkg/cmdexec"
	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSystem(t *testing.T) (*System, *cmdexec.Recorder) {
	t.Helper()
	rec := cmdexec.NewRecorder()
	s := New(rec, false)
	s.EtcDir = t.TempDir()
	s.BootDir = t.TempDir()
	s.ZoneinfoDir = t.TempDir()
	s.HomeRoot = t.TempDir()
	return s, rec
}

func TestCreateUserFresh(t *testing.T) {
	s, rec := testSystem(t)
	// id -u fails: no such user.
	rec.Respond("id -u", cmdexec.Result{ExitCode: 1}, errors.New(errors.ErrCommand, "no such user"))

	err := s.CreateUser(context.Background(), "alice", func(string) bool {
		t.Fatal("confirm must not be called for a fresh user")
		return false
	})
	require.NoError(t, err)

	assert.Contains(t, rec.CallLines(), "useradd -m -g wheel -s /bin/zsh alice")
}

func TestCreateUserExistingConfirmed(t *testing.T) {
	s, rec := testSystem(t)

	asked := false
	err := s.CreateUser(context.Background(), "alice", func(string) bool {
		asked = true
		return true
	})
	require.NoError(t, err)
	assert.True(t, asked)

	// The account is reused, not recreated, and its primary group and
	// shell are brought in line with a fresh account.
	lines := rec.CallLines()
	assert.NotContains(t, lines, "useradd -m -g wheel -s /bin/zsh alice")
	assert.Contains(t, lines, "usermod -g wheel -s /bin/zsh alice")
}

func TestCreateUserExistingDeclined(t *testing.T) {
	s, _ := testSystem(t)

	err := s.CreateUser(context.Background(), "alice", func(string) bool { return false })
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAborted))
}

func TestSetPasswordUsesStdin(t *testing.T) {
	s, rec := testSystem(t)

	cred := NewCredential([]byte("hunter2"))
	defer cred.Clear()

	require.NoError(t, s.SetPassword(context.Background(), "alice", cred))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chpasswd", calls[0].Name)
	assert.Empty(t, calls[0].Args, "password must not appear in the argument list")
	assert.Equal(t, "alice:hunter2\n", calls[0].Stdin)
}

func TestEnsureSrcDir(t *testing.T) {
	s, rec := testSystem(t)

	dir, err := s.EnsureSrcDir(context.Background(), "alice")
	require.NoError(t, err)
	assert.Contains(t, dir, ".local/src")

	lines := rec.CallLines()
	assert.Contains(t, lines[0], "mkdir -p")
	assert.Contains(t, lines[1], "chown -R alice:")
}

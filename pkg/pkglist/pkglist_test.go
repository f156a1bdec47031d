package pkglist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		tag     string
		want    Source
		wantErr bool
	}{
		{"", Official, false},
		{"A", AUR, false},
		{"G", Git, false},
		{"X", Official, true},
		{"a", Official, true},
		{"AG", Official, true},
	}

	for _, tt := range tests {
		got, err := ParseSource(tt.tag)
		if tt.wantErr {
			require.Error(t, err, "tag %q", tt.tag)
			assert.True(t, errors.IsErrorCode(err, errors.ErrUnknownTag))
			continue
		}
		require.NoError(t, err, "tag %q", tt.tag)
		assert.Equal(t, tt.want, got, "tag %q", tt.tag)
	}
}

func TestParseKeepsFileOrder(t *testing.T) {
	data := []byte(`tag,name,description
,firefox,"browser"
A,visual-studio-code-bin,"editor"
G,https://example.com/foo.git,"tool"
`)

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{Source: Official, Name: "firefox", Description: "browser"}, records[0])
	assert.Equal(t, Record{Source: AUR, Name: "visual-studio-code-bin", Description: "editor"}, records[1])
	assert.Equal(t, Record{Source: Git, Name: "https://example.com/foo.git", Description: "tool"}, records[2])
}

func TestParseRejectsUnknownTag(t *testing.T) {
	data := []byte("tag,name,description\nZ,mystery,\"what\"\n")

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Z"`)
}

func TestParseRejectsEmptyName(t *testing.T) {
	data := []byte("tag,name,description\n,,\"no name\"\n")

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrListParse))
}

func TestLoadEmbeddedDefault(t *testing.T) {
	records, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	// The default list leads with official packages needed by later
	// steps (base-devel, git for the AUR bootstrap).
	names := make(map[string]bool)
	for _, r := range records {
		names[r.Name] = true
	}
	assert.True(t, names["base-devel"])
	assert.True(t, names["git"])
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progs.csv")
	require.NoError(t, os.WriteFile(path, []byte("tag,name,description\n,htop,\"viewer\"\n"), 0644))

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "htop", records[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrListParse))
}

func TestGitDirName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/foo.git", "foo"},
		{"https://example.com/foo", "foo"},
		{"https://example.com/deep/path/bar.git", "bar"},
		{"git://example.com/baz.git/", "baz"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GitDirName(tt.url), "url %s", tt.url)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progs.csv")
	require.NoError(t, WriteDefault(path))

	records, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCollector returns the given inputs in order.
func scriptedCollector(inputs ...string) *Collector {
	i := 0
	return &Collector{
		ReadPassword: func() ([]byte, error) {
			in := inputs[i]
			i++
			return []byte(in), nil
		},
	}
}

func TestCollectMatchingPair(t *testing.T) {
	c := scriptedCollector("hunter2", "hunter2")

	cred, err := c.Collect("alice")
	require.NoError(t, err)
	defer cred.Clear()

	assert.Equal(t, "hunter2", string(cred.Bytes()))
	assert.False(t, cred.Empty())
}

func TestCollectRetriesUntilMatch(t *testing.T) {
	c := scriptedCollector("first", "second", "third", "nope", "match", "match")

	cred, err := c.Collect("alice")
	require.NoError(t, err)
	defer cred.Clear()

	assert.Equal(t, "match", string(cred.Bytes()))
}

func TestCollectAcceptsEmptyPair(t *testing.T) {
	// Two empty entries are byte-identical and accepted as "no
	// password constraint".
	c := scriptedCollector("", "")

	cred, err := c.Collect("alice")
	require.NoError(t, err)
	defer cred.Clear()

	assert.True(t, cred.Empty())
}

func TestCollectNeverReturnsMismatch(t *testing.T) {
	inputs := []string{"a", "b", "c", "d", "same", "same"}
	c := scriptedCollector(inputs...)

	cred, err := c.Collect("alice")
	require.NoError(t, err)
	defer cred.Clear()

	// Only the final byte-identical pair can escape the loop.
	assert.Equal(t, "same", string(cred.Bytes()))
}

func TestCredentialClear(t *testing.T) {
	raw := []byte("secret")
	cred := NewCredential(raw)
	cred.Clear()

	assert.True(t, cred.Empty())
	for _, b := range raw {
		assert.EqualValues(t, 0, b)
	}

	// Clear twice is safe.
	cred.Clear()
}

func TestCredentialStringRedacted(t *testing.T) {
	cred := NewCredential([]byte("secret"))
	defer cred.Clear()

	assert.Equal(t, "<redacted>", cred.String())
}

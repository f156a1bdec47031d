package system

import (
	"bytes"
	"fmt"
	"os"

	"github.com/muesli/crunchy"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Credential holds a password just long enough to hand it to the
// account setup step. Clear must be called on every exit path.
type Credential struct {
	password []byte
}

// NewCredential wraps a password. The Credential takes ownership of the
// slice.
func NewCredential(password []byte) *Credential {
	return &Credential{password: password}
}

// Bytes exposes the raw password for the chpasswd stdin pipe.
func (c *Credential) Bytes() []byte {
	return c.password
}

// Empty reports whether the password is the empty string.
func (c *Credential) Empty() bool {
	return len(c.password) == 0
}

// Clear zeroes the password bytes. Safe to call more than once.
func (c *Credential) Clear() {
	for i := range c.password {
		c.password[i] = 0
	}
	c.password = c.password[:0]
}

// String keeps the password out of logs and %v formatting.
func (c *Credential) String() string {
	return "<redacted>"
}

// Collector prompts for a password twice with hidden input and repeats
// until both entries are byte-identical. The value is never echoed or
// logged.
type Collector struct {
	// ReadPassword reads one hidden line. Defaults to reading from the
	// terminal; tests script it.
	ReadPassword func() ([]byte, error)
}

// NewCollector creates a Collector reading from the controlling
// terminal.
func NewCollector() *Collector {
	return &Collector{
		ReadPassword: func() ([]byte, error) {
			defer fmt.Println()
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
	}
}

// Collect loops the prompt pair until both entries match and returns
// the credential. Two matching empty entries are accepted and treated
// as "no password constraint"; the operator gets a warning instead of a
// rejection. Non-empty passwords get a strength advisory that never
// blocks.
func (c *Collector) Collect(user string) (*Credential, error) {
	for {
		pterm.Printf("Password for %s: ", user)
		first, err := c.ReadPassword()
		if err != nil {
			return nil, err
		}

		pterm.Printf("Retype password: ")
		second, err := c.ReadPassword()
		if err != nil {
			wipe(first)
			return nil, err
		}

		if !bytes.Equal(first, second) {
			wipe(first)
			wipe(second)
			pterm.Warning.Println("Passwords do not match, try again")
			continue
		}

		wipe(second)

		if len(first) == 0 {
			pterm.Warning.Printfln("Empty password accepted for %s", user)
		} else if err := crunchy.NewValidator().Check(string(first)); err != nil {
			pterm.Warning.Printfln("Weak password: %v", err)
		}

		return NewCredential(first), nil
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

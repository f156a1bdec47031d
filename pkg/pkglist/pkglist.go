// Package pkglist parses the package record list: a CSV file with one
// header line and tag,name,description rows. The tag column selects the
// install source and is decoded into a closed enum at parse time;
// unknown tags are a parse error, not a silent skip.
package pkglist

import (
	"bytes"
	_ "embed"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/archstrap/archstrap/pkg/errors"
	"github.com/archstrap/archstrap/pkg/logging"
	"github.com/gocarina/gocsv"
)

// Source identifies where a package is installed from.
type Source int

const (
	// Official packages come from the distribution repositories via pacman.
	Official Source = iota
	// AUR packages are built by the AUR helper on behalf of the user.
	AUR
	// Git packages are cloned and built from their own repository.
	Git
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case Official:
		return "official"
	case AUR:
		return "aur"
	case Git:
		return "git"
	default:
		return "unknown"
	}
}

// ParseSource decodes a tag column value. The empty tag maps to
// Official; anything other than "", "A", or "G" is rejected.
func ParseSource(tag string) (Source, error) {
	switch tag {
	case "":
		return Official, nil
	case "A":
		return AUR, nil
	case "G":
		return Git, nil
	default:
		return Official, errors.Newf(errors.ErrUnknownTag, "unknown package source tag %q", tag)
	}
}

// Record is one entry of the package list.
type Record struct {
	Source      Source
	Name        string
	Description string
}

type rawRecord struct {
	Tag         string `csv:"tag"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
}

//go:embed progs.csv
var defaultList []byte

// Load reads records from path, or the embedded default list when path
// is empty. Records keep file order.
func Load(path string) ([]Record, error) {
	logger := logging.GetLogger("pkglist")

	data := defaultList
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrListParse, "cannot read package list %s", path)
		}
	}

	records, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("count", len(records)).Str("path", path).Msg("Package list loaded")
	return records, nil
}

// Parse decodes CSV data into records, validating every tag and name.
func Parse(data []byte) ([]Record, error) {
	var raw []rawRecord
	if err := gocsv.Unmarshal(bytes.NewReader(data), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrListParse, "cannot parse package list")
	}

	records := make([]Record, 0, len(raw))
	for i, r := range raw {
		source, err := ParseSource(strings.TrimSpace(r.Tag))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrListParse, "record %d", i+1)
		}

		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, errors.Newf(errors.ErrListParse, "record %d has an empty name", i+1)
		}

		records = append(records, Record{
			Source:      source,
			Name:        name,
			Description: strings.TrimSpace(r.Description),
		})
	}

	return records, nil
}

// GitDirName derives the checkout directory name from a repository URL:
// the last path element with any .git suffix removed.
func GitDirName(repoURL string) string {
	name := path.Base(strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git"))
	return name
}

// WriteDefault writes the embedded default list to path so the operator
// can edit it before installing.
func WriteDefault(path string) error {
	if err := os.WriteFile(path, defaultList, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write package list to %s", path)
	}
	return nil
}

// EditInteractive opens the list in the given editor, attached to the
// terminal. Runs outside the Runner abstraction because the editor needs
// the controlling tty, not captured pipes.
func EditInteractive(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.ErrCommand, "editor %s failed", editor)
	}
	return nil
}

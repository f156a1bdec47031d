// Package style defines the terminal styling used for top-level
// output. Styles use semantic names and adaptive colors that adjust to
// light and dark terminal themes; the definitions live in an embedded
// YAML file so they stay in one place.
package style

import (
	_ "embed"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// ColorDef is an adaptive color definition in YAML.
type ColorDef struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// StyleDef is a style definition in YAML.
type StyleDef struct {
	Bold         bool   `yaml:"bold,omitempty"`
	Italic       bool   `yaml:"italic,omitempty"`
	Underline    bool   `yaml:"underline,omitempty"`
	Foreground   string `yaml:"foreground,omitempty"`
	MarginBottom int    `yaml:"marginBottom,omitempty"`
	PaddingLeft  int    `yaml:"paddingLeft,omitempty"`
}

type configFile struct {
	Colors map[string]ColorDef `yaml:"colors"`
	Styles map[string]StyleDef `yaml:"styles"`
}

//go:embed styles.yaml
var embedded []byte

var registry map[string]lipgloss.Style

func init() {
	if err := load(embedded); err != nil {
		// The embedded definitions are part of the binary; failing to
		// parse them is a programming error.
		panic(fmt.Sprintf("style: invalid embedded styles.yaml: %v", err))
	}
}

func load(data []byte) error {
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	colors := make(map[string]lipgloss.AdaptiveColor, len(cfg.Colors))
	for name, def := range cfg.Colors {
		colors[name] = lipgloss.AdaptiveColor{Light: def.Light, Dark: def.Dark}
	}

	registry = make(map[string]lipgloss.Style, len(cfg.Styles))
	for name, def := range cfg.Styles {
		s := lipgloss.NewStyle().
			Bold(def.Bold).
			Italic(def.Italic).
			Underline(def.Underline)
		if def.Foreground != "" {
			if c, ok := colors[def.Foreground]; ok {
				s = s.Foreground(c)
			}
		}
		if def.MarginBottom > 0 {
			s = s.MarginBottom(def.MarginBottom)
		}
		if def.PaddingLeft > 0 {
			s = s.PaddingLeft(def.PaddingLeft)
		}
		registry[name] = s
	}

	return nil
}

// Get returns the named style, or a zero style for unknown names so
// callers can render unconditionally.
func Get(name string) lipgloss.Style {
	if s, ok := registry[name]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

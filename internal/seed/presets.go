package seed

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// Preset sizes a seeding run.
type Preset struct {
	Users            int     `yaml:"users"`
	Posts            int     `yaml:"posts"`
	CommentsPerPost  int     `yaml:"commentsPerPost"`
	LikesPerPost     int     `yaml:"likesPerPost"`
	BookmarksPerUser int     `yaml:"bookmarksPerUser"`
	DraftRatio       float64 `yaml:"draftRatio"`
}

// Catalog is the parsed presets file: the taxonomy every run creates and the
// named presets.
type Catalog struct {
	Categories []string          `yaml:"categories"`
	Tags       []string          `yaml:"tags"`
	Presets    map[string]Preset `yaml:"presets"`
}

// DefaultCatalog parses the presets compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(builtinPresets)
}

// LoadCatalog reads a presets file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a presets document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	for name, p := range c.Presets {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return &c, nil
}

// Preset looks up a preset by name, ignoring case.
func (c *Catalog) Preset(name string) (Preset, error) {
	if p, ok := c.Presets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return Preset{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(c.Names(), ", "))
}

// Names lists the presets in alphabetical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Preset) validate() error {
	switch {
	case p.Users < 1:
		return fmt.Errorf("users must be at least 1")
	case p.Posts < 0 || p.CommentsPerPost < 0 || p.LikesPerPost < 0 || p.BookmarksPerUser < 0:
		return fmt.Errorf("counts must not be negative")
	case p.DraftRatio < 0 || p.DraftRatio > 1:
		return fmt.Errorf("draftRatio must be between 0 and 1")
	}
	return nil
}

package styles

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_styles.yaml
var defaultCatalog []byte

type Style struct {
	Key         string `yaml:"key" json:"key"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Prompt      string `yaml:"prompt" json:"-"`
}

type Catalog struct {
	Styles       []Style  `yaml:"styles" json:"styles"`
	AspectRatios []string `yaml:"aspect_ratios" json:"aspect_ratios"`

	byKey map[string]Style
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read styles file %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse styles catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, fmt.Errorf("invalid styles catalog: %w", err)
	}
	return &c, nil
}

// Default is the embedded catalog; it panics only if the embedded file is broken.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) index() error {
	if len(c.Styles) == 0 {
		return fmt.Errorf("no styles defined")
	}
	if len(c.AspectRatios) == 0 {
		return fmt.Errorf("no aspect ratios defined")
	}
	c.byKey = make(map[string]Style, len(c.Styles))
	for i, s := range c.Styles {
		if s.Key == "" {
			return fmt.Errorf("style at index %d has empty key", i)
		}
		if strings.TrimSpace(s.Prompt) == "" {
			return fmt.Errorf("style %s has empty prompt", s.Key)
		}
		if _, dup := c.byKey[s.Key]; dup {
			return fmt.Errorf("duplicate style key: %s", s.Key)
		}
		c.byKey[s.Key] = s
	}
	for _, ar := range c.AspectRatios {
		if !isRatio(ar) {
			return fmt.Errorf("malformed aspect ratio: %s", ar)
		}
	}
	return nil
}

func (c *Catalog) Get(key string) (Style, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

func (c *Catalog) HasAspectRatio(ar string) bool {
	for _, a := range c.AspectRatios {
		if a == ar {
			return true
		}
	}
	return false
}

// Prompt builds the instruction sent with the photo for the given style and ratio.
func (c *Catalog) Prompt(key, aspectRatio string) (string, bool) {
	s, ok := c.Get(key)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s Output a single image with aspect ratio %s.", strings.TrimSpace(s.Prompt), aspectRatio), true
}

func isRatio(s string) bool {
	w, h, ok := strings.Cut(s, ":")
	return ok && isDigits(w) && isDigits(h)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

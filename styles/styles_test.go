package styles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"1:1", "3:4", "4:3", "9:16", "16:9"}, c.AspectRatios)
	s, ok := c.Get("rustic")
	require.True(t, ok)
	assert.Equal(t, "Rustic", s.Name)

	_, ok = c.Get("cubist")
	assert.False(t, ok)

	assert.True(t, c.HasAspectRatio("16:9"))
	assert.False(t, c.HasAspectRatio("2:1"))
}

func TestPrompt(t *testing.T) {
	c := Default()
	p, ok := c.Prompt("flat_lay", "1:1")
	require.True(t, ok)
	assert.Contains(t, p, "flat lay")
	assert.Contains(t, p, "aspect ratio 1:1")

	_, ok = c.Prompt("nope", "1:1")
	assert.False(t, ok)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.yaml")
	content := `
aspect_ratios: ["1:1"]
styles:
  - key: noir
    name: Noir
    description: Black and white
    prompt: Make it noir.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Styles, 1)
	_, ok := c.Get("noir")
	assert.True(t, ok)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no styles":    `aspect_ratios: ["1:1"]`,
		"duplicate":    "aspect_ratios: [\"1:1\"]\nstyles:\n  - {key: a, prompt: x}\n  - {key: a, prompt: y}",
		"empty prompt": "aspect_ratios: [\"1:1\"]\nstyles:\n  - {key: a}",
		"bad ratio":    "aspect_ratios: [\"wide\"]\nstyles:\n  - {key: a, prompt: x}",
		"not yaml":     "styles: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

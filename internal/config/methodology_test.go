package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "methodology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMethodology_Defaults(t *testing.T) {
	m, err := LoadMethodology("")
	require.NoError(t, err)

	assert.Equal(t, []string{"ida_1971", "ida_2021", "ida_2071"}, m.Scenarios)
	assert.InDelta(t, 1.28, m.GustFactor, 1e-9)
	assert.InDelta(t, 2.23694, m.MSToMPH, 1e-9)
	assert.Equal(t, []float64{0.03, 0.15, 0.35, 0.7}, m.TerrainUpperBounds)
	assert.Equal(t, ContentsCurve, m.Contents.Mode)
	assert.Equal(t, 5, m.DamageDescriptors.Building)
	assert.Equal(t, 6, m.DamageDescriptors.Contents)
	assert.Equal(t, "huGbsOccMapping", m.Sheets.OccupancyMapping)

	g, ok := m.SubtypeGroup("M")
	require.True(t, ok)
	assert.Equal(t, 5, g.Start)
	assert.Equal(t, 19, g.End)

	_, ok = m.SubtypeGroup("X")
	assert.False(t, ok)
}

func TestLoadMethodology_OverridesKeepOtherDefaults(t *testing.T) {
	path := writeYAML(t, `
scenarios: [base, future]
default_scheme: LA_DEFAULT
contents:
  mode: fraction
  fraction: 0.4
`)
	m, err := LoadMethodology(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "future"}, m.Scenarios)
	assert.Equal(t, "LA_DEFAULT", m.DefaultScheme)
	assert.Equal(t, ContentsFraction, m.Contents.Mode)
	assert.InDelta(t, 0.4, m.Contents.Fraction, 1e-9)
	assert.InDelta(t, 1.28, m.GustFactor, 1e-9)
	assert.Equal(t, "fd_id", m.Inventory.ID)
}

func TestLoadMethodology_Invalid(t *testing.T) {
	cases := map[string]string{
		"gust":     "gust_factor: 0\n",
		"terrain":  "terrain_upper_bounds: [0.5, 0.1, 0.2, 0.9]\n",
		"contents": "contents:\n  mode: guess\n",
		"group":    "subtype_groups:\n  - {construction_type: W, start: 4, end: 2}\n",
		"cond":     "conditions:\n  - {char_type: Garage, depends_on: Shutters}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMethodology(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMethodology_MissingFile(t *testing.T) {
	_, err := LoadMethodology(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading methodology file")
}

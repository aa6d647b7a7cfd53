package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
[analyzer]
diff = true
jobs = 3
step-budget = 100

[cache]
dir = ".cache"

[output]
format = "json"

[stubs]
paths = ["stubs", "/abs/vendor"]
`), 0o600))

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), cfg.Path)
	assert.True(t, cfg.Analyzer.Diff)
	assert.Equal(t, 3, cfg.Analyzer.Jobs)
	assert.Equal(t, 100, cfg.Analyzer.StepBudget)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "auto", cfg.Output.Color, "defaults survive a partial file")
	assert.Equal(t, filepath.Join(root, ".cache"), cfg.Cache.Dir)
	assert.Equal(t, []string{filepath.Join(root, "stubs"), "/abs/vendor"}, cfg.Stubs.Paths)
}

func TestDiscoverWithoutFile(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[analyzer]\nfast = true\n",
		"bad format":   "[output]\nformat = \"xml\"\n",
		"bad jobs":     "[analyzer]\njobs = -1\n",
		"invalid toml": "[analyzer\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

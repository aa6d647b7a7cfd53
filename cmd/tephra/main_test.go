package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesStub = `
classes:
  - name: Base
    methods:
      - name: area
        returns: int
        body:
          - return: {int: 0}
  - name: Square
    extends: Base
    implements: [Measurable]
  - name: Measurable
    kind: interface
`

const brokenStub = `
functions:
  - name: broken
    returns: int
    body:
      - return: {string: a}
`

// execute runs the root command with an empty config so a tephra.toml
// above the working directory cannot leak into the test.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "tephra.toml")
	require.NoError(t, os.WriteFile(cfg, nil, 0o600))

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg, "--color", "off"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeStub(t *testing.T, name, text string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o600))
	return dir
}

func exitCode(err error) int {
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestCombineCommand(t *testing.T) {
	out, err := execute(t, "combine", "int", "int")
	require.NoError(t, err)
	assert.Equal(t, "int\n", out)
}

func TestContainsCommand(t *testing.T) {
	out, err := execute(t, "contains", "int", "int|string")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "contains", "string", "int")
	assert.Equal(t, 1, exitCode(err))
	assert.Equal(t, "false\n", out)
}

func TestContainsWithStubs(t *testing.T) {
	dir := writeStub(t, "shapes.yaml", shapesStub)
	out, err := execute(t, "contains", "--stubs", dir, "Square", "Base")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestHierarchyCommand(t *testing.T) {
	dir := writeStub(t, "shapes.yaml", shapesStub)
	out, err := execute(t, "hierarchy", "--class", "square", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "class Square extends Base implements Measurable [populated]")
	assert.Contains(t, out, "parents:    Base")
	assert.Contains(t, out, "interfaces: Measurable")
	assert.Contains(t, out, "area <- Base")

	_, err = execute(t, "hierarchy", "--class", "Circle", dir)
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := writeStub(t, "lib.yaml", brokenStub)
	out, err := execute(t, "analyze", "--ui", "off", "--format", "short", dir)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "lib.yaml")

	clean := writeStub(t, "ok.yaml", shapesStub)
	out, err = execute(t, "analyze", "--ui", "off", clean)
	require.NoError(t, err)
	assert.Contains(t, out, "1 files, 0 errors, 0 warnings")
}

func TestAnalyzeRejectsUnknownFormat(t *testing.T) {
	dir := writeStub(t, "lib.yaml", brokenStub)
	_, err := execute(t, "analyze", "--ui", "off", "--format", "xml", dir)
	require.Error(t, err)
	assert.Equal(t, -1, exitCode(err))
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json", "--hash")
	require.NoError(t, err)
	assert.Contains(t, out, `"tool": "tephra"`)
	assert.Contains(t, out, `"git_commit": "unknown"`)
}

package diagfmt

import (
	"bytes"
	"strings"
	"testing"
)

// TestPathModes проверяет различные режимы форматирования путей
func TestPathModes(t *testing.T) {
	fs, bag := stubBag(t)

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{name: "Absolute path", mode: PathModeAbsolute, contains: "/work/project/stubs/test.yaml:5:9"},
		{name: "Relative path", mode: PathModeRelative, contains: "stubs/test.yaml:5:9"},
		{name: "Basename only", mode: PathModeBasename, contains: "test.yaml:5:9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{Context: 1, PathMode: tt.mode, BaseDir: "/work/project"})
			output := buf.String()

			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got:\n%s", tt.contains, output)
			}
			if !strings.Contains(output, "ERROR ANA3013 InvalidReturnStatement") {
				t.Error("Expected severity and code in output")
			}
			if !strings.Contains(output, "expecting int") {
				t.Error("Expected error message in output")
			}
		})
	}
}

// TestPathModeAuto проверяет авто-режим выбора пути
func TestPathModeAuto(t *testing.T) {
	if got := formatPath("stubs/a.yaml", PathModeAuto, ""); got != "stubs/a.yaml" {
		t.Errorf("short path should stay, got %s", got)
	}
	long := "/very/long/absolute/path/to/some/nested/directory/stubs.yaml"
	if got := formatPath(long, PathModeAuto, ""); got != "stubs.yaml" {
		t.Errorf("long path should shrink to its base, got %s", got)
	}
}

func TestPrettyCaretAndNotes(t *testing.T) {
	fs, bag := stubBag(t)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	output := buf.String()

	if !strings.Contains(output, "5 |       - return: {string: a}") {
		t.Fatalf("expected source line, got:\n%s", output)
	}
	if !strings.Contains(output, "  |         ^~~~~~") {
		t.Fatalf("expected caret under the span, got:\n%s", output)
	}
	if !strings.Contains(output, "note: test.yaml:3:14: declared here") {
		t.Fatalf("expected note with location, got:\n%s", output)
	}
}

func TestPrettyWithoutColorHasNoEscapes(t *testing.T) {
	fs, bag := stubBag(t)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("unexpected escape codes:\n%q", buf.String())
	}

	buf.Reset()
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, Color: true})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected escape codes with Color")
	}
}

package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"tephra/internal/diag"
	"tephra/internal/source"
)

const stubText = `functions:
  - name: wrong
    returns: int
    body:
      - return: {string: a}
`

func stubBag(t *testing.T) (*source.FileSet, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("/work/project/stubs/test.yaml", []byte(stubText))
	file := fs.Get(fileID)

	bag := diag.NewBag(10)
	primary := file.SpanAt(source.LineCol{Line: 5, Col: 9}, 6)
	d := diag.NewDefault(diag.InvalidReturnStatement, primary, "wrong returns 'a', expecting int")
	d = d.WithNote(file.SpanAt(source.LineCol{Line: 3, Col: 14}, 3), "declared here")
	bag.Add(d)
	bag.Add(diag.NewDefault(diag.PossiblyUndefinedVariable, file.SpanAt(source.LineCol{Line: 2, Col: 11}, 5), "possibly undefined variable $x"))
	return fs, bag
}

// TestJSONBasic проверяет базовое JSON форматирование
func TestJSONBasic(t *testing.T) {
	fs, bag := stubBag(t)

	var buf bytes.Buffer
	opts := JSONOpts{
		IncludePositions: true,
		PathMode:         PathModeBasename,
		IncludeNotes:     true,
	}
	if err := JSON(&buf, bag, fs, opts); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Invalid JSON output: %v\nOutput: %s", err, buf.String())
	}
	if output.Count != 2 || output.Errors != 1 || output.Warnings != 1 {
		t.Errorf("unexpected counters: %+v", output)
	}

	d := output.Diagnostics[0]
	if d.Severity != "ERROR" {
		t.Errorf("Expected severity=ERROR, got %s", d.Severity)
	}
	if d.Code != "ANA3013" || d.Name != "InvalidReturnStatement" {
		t.Errorf("Expected ANA3013 InvalidReturnStatement, got %s %s", d.Code, d.Name)
	}
	if d.Location.File != "test.yaml" {
		t.Errorf("Expected file=test.yaml, got %s", d.Location.File)
	}
	if d.Location.StartLine != 5 || d.Location.StartCol != 9 {
		t.Errorf("Expected 5:9, got %d:%d", d.Location.StartLine, d.Location.StartCol)
	}
	if len(d.Notes) != 1 || d.Notes[0].Location.StartLine != 3 {
		t.Errorf("Expected one note on line 3, got %+v", d.Notes)
	}
}

// TestJSONMaxAndPositions проверяет обрезку и отсутствие позиций
func TestJSONMaxAndPositions(t *testing.T) {
	fs, bag := stubBag(t)

	out := BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 1, PathMode: PathModeAbsolute})
	if out.Count != 1 {
		t.Fatalf("Expected count=1, got %d", out.Count)
	}
	loc := out.Diagnostics[0].Location
	if loc.StartLine != 0 || loc.StartCol != 0 {
		t.Errorf("positions should be omitted, got %d:%d", loc.StartLine, loc.StartCol)
	}
	if loc.File != "/work/project/stubs/test.yaml" {
		t.Errorf("Expected absolute path, got %s", loc.File)
	}
	if out.Diagnostics[0].Notes != nil {
		t.Errorf("notes should be omitted without IncludeNotes")
	}
}

func TestSarif(t *testing.T) {
	fs, bag := stubBag(t)

	var buf bytes.Buffer
	err := Sarif(&buf, bag, fs, SarifRunMeta{ToolName: "tephra", ToolVersion: "test", BaseDir: "/work/project"})
	if err != nil {
		t.Fatalf("Sarif() error: %v", err)
	}
	var log sarifLog
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("Invalid SARIF output: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("unexpected log header: %+v", log)
	}
	run := log.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 || run.Tool.Driver.Rules[0].ID != "ANA3007" {
		t.Errorf("rules should be sorted by code, got %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 2 || run.Results[1].Level != "warning" {
		t.Fatalf("unexpected results: %+v", run.Results)
	}
	if uri := run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI; uri != "stubs/test.yaml" {
		t.Errorf("Expected relative uri, got %s", uri)
	}
}

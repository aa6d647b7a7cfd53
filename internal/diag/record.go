package diag

import (
	"tephra/internal/source"
)

// Record is a diagnostic detached from a FileSet: the file is named by path
// and the position by line/column so the record survives across runs whose
// FileIDs and byte offsets differ.
type Record struct {
	Severity Severity `msgpack:"s"`
	Code     Code     `msgpack:"c"`
	Message  string   `msgpack:"m"`
	Path     string   `msgpack:"p"`
	Line     uint32   `msgpack:"l"`
	Col      uint32   `msgpack:"k"`
	Len      uint32   `msgpack:"n"`
}

// ToRecord detaches d. Notes are dropped.
func ToRecord(fs *source.FileSet, d Diagnostic) Record {
	start, _ := fs.Resolve(d.Primary)
	return Record{
		Severity: d.Severity,
		Code:     d.Code,
		Message:  d.Message,
		Path:     fs.Get(d.Primary.File).Path,
		Line:     start.Line,
		Col:      start.Col,
		Len:      d.Primary.Len(),
	}
}

// Shift moves the record by delta lines; a symbol that moved inside an
// otherwise unchanged file carries its diagnostics along.
func (r Record) Shift(delta int64) Record {
	line := int64(r.Line) + delta
	if line < 1 {
		line = 1
	}
	r.Line = uint32(line) //nolint:gosec // clamped above, bounded by the file
	return r
}

// Attach resolves the record's path in fs. It fails when the file is not
// part of the current run.
func (r Record) Attach(fs *source.FileSet) (Diagnostic, bool) {
	f, ok := fs.GetByPath(r.Path)
	if !ok {
		return Diagnostic{}, false
	}
	span := f.SpanAt(source.LineCol{Line: r.Line, Col: r.Col}, r.Len)
	return New(r.Severity, r.Code, span, r.Message), true
}

// Package scan turns decoded stub files into codebase metadata. It reads
// declarations only; bodies are left to the analyzer and hierarchies to the
// populator.
package scan

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/diag"
	"tephra/internal/docblock"
	"tephra/internal/source"
	"tephra/internal/syntax"
	"tephra/internal/ttype"
)

// Summary counts what one file contributed.
type Summary struct {
	Classes   int
	Functions int
	Constants int
	Skipped   int // duplicates and malformed declarations
}

// Scanner registers declarations into one codebase. It is not safe for
// concurrent use: files are scanned one after another.
type Scanner struct {
	cb       *codex.CodebaseMetadata
	in       *atom.Interner
	reporter diag.Reporter
}

func New(cb *codex.CodebaseMetadata, reporter diag.Reporter) *Scanner {
	return &Scanner{cb: cb, in: cb.Interner, reporter: reporter}
}

type fileScanner struct {
	*Scanner
	file *source.File
	path atom.Atom
	sum  Summary
}

// File adds every declaration of stub, which was decoded from file. A
// declaration whose name is already taken is reported and skipped.
func (s *Scanner) File(file *source.File, stub *syntax.File) Summary {
	fs := &fileScanner{Scanner: s, file: file, path: s.in.Intern(file.Path)}
	for _, c := range stub.Constants {
		fs.constant(c)
	}
	for _, fn := range stub.Functions {
		fs.function(fn)
	}
	for _, c := range stub.Classes {
		fs.class(c)
	}
	return fs.sum
}

func (fs *fileScanner) loc(pos source.LineCol) codex.Location {
	return codex.Location{File: fs.path, Pos: pos}
}

func (fs *fileScanner) span(pos source.LineCol, n int) source.Span {
	w, err := safecast.Conv[uint32](n)
	if err != nil {
		w = 0
	}
	return fs.file.SpanAt(pos, w)
}

func (fs *fileScanner) report(code diag.Code, pos source.LineCol, n int, format string, args ...any) {
	diag.Report(fs.reporter, code, fs.span(pos, n), fmt.Sprintf(format, args...)).Emit()
}

// typeOf parses a declared type. A malformed type is reported and becomes
// mixed so that the declaration still registers.
func (fs *fileScanner) typeOf(text string, scope *docblock.Scope, pos source.LineCol) (ttype.TUnion, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ttype.TUnion{}, false
	}
	u, err := docblock.Parse(fs.in, text, scope)
	if err != nil {
		fs.report(diag.InvalidDocblockType, pos, len(text), "invalid type %q: %v", text, err)
		return ttype.Mixed(), true
	}
	return u, true
}

func trimName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "\\")
}

func (fs *fileScanner) names(list syntax.NameList) []atom.Atom {
	if len(list) == 0 {
		return nil
	}
	out := make([]atom.Atom, 0, len(list))
	for _, n := range list {
		if n = trimName(n); n != "" {
			out = append(out, fs.in.Intern(n))
		}
	}
	return out
}

func (fs *fileScanner) constant(d *syntax.ConstantDecl) {
	name := fs.in.Intern(trimName(d.Name))
	meta := &codex.ConstantMetadata{Name: name, Location: fs.loc(d.Pos())}
	if u, ok := fs.typeOf(d.Type, nil, d.Pos()); ok {
		meta.Type = u
	} else if u, ok := ValueType(fs.in, d.Value.Expr); ok {
		meta.Type = u
	} else {
		meta.Type = ttype.Mixed()
	}
	if !fs.cb.AddConstant(meta) {
		fs.sum.Skipped++
		fs.report(diag.DuplicateSymbol, d.Pos(), len(d.Name), "constant %s is already declared", d.Name)
		return
	}
	fs.sum.Constants++
}

func (fs *fileScanner) function(d *syntax.FunctionDecl) {
	name := trimName(d.Name)
	fn := &codex.FunctionLikeMetadata{
		Name:     fs.in.Intern(name),
		Key:      fs.in.InternLower(name),
		Location: fs.loc(d.Pos()),
	}
	scope := &docblock.Scope{}
	fn.TemplateTypes = fs.templates(d.Templates, codex.FunctionEntity(fs.in, atom.Empty, fn.Name), scope, d.Pos())
	fn.Params = fs.params(d.Params, scope)
	fn.ReturnType, fn.HasReturnType = fs.typeOf(d.Returns, scope, d.Pos())
	if !fs.cb.AddFunction(fn) {
		fs.sum.Skipped++
		fs.report(diag.DuplicateSymbol, d.Pos(), len(d.Name), "function %s is already declared", d.Name)
		return
	}
	fs.sum.Functions++
}

// templates reads template declarations in order, making each one visible to
// the constraints and defaults that follow it.
func (fs *fileScanner) templates(decls []syntax.TemplateDecl, entity atom.Atom, scope *docblock.Scope, pos source.LineCol) []codex.TemplateType {
	if len(decls) == 0 {
		return nil
	}
	out := make([]codex.TemplateType, 0, len(decls))
	for _, d := range decls {
		t := codex.TemplateType{
			Name:           fs.in.Intern(d.Name),
			DefiningEntity: entity,
			Constraint:     ttype.Mixed(),
		}
		if u, ok := fs.typeOf(d.As, scope, pos); ok {
			t.Constraint = u
		}
		if u, ok := fs.typeOf(d.Default, scope, pos); ok {
			t.Default, t.HasDefault = u, true
		}
		v, ok := codex.ParseVariance(d.Variance)
		if !ok {
			fs.report(diag.InvalidStub, pos, len(d.Name), "unknown variance %q of template %s", d.Variance, d.Name)
		}
		t.Variance = v
		out = append(out, t)
		scope.Templates = append(scope.Templates, docblock.Template{Name: d.Name, DefiningEntity: entity, Constraint: t.Constraint})
	}
	return out
}

func (fs *fileScanner) params(decls []*syntax.ParamDecl, scope *docblock.Scope) []codex.ParamMetadata {
	if len(decls) == 0 {
		return nil
	}
	out := make([]codex.ParamMetadata, 0, len(decls))
	for _, d := range decls {
		p := codex.ParamMetadata{
			Name:       fs.in.Intern(strings.TrimPrefix(d.Name, "$")),
			HasDefault: d.Default.Present(),
			ByRef:      d.ByRef,
			Variadic:   d.Variadic,
			Location:   fs.loc(d.Pos()),
		}
		p.Type, p.HasType = fs.typeOf(d.Type, scope, d.Pos())
		// a null default widens the declared type
		if _, isNull := d.Default.Expr.(syntax.NullLit); isNull && p.HasType && !p.Type.IsNullable() {
			p.Type = ttype.Union(append(append([]ttype.Atomic(nil), p.Type.Types...), ttype.TNull{})...)
		}
		out = append(out, p)
	}
	return out
}

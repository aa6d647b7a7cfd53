package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/atom"
	"tephra/internal/codex"
	"tephra/internal/codex/populator"
	"tephra/internal/diag"
	"tephra/internal/scan"
	"tephra/internal/source"
	"tephra/internal/syntax"
)

type fixture struct {
	in    *atom.Interner
	cb    *codex.CodebaseMetadata
	fset  *source.FileSet
	files []*File
}

func load(t *testing.T, stubs ...string) *fixture {
	t.Helper()
	in := atom.NewInterner()
	f := &fixture{in: in, cb: codex.NewCodebase(in), fset: source.NewFileSet()}
	sc := scan.New(f.cb, diag.BagReporter{Bag: diag.NewBag(0)})
	for i, text := range stubs {
		path := string(rune('a'+i)) + ".yaml"
		file := f.fset.Get(f.fset.AddVirtual(path, []byte(text)))
		stub, err := syntax.Parse(path, file.Content)
		require.NoError(t, err)
		sc.File(file, stub)
		f.files = append(f.files, &File{Path: in.Intern(path), Source: file, Stub: stub})
	}
	_, err := populator.Populate(context.Background(), f.cb, codex.NewSymbolReferences(), populator.Options{Jobs: 2})
	require.NoError(t, err)
	return f
}

func (f *fixture) run(t *testing.T, s Settings) *Result {
	t.Helper()
	s.FileSet = f.fset
	res, err := Analyze(context.Background(), f.cb, f.files, s)
	require.NoError(t, err)
	return res
}

func codes(res *Result) []diag.Code {
	var out []diag.Code
	for _, d := range res.Diagnostics {
		out = append(out, d.Code)
	}
	return out
}

func TestReturnStatements(t *testing.T) {
	f := load(t, `
functions:
  - name: wrong
    returns: int
    body:
      - return: {string: a}
  - name: nullable
    params: [{name: x, type: "int|null"}]
    returns: int
    body:
      - return: {var: x}
  - name: missing
    returns: int
    body:
      - echo: {int: 1}
  - name: voided
    returns: void
    body:
      - return: {int: 1}
  - name: fine
    params: [{name: x, type: int}]
    returns: int
    body:
      - return: {var: x}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{
		diag.InvalidReturnStatement,
		diag.NullableReturnStatement,
		diag.MissingReturnStatement,
		diag.InvalidReturnStatement,
	}, codes(res))
	assert.Equal(t, 5, res.Analyzed)
}

func TestUndefinedSymbols(t *testing.T) {
	f := load(t, `
functions:
  - name: f
    body:
      - expr: {call: {function: nope}}
      - expr: {new: {class: Missing}}
      - echo: {var: y}
      - echo: {const: {name: NOPE}}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{
		diag.UndefinedFunction,
		diag.UndefinedClass,
		diag.UndefinedVariable,
		diag.UndefinedConstant,
	}, codes(res))
}

func TestArguments(t *testing.T) {
	f := load(t, `
functions:
  - name: take
    params:
      - {name: n, type: int}
      - {name: s, type: string, default: {string: x}}
    returns: void
  - name: f
    params:
      - {name: m}
      - {name: b, type: "int|string"}
    body:
      - expr: {call: {function: take}}
      - expr: {call: {function: take, args: [{int: 1}, {string: a}, {int: 3}]}}
      - expr: {call: {function: take, args: [{string: a}]}}
      - expr: {call: {function: take, args: [{var: m}]}}
      - expr: {call: {function: take, args: [{var: b}]}}
      - expr: {call: {function: take, args: [{int: 2}, {string: ok}]}}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{
		diag.TooFewArguments,
		diag.TooManyArguments,
		diag.InvalidArgument,
		diag.MixedArgument,
		diag.PossiblyInvalidArgument,
	}, codes(res))
	assert.Equal(t, diag.SevInfo, res.Diagnostics[3].Severity)
	assert.Equal(t, diag.SevWarning, res.Diagnostics[4].Severity)
}

func TestNullReferences(t *testing.T) {
	f := load(t, `
classes:
  - name: Node
    methods:
      - {name: label, returns: string}
functions:
  - name: f
    params: [{name: n, type: "Node|null"}]
    returns: string
    body:
      - echo: {method: {object: {var: n}, name: label}}
      - echo: {method: {object: {var: n}, name: label, nullsafe: true}}
      - echo: {method: {object: {null: ~}, name: label}}
      - if:
          cond: {binary: {op: "!==", left: {var: n}, right: {null: ~}}}
          then:
            - return: {method: {object: {var: n}, name: label}}
      - return: {string: none}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{diag.PossiblyNullReference, diag.NullReference}, codes(res))
}

func TestPossiblyUndefinedVariable(t *testing.T) {
	stub := `
functions:
  - name: f
    params: [{name: c, type: bool}]
    body:
      - if:
          cond: {var: c}
          then:
            - assign: {target: {var: x}, value: {int: 1}}
      - echo: {var: x}
`
	res := load(t, stub).run(t, Settings{})
	assert.Equal(t, []diag.Code{diag.PossiblyUndefinedVariable}, codes(res))

	res = load(t, stub).run(t, Settings{AllowPossiblyUndefined: true})
	assert.Empty(t, res.Diagnostics)
}

func TestBranchesThatReturnDoNotLeakVariables(t *testing.T) {
	f := load(t, `
functions:
  - name: f
    params: [{name: c, type: bool}]
    returns: int
    body:
      - if:
          cond: {var: c}
          then:
            - return: {int: 0}
          else:
            - assign: {target: {var: x}, value: {int: 1}}
      - return: {var: x}
`)
	res := f.run(t, Settings{})
	assert.Empty(t, res.Diagnostics)
}

func TestInstantiation(t *testing.T) {
	f := load(t, `
classes:
  - {name: Shape, kind: interface}
  - {name: Base, abstract: true}
  - {name: Plain}
functions:
  - name: f
    body:
      - expr: {new: {class: Shape}}
      - expr: {new: {class: Base}}
      - expr: {new: {class: Plain}}
      - expr: {new: {class: Plain, args: [{int: 1}]}}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{
		diag.InterfaceInstantiation,
		diag.AbstractInstantiation,
		diag.TooManyArguments,
	}, codes(res))
}

func TestHierarchyIssues(t *testing.T) {
	f := load(t, `
classes:
  - name: Shape
    kind: interface
    methods:
      - {name: area, returns: float}
  - name: Square
    implements: [Shape]
  - name: LoopA
    extends: LoopB
  - name: LoopB
    extends: LoopA
  - name: Orphan
    extends: Ghost
  - name: Wrong
    uses: [Shape]
  - name: Base
    methods:
      - {name: make, returns: int}
  - name: Derived
    extends: Base
    methods:
      - name: make
        params: [{name: x, type: int}]
        returns: string
`)
	res := f.run(t, Settings{})
	got := codes(res)
	assert.Contains(t, got, diag.UnimplementedAbstractMethod)
	assert.Contains(t, got, diag.CircularInheritance)
	assert.Contains(t, got, diag.MissingDependency)
	assert.Contains(t, got, diag.InvalidTraitUse)

	mismatches := 0
	for _, c := range got {
		if c == diag.MethodSignatureMismatch {
			mismatches++
		}
	}
	assert.Equal(t, 2, mismatches)
}

func TestArraysAndLoops(t *testing.T) {
	f := load(t, `
functions:
  - name: sum
    params: [{name: xs, type: "list<int>"}]
    returns: int
    body:
      - assign: {target: {var: total}, value: {int: 0}}
      - foreach:
          expr: {var: xs}
          value: x
          body:
            - assign:
                target: {var: total}
                value: {binary: {op: "+", left: {var: total}, right: {var: x}}}
      - return: {var: total}
  - name: pick
    returns: int
    body:
      - assign:
          target: {var: a}
          value: {map: [{key: {string: k}, value: {int: 1}}]}
      - echo: {index: {array: {var: a}, key: {string: missing}}}
      - return: {index: {array: {var: a}, key: {string: k}}}
  - name: build
    returns: "list<int>"
    body:
      - assign: {target: {index: {array: {var: out}, key: {int: 0}}}, value: {int: 5}}
      - return: {var: out}
  - name: bad
    body:
      - foreach: {expr: {int: 3}, value: v, body: []}
`)
	res := f.run(t, Settings{})
	assert.Equal(t, []diag.Code{diag.InvalidArrayOffset, diag.InvalidIterator}, codes(res))
}

func TestTemplatesFlowThroughCalls(t *testing.T) {
	f := load(t, `
functions:
  - name: identity
    templates: [{name: T}]
    params: [{name: v, type: T}]
    returns: T
  - name: wrong
    returns: string
    body:
      - return: {call: {function: identity, args: [{int: 1}]}}
  - name: unwrap
    returns: string
    body:
      - return: {method: {object: {new: {class: Box, args: [{string: s}]}}, name: get}}
  - name: unwrapWrong
    returns: int
    body:
      - return: {method: {object: {new: {class: Box, args: [{string: s}]}}, name: get}}
classes:
  - name: Box
    templates: [{name: T}]
    properties:
      - {name: item, type: T}
    methods:
      - name: __construct
        params: [{name: v, type: T}]
      - name: get
        returns: T
        body:
          - return: {prop: {object: {var: this}, name: item}}
`)
	res := f.run(t, Settings{})
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Equal(t, diag.InvalidReturnStatement, d.Code)
	}
}

func TestBodyReferences(t *testing.T) {
	f := load(t, `
functions:
  - {name: helper, returns: int}
  - name: f
    returns: int
    body:
      - expr: {method: {object: {new: {class: Child}}, name: run}}
      - return: {call: {function: helper}}
classes:
  - name: Base
    methods:
      - {name: run, returns: int}
  - name: Child
    extends: Base
`)
	res := f.run(t, Settings{})
	require.Empty(t, res.Diagnostics)

	fkey := codex.TopLevel(f.in.InternLower("f"))
	child, base, run := f.in.InternLower("Child"), f.in.InternLower("Base"), f.in.InternLower("run")
	assert.Contains(t, res.References.BodyReferencers(codex.TopLevel(f.in.InternLower("helper"))), fkey)
	assert.Contains(t, res.References.BodyReferencers(codex.TopLevel(child)), fkey)
	assert.Contains(t, res.References.BodyReferencers(codex.Member(child, run)), fkey)
	assert.Contains(t, res.References.BodyReferencers(codex.Member(base, run)), fkey)
}

func TestDiffReusesIssuesOfSafeUnits(t *testing.T) {
	f := load(t, `
functions:
  - name: broken
    returns: int
    body:
      - return: {string: a}
  - name: other
    body:
      - expr: {call: {function: broken}}
`)
	first := f.run(t, Settings{})
	require.Len(t, first.Diagnostics, 1)
	broken := codex.TopLevel(f.in.InternLower("broken"))
	require.Len(t, first.Issues[broken], 1)

	f.cb.SafeSymbols.Add(broken.Symbol)
	second := f.run(t, Settings{
		Diff:               true,
		PreviousIssues:     first.Issues,
		PreviousReferences: first.References,
	})
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, second.Analyzed)
	require.Len(t, second.Diagnostics, 1)
	assert.Equal(t, diag.InvalidReturnStatement, second.Diagnostics[0].Code)
	assert.Equal(t, first.Issues[broken], second.Issues[broken])
	assert.Contains(t, second.References.BodyReferencers(broken), codex.TopLevel(f.in.InternLower("other")))
}

func TestAnalyzeRequiresPopulation(t *testing.T) {
	in := atom.NewInterner()
	cb := codex.NewCodebase(in)
	cb.AddClassLike(codex.NewClassLike(in.Intern("Foo"), in.InternLower("Foo"), codex.KindClass))
	_, err := Analyze(context.Background(), cb, nil, Settings{})
	require.ErrorIs(t, err, ErrNotPopulated)
}

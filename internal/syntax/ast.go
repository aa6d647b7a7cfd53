package syntax

import (
	"gopkg.in/yaml.v3"

	"tephra/internal/source"
)

// File is one decoded stub document.
type File struct {
	Path      string          `yaml:"-"`
	Constants []*ConstantDecl `yaml:"constants"`
	Functions []*FunctionDecl `yaml:"functions"`
	Classes   []*ClassDecl    `yaml:"classes"`
}

// Decl is implemented by every top-level and member declaration.
type Decl interface {
	DeclName() string
	Pos() source.LineCol
	// Node returns the YAML subtree the declaration was decoded from.
	Node() *yaml.Node
}

type declBase struct {
	pos  source.LineCol
	node *yaml.Node
}

func (d *declBase) Pos() source.LineCol { return d.pos }
func (d *declBase) Node() *yaml.Node     { return d.node }

func (d *declBase) setNode(n *yaml.Node) {
	d.node = n
	d.pos = posOf(n)
}

type ConstantDecl struct {
	declBase `yaml:"-"`
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Value    AnyExpr `yaml:"value"`
}

type TemplateDecl struct {
	Name     string `yaml:"name"`
	As       string `yaml:"as"`
	Default  string `yaml:"default"`
	Variance string `yaml:"variance"` // invariant | covariant | contravariant
}

type ParamDecl struct {
	declBase `yaml:"-"`
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Default  AnyExpr `yaml:"default"`
	ByRef    bool    `yaml:"by-ref"`
	Variadic bool    `yaml:"variadic"`
}

type FunctionDecl struct {
	declBase  `yaml:"-"`
	Name      string         `yaml:"name"`
	Templates []TemplateDecl `yaml:"templates"`
	Params    []*ParamDecl   `yaml:"params"`
	Returns   string         `yaml:"returns"`
	Body      Block          `yaml:"body"`
}

type MethodDecl struct {
	declBase   `yaml:"-"`
	Name       string         `yaml:"name"`
	Visibility string         `yaml:"visibility"`
	Static     bool           `yaml:"static"`
	Abstract   bool           `yaml:"abstract"`
	Final      bool           `yaml:"final"`
	Templates  []TemplateDecl `yaml:"templates"`
	Params     []*ParamDecl   `yaml:"params"`
	Returns    string         `yaml:"returns"`
	Body       Block          `yaml:"body"`
}

type PropertyDecl struct {
	declBase   `yaml:"-"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Visibility string  `yaml:"visibility"`
	Static     bool    `yaml:"static"`
	Readonly   bool    `yaml:"readonly"`
	Default    AnyExpr `yaml:"default"`
}

type ClassConstDecl struct {
	declBase   `yaml:"-"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	Visibility string  `yaml:"visibility"`
	Final      bool    `yaml:"final"`
	Value      AnyExpr `yaml:"value"`
}

type EnumCaseDecl struct {
	declBase `yaml:"-"`
	Name     string  `yaml:"name"`
	Value    AnyExpr `yaml:"value"`
}

type ImportTypeDecl struct {
	From string `yaml:"from"`
	Name string `yaml:"name"`
	As   string `yaml:"as"`
}

type ClassDecl struct {
	declBase              `yaml:"-"`
	Name                  string              `yaml:"name"`
	Kind                  string              `yaml:"kind"` // class | interface | trait | enum
	Abstract              bool                `yaml:"abstract"`
	Final                 bool                `yaml:"final"`
	Readonly              bool                `yaml:"readonly"`
	Extends               NameList            `yaml:"extends"`
	Implements            NameList            `yaml:"implements"`
	Uses                  NameList            `yaml:"uses"`
	TraitAliases          map[string]string   `yaml:"trait-aliases"` // alias -> method
	RequireExtends        NameList            `yaml:"require-extends"`
	RequireImplements     NameList            `yaml:"require-implements"`
	Templates             []TemplateDecl      `yaml:"templates"`
	ExtendsParams         map[string][]string `yaml:"extends-params"`
	ImplementsParams      map[string][]string `yaml:"implements-params"`
	Mixins                NameList            `yaml:"mixins"`
	Inheritors            NameList            `yaml:"inheritors"`
	ConsistentConstructor bool                `yaml:"consistent-constructor"`
	ConsistentTemplates   bool                `yaml:"consistent-templates"`
	EnumBacking           string              `yaml:"enum-backing"`
	Cases                 []*EnumCaseDecl     `yaml:"cases"`
	Constants             []*ClassConstDecl   `yaml:"constants"`
	TypeAliases           map[string]string   `yaml:"type-aliases"`
	ImportTypes           []ImportTypeDecl    `yaml:"import-types"`
	Properties            []*PropertyDecl     `yaml:"properties"`
	Methods               []*MethodDecl       `yaml:"methods"`
}

func (d *ConstantDecl) DeclName() string   { return d.Name }
func (d *FunctionDecl) DeclName() string   { return d.Name }
func (d *MethodDecl) DeclName() string     { return d.Name }
func (d *PropertyDecl) DeclName() string   { return d.Name }
func (d *ClassConstDecl) DeclName() string { return d.Name }
func (d *EnumCaseDecl) DeclName() string   { return d.Name }
func (d *ClassDecl) DeclName() string      { return d.Name }
func (d *ParamDecl) DeclName() string      { return d.Name }

// NameList accepts a scalar or a sequence of names.
type NameList []string

func posOf(n *yaml.Node) source.LineCol {
	if n == nil {
		return source.LineCol{}
	}
	return source.LineCol{Line: uint32(max(n.Line, 0)), Col: uint32(max(n.Column, 0))} //nolint:gosec // yaml positions are small
}

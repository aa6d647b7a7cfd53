package syntax

import "tephra/internal/source"

// Expr is a body expression.
type Expr interface {
	Pos() source.LineCol
	exprNode()
}

// Stmt is a body statement.
type Stmt interface {
	Pos() source.LineCol
	stmtNode()
}

type at struct{ P source.LineCol }

func (a at) Pos() source.LineCol { return a.P }

type (
	IntLit struct {
		at
		Value int64
	}
	FloatLit struct {
		at
		Value float64
	}
	StringLit struct {
		at
		Value string
	}
	BoolLit struct {
		at
		Value bool
	}
	NullLit struct{ at }

	// Var is $name; $this is Var{Name: "this"}.
	Var struct {
		at
		Name string
	}

	ArrayItem struct {
		Key   Expr // nil for positional items
		Value Expr
	}
	ArrayLit struct {
		at
		Items []ArrayItem
	}

	New struct {
		at
		Class string
		Args  []Expr
	}
	Call struct {
		at
		Function string
		Args     []Expr
	}
	MethodCall struct {
		at
		Object   Expr
		Name     string
		Args     []Expr
		NullSafe bool
	}
	StaticCall struct {
		at
		Class string
		Name  string
		Args  []Expr
	}
	PropFetch struct {
		at
		Object   Expr
		Name     string
		NullSafe bool
	}
	// ConstFetch is a global constant, or Class::NAME when Class is set.
	ConstFetch struct {
		at
		Class string
		Name  string
	}
	Index struct {
		at
		Array Expr
		Key   Expr
	}
	Binary struct {
		at
		Op    string
		Left  Expr
		Right Expr
	}
	Not struct {
		at
		Expr Expr
	}
	InstanceOf struct {
		at
		Expr  Expr
		Class string
	}
	Ternary struct {
		at
		Cond Expr
		Then Expr
		Else Expr
	}
)

func (IntLit) exprNode()     {}
func (FloatLit) exprNode()   {}
func (StringLit) exprNode()  {}
func (BoolLit) exprNode()    {}
func (NullLit) exprNode()    {}
func (Var) exprNode()        {}
func (ArrayLit) exprNode()   {}
func (New) exprNode()        {}
func (Call) exprNode()       {}
func (MethodCall) exprNode() {}
func (StaticCall) exprNode() {}
func (PropFetch) exprNode()  {}
func (ConstFetch) exprNode() {}
func (Index) exprNode()      {}
func (Binary) exprNode()     {}
func (Not) exprNode()        {}
func (InstanceOf) exprNode() {}
func (Ternary) exprNode()    {}

type (
	Assign struct {
		at
		Target Expr
		Value  Expr
	}
	ExprStmt struct {
		at
		Expr Expr
	}
	Return struct {
		at
		Value Expr // nil for a bare return
	}
	If struct {
		at
		Cond Expr
		Then Block
		Else Block
	}
	Foreach struct {
		at
		Expr  Expr
		Key   string
		Value string
		Body  Block
	}
	Echo struct {
		at
		Expr Expr
	}
)

func (Assign) stmtNode()   {}
func (ExprStmt) stmtNode() {}
func (Return) stmtNode()   {}
func (If) stmtNode()       {}
func (Foreach) stmtNode()  {}
func (Echo) stmtNode()     {}

// Block is a statement list.
type Block []Stmt

// AnyExpr carries an optional expression inside declaration structs.
type AnyExpr struct {
	Expr
}

// Present reports whether an expression was written.
func (e AnyExpr) Present() bool { return e.Expr != nil }

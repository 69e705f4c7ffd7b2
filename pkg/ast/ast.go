// Package ast defines the syntax tree consumed by the semantic checker and
// the IR builder. Every node is a variant of the sealed Expr or Stmt
// interface; consumers switch over the concrete types.
package ast

import (
	"fmt"
	"strings"

	"minicc/pkg/ops"
	"minicc/pkg/types"
)

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	Pos() int
	String() string
}

// IntLit is an integer or character constant.
//
//	int x = 10;
//	        ^^  IntLit{Value: 10}
type IntLit struct {
	Value int32
	Line  int
}

func (*IntLit) exprNode()        {}
func (l *IntLit) Pos() int       { return l.Line }
func (l *IntLit) String() string { return fmt.Sprintf("%d", l.Value) }

// FloatLit is a floating-point constant. It is parsed so the checker can
// reject it with a precise diagnostic; it is never lowered.
type FloatLit struct {
	Text string
	Line int
}

func (*FloatLit) exprNode()        {}
func (l *FloatLit) Pos() int       { return l.Line }
func (l *FloatLit) String() string { return l.Text }

// VarRef is a read of a named variable.
//
//	return x;
//	       ^  VarRef{Name: "x"}
type VarRef struct {
	Name string
	Line int
}

func (*VarRef) exprNode()        {}
func (v *VarRef) Pos() int       { return v.Line }
func (v *VarRef) String() string { return v.Name }

// IndexExpr is an element of a flat array: Name[Index].
type IndexExpr struct {
	Name  string
	Index Expr
	Line  int
}

func (*IndexExpr) exprNode()        {}
func (e *IndexExpr) Pos() int       { return e.Line }
func (e *IndexExpr) String() string { return fmt.Sprintf("%s[%s]", e.Name, e.Index) }

// UnaryExpr is Op Operand for -, ! and ~.
type UnaryExpr struct {
	Op      ops.Op
	Operand Expr
	Line    int
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) Pos() int       { return u.Line }
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Operand) }

// BinaryExpr represents an arithmetic, bitwise or comparison operation.
//
//	x + 1
//	^ ^ ^
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    ops.Op
	Left  Expr
	Right Expr
	Line  int
}

func (*BinaryExpr) exprNode()  {}
func (b *BinaryExpr) Pos() int { return b.Line }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// LogicalExpr represents Left && Right or Left || Right.
// It is separate from BinaryExpr because Right is evaluated conditionally.
type LogicalExpr struct {
	Op    ops.Op
	Left  Expr
	Right Expr
	Line  int
}

func (*LogicalExpr) exprNode()  {}
func (l *LogicalExpr) Pos() int { return l.Line }
func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// CallExpr represents name(args).
type CallExpr struct {
	Name string
	Args []Expr
	Line int
}

func (*CallExpr) exprNode()  {}
func (c *CallExpr) Pos() int { return c.Line }
func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	Pos() int
	String() string
}

// Declarator is one name introduced by a DeclStmt.
//
//	int a, b[3] = {1, 2}, c = 4;
//	    ^  ^^^^^^^^^^^^^  ^^^^^
type Declarator struct {
	Name      string
	Line      int
	IsArray   bool
	Size      int  // declared element count, when SizeGiven
	SizeGiven bool // false for "a[]"
	Init      Expr // scalar initializer, may be nil
	InitList  []Expr
	HasList   bool // a "{...}" initializer was written, possibly empty
}

func (d Declarator) String() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	if d.IsArray {
		if d.SizeGiven {
			fmt.Fprintf(&sb, "[%d]", d.Size)
		} else {
			sb.WriteString("[]")
		}
	}
	switch {
	case d.HasList:
		fmt.Fprintf(&sb, " = %v", d.InitList)
	case d.Init != nil:
		fmt.Fprintf(&sb, " = %s", d.Init)
	}
	return sb.String()
}

// DeclStmt declares one or more variables of the same base type.
type DeclStmt struct {
	Type types.Type
	Vars []Declarator
	Line int
}

func (*DeclStmt) stmtNode()  {}
func (d *DeclStmt) Pos() int { return d.Line }
func (d *DeclStmt) String() string {
	names := make([]string, len(d.Vars))
	for i, v := range d.Vars {
		names[i] = v.String()
	}
	return fmt.Sprintf("DeclStmt(%s %s)", d.Type, strings.Join(names, ", "))
}

// AssignStmt stores Value into Target, a VarRef or IndexExpr.
// Compound assignments and ++/-- arrive here already desugared.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Line   int
}

func (*AssignStmt) stmtNode()  {}
func (a *AssignStmt) Pos() int { return a.Line }
func (a *AssignStmt) String() string {
	return fmt.Sprintf("AssignStmt(%s = %s)", a.Target, a.Value)
}

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	X    Expr
	Line int
}

func (*ExprStmt) stmtNode()        {}
func (e *ExprStmt) Pos() int       { return e.Line }
func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.X) }

// ReturnStmt represents return [Value];
type ReturnStmt struct {
	Value Expr // nil for a bare return
	Line  int
}

func (*ReturnStmt) stmtNode()  {}
func (r *ReturnStmt) Pos() int { return r.Line }
func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "ReturnStmt()"
	}
	return fmt.Sprintf("ReturnStmt(%s)", r.Value)
}

// BlockStmt represents { statement; ... } and opens a scope.
type BlockStmt struct {
	Stmts []Stmt
	Line  int
}

func (*BlockStmt) stmtNode()  {}
func (b *BlockStmt) Pos() int { return b.Line }
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (Cond) Then [else Else].
type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
	Line int
}

func (*IfStmt) stmtNode()  {}
func (i *IfStmt) Pos() int { return i.Line }
func (i *IfStmt) String() string {
	if i.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Cond, i.Then, i.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Cond, i.Then)
}

// WhileStmt represents while (Cond) Body.
type WhileStmt struct {
	Cond Expr
	Body Stmt
	Line int
}

func (*WhileStmt) stmtNode()  {}
func (w *WhileStmt) Pos() int { return w.Line }
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Cond, w.Body)
}

// ForStmt represents for (Init; Cond; Post) Body. The whole statement opens
// a scope so Init may declare the loop variable. Any clause may be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body Stmt
	Line int
}

func (*ForStmt) stmtNode()  {}
func (f *ForStmt) Pos() int { return f.Line }
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, post=%v, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// BreakStmt represents break;
type BreakStmt struct{ Line int }

func (*BreakStmt) stmtNode()        {}
func (s *BreakStmt) Pos() int       { return s.Line }
func (s *BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{ Line int }

func (*ContinueStmt) stmtNode()        {}
func (s *ContinueStmt) Pos() int       { return s.Line }
func (s *ContinueStmt) String() string { return "ContinueStmt" }

// Param is one formal parameter of a FuncDecl.
type Param struct {
	Name string
	Type types.Type
	Line int
}

// FuncDecl represents a function definition, or a prototype when Body is nil.
type FuncDecl struct {
	Name       string
	ReturnType types.Type
	Params     []Param
	Body       *BlockStmt
	Line       int
}

func (*FuncDecl) stmtNode()  {}
func (f *FuncDecl) Pos() int { return f.Line }
func (f *FuncDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	if f.Body == nil {
		return fmt.Sprintf("FuncDecl(%s %s(%s);)", f.ReturnType, f.Name, strings.Join(params, ", "))
	}
	return fmt.Sprintf("FuncDecl(%s %s(%s), body=%s)", f.ReturnType, f.Name, strings.Join(params, ", "), f.Body)
}

// Program is a translation unit: function declarations and global
// variable declarations in source order.
type Program struct {
	Items []Stmt
}

// Functions returns the function declarations of p in source order.
func (p *Program) Functions() []*FuncDecl {
	var fns []*FuncDecl
	for _, item := range p.Items {
		if fn, ok := item.(*FuncDecl); ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

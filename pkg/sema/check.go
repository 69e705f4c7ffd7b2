// Package sema validates a parsed program and builds its scope tree. The
// checker runs before any IR is produced; the first fatal diagnostic stops
// compilation.
package sema

import (
	"errors"
	"fmt"
	"io"
	"math"

	"minicc/pkg/ast"
	"minicc/pkg/cfg"
	"minicc/pkg/symtab"
	"minicc/pkg/types"
)

// Signature describes a declared function.
type Signature struct {
	Name       string
	ReturnType types.Type
	Params     []types.Type
	Defined    bool
	Line       int
}

// Global is a root-scope variable with its folded initial contents.
// Elements without an initializer are zero.
type Global struct {
	Sym    *symtab.Symbol
	Values []int32
}

// Result is everything the IR builder needs from the checker.
type Result struct {
	Root       *symtab.Table
	Signatures map[string]*Signature
	Functions  []*cfg.CFG // one empty graph per function body, in source order
	Globals    []Global
	Warnings   []*Diagnostic
}

type checker struct {
	out    io.Writer
	res    *Result
	scope  *symtab.Table
	fn     *Signature
	loops  int
	warned map[*symtab.Symbol]bool
}

// Check validates prog. Use-before-value warnings are written to out as they
// are found and unused-symbol warnings once the whole program has been
// seen. The returned error is a *Diagnostic for any fatal problem.
func Check(prog *ast.Program, out io.Writer) (*Result, error) {
	if out == nil {
		out = io.Discard
	}
	root := symtab.NewRoot()
	c := &checker{
		out:    out,
		scope:  root,
		warned: make(map[*symtab.Symbol]bool),
		res: &Result{
			Root:       root,
			Signatures: make(map[string]*Signature),
		},
	}

	for _, item := range prog.Items {
		var err error
		switch n := item.(type) {
		case *ast.FuncDecl:
			err = c.function(n)
		case *ast.DeclStmt:
			err = c.globalDecl(n)
		default:
			err = newFatal(TypeMismatch, "", item.Pos(), "unexpected %T at top level", item)
		}
		if err != nil {
			return nil, err
		}
	}

	c.flushUnused()
	return c.res, nil
}

func (c *checker) warn(d *Diagnostic) {
	c.res.Warnings = append(c.res.Warnings, d)
	fmt.Fprintln(c.out, d.Error())
}

func (c *checker) flushUnused() {
	c.res.Root.Walk(func(t *symtab.Table) {
		for _, sym := range t.Symbols() {
			if sym.Used || sym.Temp {
				continue
			}
			c.warn(newWarning(UnusedSymbol, sym.Name, sym.Line, "'%s' is declared but never used", sym.Name))
		}
	})
}

func (c *checker) function(fn *ast.FuncDecl) error {
	if len(fn.Params) > symtab.MaxParams {
		return newFatal(ArityMismatch, fn.Name, fn.Line, "function '%s' declares %d parameters, at most %d are supported",
			fn.Name, len(fn.Params), symtab.MaxParams)
	}
	if c.res.Root.Lookup(fn.Name) != nil {
		return newFatal(Redeclaration, fn.Name, fn.Line, "'%s' is already declared as a global variable", fn.Name)
	}
	switch fn.ReturnType {
	case types.Int, types.Char, types.Void:
	default:
		return newFatal(UnsupportedType, fn.Name, fn.Line, "function '%s' returns unsupported type %s", fn.Name, fn.ReturnType)
	}

	params := make([]types.Type, len(fn.Params))
	for i, p := range fn.Params {
		if !types.Scalar(p.Type) {
			return newFatal(UnsupportedType, p.Name, p.Line, "parameter '%s' has unsupported type %s", p.Name, p.Type)
		}
		params[i] = p.Type
	}

	sig, seen := c.res.Signatures[fn.Name]
	if seen {
		if sig.Defined && fn.Body != nil {
			return newFatal(Redeclaration, fn.Name, fn.Line, "function '%s' is already defined on line %d", fn.Name, sig.Line)
		}
		if len(sig.Params) != len(params) {
			return newFatal(ArityMismatch, fn.Name, fn.Line, "function '%s' declared with %d parameters on line %d, now %d",
				fn.Name, len(sig.Params), sig.Line, len(params))
		}
		if sig.ReturnType != fn.ReturnType {
			return newFatal(TypeMismatch, fn.Name, fn.Line, "function '%s' declared returning %s on line %d, now %s",
				fn.Name, sig.ReturnType, sig.Line, fn.ReturnType)
		}
	} else {
		sig = &Signature{Name: fn.Name, ReturnType: fn.ReturnType, Params: params, Line: fn.Line}
		c.res.Signatures[fn.Name] = sig
	}
	if fn.Body == nil {
		return nil
	}
	sig.Defined = true
	sig.Line = fn.Line

	scope := c.res.Root.NewChild(symtab.Function, fn.Name)
	for i, p := range fn.Params {
		sym, err := scope.AddSymbol(p.Name, p.Type, types.SizeOf(p.Type), i+1, p.Line)
		if err != nil {
			return newFatal(Redeclaration, p.Name, p.Line, "duplicate parameter '%s' in function '%s'", p.Name, fn.Name)
		}
		sym.HasValue = true
	}

	c.scope, c.fn = scope, sig
	defer func() { c.scope, c.fn = c.res.Root, nil }()

	for _, s := range fn.Body.Stmts {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	c.res.Functions = append(c.res.Functions, cfg.New(fn.Name, scope, scope.LowWater()))
	return nil
}

func (c *checker) globalDecl(d *ast.DeclStmt) error {
	if !types.Scalar(d.Type) {
		return newFatal(UnsupportedType, d.Vars[0].Name, d.Line, "variables of type %s are not supported", d.Type)
	}
	for _, v := range d.Vars {
		if _, clash := c.res.Signatures[v.Name]; clash {
			return newFatal(Redeclaration, v.Name, v.Line, "'%s' is already declared as a function", v.Name)
		}
		length, err := c.arrayShape(d.Type, v)
		if err != nil {
			return err
		}

		var inits []ast.Expr
		switch {
		case v.HasList:
			inits = v.InitList
		case v.Init != nil:
			inits = []ast.Expr{v.Init}
		}
		values := make([]int32, max(length, 1))
		for i, e := range inits {
			val, ok := ast.ConstValue(e)
			if !ok {
				if err := c.value(e); err != nil {
					return err
				}
				return newFatal(NonConstantInit, v.Name, v.Line, "initializer of global '%s' is not a constant expression", v.Name)
			}
			values[i] = val
		}

		sym, err := c.declare(d.Type, v, length)
		if err != nil {
			return err
		}
		sym.HasValue = true
		c.res.Globals = append(c.res.Globals, Global{Sym: sym, Values: values})
	}
	return nil
}

// maxFrameBytes bounds a function's locals so every frame offset and the
// stack adjustment fit a signed 32-bit displacement, leaving room for
// temporaries and alignment.
const maxFrameBytes = math.MaxInt32 &^ 0xffff

// arrayShape validates the array part of a declarator and returns its
// element count, or 0 for a scalar.
func (c *checker) arrayShape(typ types.Type, v ast.Declarator) (int, error) {
	if !v.IsArray {
		if v.HasList {
			return 0, newFatal(InvalidArrayInit, v.Name, v.Line, "scalar '%s' cannot take a brace initializer", v.Name)
		}
		return 0, nil
	}
	if v.Init != nil {
		return 0, newFatal(InvalidArrayInit, v.Name, v.Line, "array '%s' must be initialized with a brace list", v.Name)
	}
	length := v.Size
	if !v.SizeGiven {
		if !v.HasList {
			return 0, newFatal(InvalidArraySize, v.Name, v.Line, "array '%s' has no size and no initializer", v.Name)
		}
		length = len(v.InitList)
	}
	if length <= 0 {
		return 0, newFatal(InvalidArraySize, v.Name, v.Line, "array '%s' has size %d, must be positive", v.Name, length)
	}
	if int64(length) > maxFrameBytes/int64(types.SizeOf(typ)) {
		return 0, newFatal(InvalidArraySize, v.Name, v.Line, "array '%s' of %d elements exceeds %d bytes",
			v.Name, length, maxFrameBytes)
	}
	if len(v.InitList) > length {
		return 0, newFatal(InvalidArrayInit, v.Name, v.Line, "array '%s' has %d elements but %d initializers",
			v.Name, length, len(v.InitList))
	}
	return length, nil
}

func (c *checker) declare(typ types.Type, v ast.Declarator, length int) (*symtab.Symbol, error) {
	var sym *symtab.Symbol
	var err error
	if length > 0 {
		sym, err = c.scope.AddArray(v.Name, typ, length, v.Line)
	} else {
		sym, err = c.scope.AddSymbol(v.Name, typ, types.SizeOf(typ), 0, v.Line)
	}
	if errors.Is(err, symtab.ErrRedeclaration) {
		return nil, newFatal(Redeclaration, v.Name, v.Line, "'%s' is already declared in this scope", v.Name)
	}
	return sym, err
}

func (c *checker) localDecl(d *ast.DeclStmt) error {
	if !types.Scalar(d.Type) {
		return newFatal(UnsupportedType, d.Vars[0].Name, d.Line, "variables of type %s are not supported", d.Type)
	}
	for _, v := range d.Vars {
		length, err := c.arrayShape(d.Type, v)
		if err != nil {
			return err
		}
		size := int64(types.SizeOf(d.Type)) * int64(max(length, 1))
		if int64(-c.scope.Offset())+size > maxFrameBytes {
			return newFatal(InvalidArraySize, v.Name, v.Line, "locals of function '%s' exceed %d bytes at '%s'",
				c.fn.Name, maxFrameBytes, v.Name)
		}
		if v.Init != nil {
			if err := c.value(v.Init); err != nil {
				return err
			}
		}
		for _, e := range v.InitList {
			if err := c.value(e); err != nil {
				return err
			}
		}
		sym, err := c.declare(d.Type, v, length)
		if err != nil {
			return err
		}
		if v.Init != nil || v.HasList {
			sym.HasValue = true
		}
	}
	return nil
}

func (c *checker) enter(name string) func() {
	parent := c.scope
	c.scope = parent.NewChild(symtab.Block, name)
	return func() { c.scope = parent }
}

func (c *checker) stmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.DeclStmt:
		return c.localDecl(n)

	case *ast.AssignStmt:
		if err := c.value(n.Value); err != nil {
			return err
		}
		return c.assignTarget(n.Target)

	case *ast.ExprStmt:
		_, err := c.expr(n.X)
		return err

	case *ast.ReturnStmt:
		if n.Value == nil {
			if c.fn.ReturnType != types.Void {
				return newFatal(TypeMismatch, c.fn.Name, n.Line, "function '%s' must return a value", c.fn.Name)
			}
			return nil
		}
		if c.fn.ReturnType == types.Void {
			return newFatal(TypeMismatch, c.fn.Name, n.Line, "void function '%s' cannot return a value", c.fn.Name)
		}
		return c.value(n.Value)

	case *ast.BlockStmt:
		defer c.enter(fmt.Sprintf("block@%d", n.Line))()
		for _, inner := range n.Stmts {
			if err := c.stmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfStmt:
		if err := c.value(n.Cond); err != nil {
			return err
		}
		if err := c.stmt(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return c.stmt(n.Else)
		}
		return nil

	case *ast.WhileStmt:
		if err := c.value(n.Cond); err != nil {
			return err
		}
		return c.loopBody(n.Body, nil)

	case *ast.ForStmt:
		defer c.enter(fmt.Sprintf("for@%d", n.Line))()
		if n.Init != nil {
			if err := c.stmt(n.Init); err != nil {
				return err
			}
		}
		if n.Cond != nil {
			if err := c.value(n.Cond); err != nil {
				return err
			}
		}
		return c.loopBody(n.Body, n.Post)

	case *ast.BreakStmt:
		if c.loops == 0 {
			return newFatal(MisplacedJump, "break", n.Line, "'break' outside of a loop")
		}
		return nil

	case *ast.ContinueStmt:
		if c.loops == 0 {
			return newFatal(MisplacedJump, "continue", n.Line, "'continue' outside of a loop")
		}
		return nil
	}
	return newFatal(TypeMismatch, "", s.Pos(), "unexpected statement %T", s)
}

func (c *checker) loopBody(body, post ast.Stmt) error {
	c.loops++
	defer func() { c.loops-- }()
	if err := c.stmt(body); err != nil {
		return err
	}
	if post != nil {
		return c.stmt(post)
	}
	return nil
}

func (c *checker) assignTarget(target ast.Expr) error {
	switch t := target.(type) {
	case *ast.VarRef:
		sym := c.scope.Resolve(t.Name)
		if sym == nil {
			return newFatal(UnresolvedSymbol, t.Name, t.Line, "assignment to undeclared '%s'", t.Name)
		}
		if sym.IsArray() {
			return newFatal(TypeMismatch, t.Name, t.Line, "cannot assign to array '%s'", t.Name)
		}
		c.scope.MarkDefined(t.Name)
		return nil
	case *ast.IndexExpr:
		if _, err := c.element(t); err != nil {
			return err
		}
		c.scope.MarkDefined(t.Name)
		return nil
	}
	return newFatal(TypeMismatch, "", target.Pos(), "%s is not assignable", target)
}

// element checks an indexed access and returns the array symbol.
func (c *checker) element(e *ast.IndexExpr) (*symtab.Symbol, error) {
	sym := c.scope.Resolve(e.Name)
	if sym == nil {
		return nil, newFatal(UnresolvedSymbol, e.Name, e.Line, "use of undeclared '%s'", e.Name)
	}
	if !sym.IsArray() {
		return nil, newFatal(TypeMismatch, e.Name, e.Line, "'%s' is not an array", e.Name)
	}
	if err := c.value(e.Index); err != nil {
		return nil, err
	}
	if idx, ok := ast.ConstValue(e.Index); ok && (idx < 0 || int(idx) >= sym.Length) {
		return nil, newFatal(IndexOutOfRange, e.Name, e.Line, "index %d is outside '%s[%d]'", idx, e.Name, sym.Length)
	}
	return sym, nil
}

// read records a use of sym, warning once if it never received a value.
func (c *checker) read(sym *symtab.Symbol, line int) {
	if !c.scope.HasValue(sym.Name) && !c.warned[sym] {
		c.warned[sym] = true
		c.warn(newWarning(UseBeforeValue, sym.Name, line, "'%s' is used before it is given a value", sym.Name))
	}
	c.scope.MarkUsed(sym.Name)
}

// value checks an expression whose result is consumed.
func (c *checker) value(e ast.Expr) error {
	t, err := c.expr(e)
	if err != nil {
		return err
	}
	if t == types.Void {
		return newFatal(TypeMismatch, "", e.Pos(), "void value of %s is used", e)
	}
	return nil
}

func (c *checker) expr(e ast.Expr) (types.Type, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return types.Int, nil

	case *ast.FloatLit:
		return types.Undefined, newFatal(UnsupportedType, n.Text, n.Line, "floating-point literal %s is not supported", n.Text)

	case *ast.VarRef:
		sym := c.scope.Resolve(n.Name)
		if sym == nil {
			if _, isFn := c.res.Signatures[n.Name]; isFn {
				return types.Undefined, newFatal(TypeMismatch, n.Name, n.Line, "function '%s' used as a value", n.Name)
			}
			return types.Undefined, newFatal(UnresolvedSymbol, n.Name, n.Line, "use of undeclared '%s'", n.Name)
		}
		if sym.IsArray() {
			return types.Undefined, newFatal(TypeMismatch, n.Name, n.Line, "array '%s' used as a scalar", n.Name)
		}
		c.read(sym, n.Line)
		return types.Int, nil

	case *ast.IndexExpr:
		sym, err := c.element(n)
		if err != nil {
			return types.Undefined, err
		}
		c.read(sym, n.Line)
		return types.Int, nil

	case *ast.UnaryExpr:
		return types.Int, c.value(n.Operand)

	case *ast.BinaryExpr:
		if err := c.value(n.Left); err != nil {
			return types.Undefined, err
		}
		return types.Int, c.value(n.Right)

	case *ast.LogicalExpr:
		if err := c.value(n.Left); err != nil {
			return types.Undefined, err
		}
		return types.Int, c.value(n.Right)

	case *ast.CallExpr:
		return c.call(n)
	}
	return types.Undefined, newFatal(TypeMismatch, "", e.Pos(), "unexpected expression %T", e)
}

func (c *checker) call(n *ast.CallExpr) (types.Type, error) {
	sig, ok := c.res.Signatures[n.Name]
	if !ok {
		if c.scope.Resolve(n.Name) != nil {
			return types.Undefined, newFatal(TypeMismatch, n.Name, n.Line, "'%s' is not a function", n.Name)
		}
		return types.Undefined, newFatal(UnresolvedSymbol, n.Name, n.Line, "call to undeclared function '%s'", n.Name)
	}
	if len(n.Args) > symtab.MaxParams {
		return types.Undefined, newFatal(ArityMismatch, n.Name, n.Line, "call to '%s' passes %d arguments, at most %d are supported",
			n.Name, len(n.Args), symtab.MaxParams)
	}
	if len(n.Args) != len(sig.Params) {
		return types.Undefined, newFatal(ArityMismatch, n.Name, n.Line, "'%s' expects %d arguments, got %d",
			n.Name, len(sig.Params), len(n.Args))
	}
	for _, arg := range n.Args {
		if err := c.value(arg); err != nil {
			return types.Undefined, err
		}
	}
	if sig.ReturnType == types.Void {
		return types.Void, nil
	}
	return types.Int, nil
}

package irgen

import (
	"fmt"

	"minicc/pkg/ast"
	"minicc/pkg/ir"
	"minicc/pkg/ops"
)

// isLeaf reports whether evaluating e emits no instructions.
func isLeaf(e ast.Expr) bool {
	if _, ok := ast.ConstValue(e); ok {
		return true
	}
	_, ok := e.(*ast.VarRef)
	return ok
}

// expr emits the instructions for e and returns where its value is: an
// immediate for folded constants, a symbol for plain variable reads, the
// accumulator otherwise.
func (b *builder) expr(e ast.Expr) ir.Operand {
	if v, ok := ast.ConstValue(e); ok {
		return ir.Imm(v)
	}

	switch n := e.(type) {
	case *ast.VarRef:
		return ir.Sym(b.resolve(n.Name))

	case *ast.IndexExpr:
		sym := b.resolve(n.Name)
		if k, ok := ast.ConstValue(n.Index); ok {
			b.emit(&ir.LoadFromArray{Base: sym, Index: int(k)})
			return ir.Acc()
		}
		b.index(b.expr(n.Index))
		b.emit(&ir.LoadFromArray{Base: sym, Index: -1})
		return ir.Acc()

	case *ast.UnaryExpr:
		v := b.expr(n.Operand)
		b.emit(&ir.Unary{Op: n.Op, Operand: v})
		return ir.Acc()

	case *ast.BinaryExpr:
		return b.binary(n)

	case *ast.LogicalExpr:
		lhs := b.expr(n.Left)
		rhs, rv := b.capture(func() ir.Operand { return b.expr(n.Right) })
		b.emit(&ir.Logical{
			Op:       n.Op,
			LHS:      lhs,
			RHS:      rhs,
			RHSValue: rv,
			False:    b.g.NewLabel("false"),
			True:     b.g.NewLabel("true"),
			End:      b.g.NewLabel("end"),
		})
		return ir.Acc()

	case *ast.CallExpr:
		return b.call(n)
	}
	panic(fmt.Sprintf("irgen: unexpected expression %T", e))
}

func (b *builder) binary(n *ast.BinaryExpr) ir.Operand {
	lhs := b.expr(n.Left)
	if lhs.IsReg(ir.EAX) && !isLeaf(n.Right) {
		lhs = b.spill(lhs)
	}
	rhs := b.expr(n.Right)

	switch ops.Identity(n.Op, lhs.Imm, rhs.Imm, lhs.IsImm(), rhs.IsImm()) {
	case ops.Left:
		return lhs
	case ops.Right:
		return rhs
	}

	switch {
	case n.Op.IsComparison():
		b.emit(&ir.Comparison{Op: n.Op, LHS: lhs, RHS: rhs})
	case n.Op.IsArithmetic():
		b.emit(&ir.Arithmetic{Op: n.Op, LHS: lhs, RHS: rhs})
	default:
		panic(fmt.Sprintf("irgen: %s is not a binary operator", n.Op))
	}
	return ir.Acc()
}

// call marshals arguments and emits the call. Every argument that lives in
// a register is staged in a temporary first, the caller's own register
// parameters are saved around the call, and the result is left in EAX.
func (b *builder) call(n *ast.CallExpr) ir.Operand {
	staged := make([]ir.Operand, len(n.Args))
	for i, arg := range n.Args {
		v := b.expr(arg)
		if v.Kind == ir.RegOperand || (v.Kind == ir.SymOperand && v.Sym.IsParam()) {
			v = b.spill(v)
		}
		staged[i] = v
	}

	params := b.g.Params()
	saved := make([]ir.Operand, len(params))
	for i, p := range params {
		saved[i] = b.spill(ir.Sym(p))
	}

	for i, v := range staged {
		b.store(ir.Reg(ir.ArgReg(i+1)), v)
	}
	b.emit(&ir.Call{Name: n.Name, Args: len(n.Args)})

	for i, p := range params {
		b.emit(&ir.Move{Src: saved[i], Dest: ir.Reg(ir.ArgReg(p.Position))})
	}
	return ir.Acc()
}

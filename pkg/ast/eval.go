package ast

import "minicc/pkg/ops"

// ConstValue folds e to a constant when it is built only from integer
// literals and operators. Logical operators short-circuit, so a constant
// left side decides the result without inspecting the right side.
func ConstValue(e Expr) (int32, bool) {
	switch n := e.(type) {
	case *IntLit:
		return n.Value, true
	case *UnaryExpr:
		v, ok := ConstValue(n.Operand)
		if !ok {
			return 0, false
		}
		return ops.FoldUnary(n.Op, v)
	case *BinaryExpr:
		l, ok := ConstValue(n.Left)
		if !ok {
			return 0, false
		}
		r, ok := ConstValue(n.Right)
		if !ok {
			return 0, false
		}
		return ops.Fold(n.Op, l, r)
	case *LogicalExpr:
		l, ok := ConstValue(n.Left)
		if !ok {
			return 0, false
		}
		if n.Op == ops.LogAnd && l == 0 {
			return 0, true
		}
		if n.Op == ops.LogOr && l != 0 {
			return 1, true
		}
		r, ok := ConstValue(n.Right)
		if !ok {
			return 0, false
		}
		return ops.Fold(n.Op, l, r)
	}
	return 0, false
}

package ops

// Fold evaluates a binary operator over two constants with 32-bit
// two's-complement semantics. It reports false when the operation cannot be
// folded: division or modulo by zero, or a non-binary operator.
func Fold(op Op, l, r int32) (int32, bool) {
	switch op {
	case Add:
		return l + r, true
	case Sub:
		return l - r, true
	case Mul:
		return l * r, true
	case Div:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case Mod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case BitAnd:
		return l & r, true
	case BitOr:
		return l | r, true
	case BitXor:
		return l ^ r, true
	case Shl:
		return l << (uint32(r) & 31), true
	case Shr:
		return l >> (uint32(r) & 31), true
	case Eq:
		return boolInt(l == r), true
	case Ne:
		return boolInt(l != r), true
	case Lt:
		return boolInt(l < r), true
	case Le:
		return boolInt(l <= r), true
	case Gt:
		return boolInt(l > r), true
	case Ge:
		return boolInt(l >= r), true
	case LogAnd:
		return boolInt(l != 0 && r != 0), true
	case LogOr:
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

// FoldUnary evaluates a unary operator over a constant.
func FoldUnary(op Op, v int32) (int32, bool) {
	switch op {
	case Neg:
		return -v, true
	case Not:
		return boolInt(v == 0), true
	case BitNot:
		return ^v, true
	case SignExtend:
		return v, true
	}
	return 0, false
}

// Side names the operand an algebraic identity keeps.
type Side int

const (
	Neither Side = iota
	Left
	Right
)

// Identity reports which operand of l op r survives one of the identities
// x+0, 0+x, x-0, x*1, 1*x and x/1. lConst and rConst say whether each side
// is a known constant; l and r are only consulted when their flag is set.
func Identity(op Op, l, r int32, lConst, rConst bool) Side {
	switch op {
	case Add:
		if rConst && r == 0 {
			return Left
		}
		if lConst && l == 0 {
			return Right
		}
	case Sub:
		if rConst && r == 0 {
			return Left
		}
	case Mul:
		if rConst && r == 1 {
			return Left
		}
		if lConst && l == 1 {
			return Right
		}
	case Div:
		if rConst && r == 1 {
			return Left
		}
	}
	return Neither
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

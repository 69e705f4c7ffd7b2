// Package ops is the operator catalog shared by the syntax tree and the IR,
// together with 32-bit constant folding.
package ops

import "fmt"

// Op identifies an operator.
type Op int

const (
	Invalid Op = iota

	// Arithmetic and bitwise
	Add
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Shl
	Shr

	// Comparison
	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	// Logical
	LogAnd
	LogOr

	// Unary
	Neg
	Not
	BitNot
	SignExtend
)

var opSymbols = [...]string{
	Invalid:    "?",
	Add:        "+",
	Sub:        "-",
	Mul:        "*",
	Div:        "/",
	Mod:        "%",
	BitAnd:     "&",
	BitOr:      "|",
	BitXor:     "^",
	Shl:        "<<",
	Shr:        ">>",
	Eq:         "==",
	Ne:         "!=",
	Lt:         "<",
	Le:         "<=",
	Gt:         ">",
	Ge:         ">=",
	LogAnd:     "&&",
	LogOr:      "||",
	Neg:        "-",
	Not:        "!",
	BitNot:     "~",
	SignExtend: "sext",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) IsArithmetic() bool { return o >= Add && o <= Shr }
func (o Op) IsComparison() bool { return o >= Eq && o <= Ge }

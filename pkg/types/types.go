// Package types is the closed catalog of value types known to the compiler.
package types

import "fmt"

// Type identifies the type of a symbol or expression.
type Type int

const (
	Undefined Type = iota
	Void
	Int
	Char
	Double
)

var typeNames = [...]string{
	Undefined: "undefined",
	Void:      "void",
	Int:       "int",
	Char:      "char",
	Double:    "double",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// SizeOf returns the storage size in bytes of one value of type t.
// Int and Char share a 4-byte slot; Double is reserved and never lowered.
func SizeOf(t Type) int {
	switch t {
	case Int, Char:
		return 4
	case Double:
		return 8
	default:
		return 1
	}
}

// Scalar reports whether values of type t live in a 4-byte integer slot.
func Scalar(t Type) bool {
	return t == Int || t == Char
}

// Parse maps a type keyword to its Type. Unknown keywords yield Undefined.
func Parse(keyword string) Type {
	switch keyword {
	case "int":
		return Int
	case "char":
		return Char
	case "void":
		return Void
	case "double":
		return Double
	}
	return Undefined
}

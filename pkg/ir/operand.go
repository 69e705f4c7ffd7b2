// Package ir defines the closed instruction set the builder lowers programs
// into. Every instruction renders itself as GAS/AT&T x86-64 text.
package ir

import (
	"fmt"

	"minicc/pkg/symtab"
)

// Fixed register plan.
const (
	EAX  = "%eax"  // accumulator and return value
	R11D = "%r11d" // second accumulator
	R10D = "%r10d" // scratch for memory-to-memory moves
	R11  = "%r11"  // dynamic array index
	R10  = "%r10"  // global array base
)

// ArgRegs holds the 32-bit argument registers for parameter positions 1..6.
var ArgRegs = [symtab.MaxParams]string{"%edi", "%esi", "%edx", "%ecx", "%r8d", "%r9d"}

var wide = map[string]string{
	"%eax": "%rax", "%ecx": "%rcx", "%edx": "%rdx", "%esi": "%rsi", "%edi": "%rdi",
	"%r8d": "%r8", "%r9d": "%r9", "%r10d": "%r10", "%r11d": "%r11",
}

// Wide returns the 64-bit name of a 32-bit register.
func Wide(reg string) string {
	w, ok := wide[reg]
	if !ok {
		panic(fmt.Sprintf("ir: no 64-bit view of %s", reg))
	}
	return w
}

// ArgReg returns the argument register for a 1-based parameter position.
func ArgReg(position int) string {
	if position < 1 || position > symtab.MaxParams {
		panic(fmt.Sprintf("ir: no argument register for position %d", position))
	}
	return ArgRegs[position-1]
}

type OperandKind int

const (
	NoOperand OperandKind = iota
	RegOperand
	ImmOperand
	SymOperand
)

// Operand is a register name, an immediate, or a symbol that is resolved to
// a location only when the instruction is rendered.
type Operand struct {
	Kind OperandKind
	Reg  string
	Imm  int32
	Sym  *symtab.Symbol
}

func Reg(name string) Operand            { return Operand{Kind: RegOperand, Reg: name} }
func Imm(v int32) Operand                { return Operand{Kind: ImmOperand, Imm: v} }
func Sym(sym *symtab.Symbol) Operand     { return Operand{Kind: SymOperand, Sym: sym} }
func Acc() Operand                       { return Reg(EAX) }
func (o Operand) IsImm() bool            { return o.Kind == ImmOperand }
func (o Operand) IsReg(name string) bool { return o.Kind == RegOperand && o.Reg == name }

func (o Operand) String() string {
	switch o.Kind {
	case RegOperand:
		return o.Reg
	case ImmOperand:
		return fmt.Sprintf("$%d", o.Imm)
	case SymOperand:
		return o.Sym.Name
	}
	return "<none>"
}

type LocationKind int

const (
	InRegister LocationKind = iota
	InFrame
	InData
)

// Location is where a symbol lives at run time.
type Location struct {
	Kind   LocationKind
	Reg    string // InRegister
	Offset int    // InFrame, relative to %rbp
	Label  string // InData
}

func (l Location) IsMemory() bool { return l.Kind != InRegister }

func (l Location) String() string {
	switch l.Kind {
	case InRegister:
		return l.Reg
	case InFrame:
		return fmt.Sprintf("%d(%%rbp)", l.Offset)
	default:
		return l.Label + "(%rip)"
	}
}

// Element returns the location of the i-th 4-byte element of an array that
// starts at l.
func (l Location) Element(i int) Location {
	switch l.Kind {
	case InFrame:
		l.Offset += 4 * i
	case InData:
		if i != 0 {
			l.Label = fmt.Sprintf("%s+%d", baseLabel(l.Label), l.Offset+4*i)
			l.Offset += 4 * i
		}
	default:
		panic("ir: register-resident symbol indexed as an array")
	}
	return l
}

func baseLabel(label string) string {
	for i := 0; i < len(label); i++ {
		if label[i] == '+' {
			return label[:i]
		}
	}
	return label
}

// Resolver maps a symbol to its run-time location. Each function's CFG
// implements it.
type Resolver interface {
	Locate(sym *symtab.Symbol) Location
}

func (o Operand) render(r Resolver) string {
	if o.Kind == SymOperand {
		return r.Locate(o.Sym).String()
	}
	if o.Kind == NoOperand {
		panic("ir: rendering an empty operand")
	}
	return o.String()
}

func (o Operand) inMemory(r Resolver) bool {
	return o.Kind == SymOperand && r.Locate(o.Sym).IsMemory()
}

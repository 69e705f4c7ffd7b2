package ir

import (
	"fmt"
	"strings"

	"minicc/pkg/ops"
	"minicc/pkg/symtab"
)

// Instruction is one IR operation. Render produces assembly lines, each
// indented with a tab except labels; String produces the IR dump form.
type Instruction interface {
	Render(r Resolver) string
	String() string
}

type lines struct{ sb strings.Builder }

func (l *lines) op(format string, args ...any) {
	if l.sb.Len() > 0 {
		l.sb.WriteByte('\n')
	}
	l.sb.WriteByte('\t')
	fmt.Fprintf(&l.sb, format, args...)
}

func (l *lines) label(name string) {
	if l.sb.Len() > 0 {
		l.sb.WriteByte('\n')
	}
	l.sb.WriteString(name)
	l.sb.WriteByte(':')
}

func (l *lines) raw(text string) {
	if text == "" {
		return
	}
	if l.sb.Len() > 0 {
		l.sb.WriteByte('\n')
	}
	l.sb.WriteString(text)
}

func (l *lines) String() string { return l.sb.String() }

// load emits a move of src into reg unless it is already there.
func (l *lines) load(r Resolver, src Operand, reg string) {
	if src.IsReg(reg) {
		return
	}
	l.op("movl %s, %s", src.render(r), reg)
}

// LoadConst writes an immediate into a register or a stack slot.
type LoadConst struct {
	Value int32
	Dest  Operand
}

func (i *LoadConst) Render(r Resolver) string {
	return fmt.Sprintf("\tmovl $%d, %s", i.Value, i.Dest.render(r))
}

func (i *LoadConst) String() string { return fmt.Sprintf("%s := %d", i.Dest, i.Value) }

// Move copies a 4-byte value. Memory-to-memory moves stage through R10D.
type Move struct {
	Src  Operand
	Dest Operand
}

func (i *Move) Render(r Resolver) string {
	var out lines
	src, dst := i.Src.render(r), i.Dest.render(r)
	switch {
	case src == dst:
	case i.Src.inMemory(r) && i.Dest.inMemory(r):
		out.op("movl %s, %s", src, R10D)
		out.op("movl %s, %s", R10D, dst)
	default:
		out.op("movl %s, %s", src, dst)
	}
	return out.String()
}

func (i *Move) String() string { return fmt.Sprintf("%s := %s", i.Dest, i.Src) }

var arithMnemonic = map[ops.Op]string{
	ops.Add:    "addl",
	ops.Sub:    "subl",
	ops.Mul:    "imull",
	ops.BitAnd: "andl",
	ops.BitOr:  "orl",
	ops.BitXor: "xorl",
}

// Arithmetic computes LHS op RHS into EAX. The right operand is loaded first
// so that either side may already be in EAX.
type Arithmetic struct {
	Op  ops.Op
	LHS Operand
	RHS Operand
}

func (i *Arithmetic) Render(r Resolver) string {
	var out lines
	out.load(r, i.RHS, R11D)
	out.load(r, i.LHS, EAX)

	switch i.Op {
	case ops.Div, ops.Mod:
		out.op("pushq %%rdx")
		out.op("cltd")
		out.op("idivl %s", R11D)
		if i.Op == ops.Mod {
			out.op("movl %%edx, %s", EAX)
		}
		out.op("popq %%rdx")
	case ops.Shl, ops.Shr:
		shift := "sall"
		if i.Op == ops.Shr {
			shift = "sarl"
		}
		out.op("pushq %%rcx")
		out.op("movl %s, %%ecx", R11D)
		out.op("%s %%cl, %s", shift, EAX)
		out.op("popq %%rcx")
	default:
		mn, ok := arithMnemonic[i.Op]
		if !ok {
			panic(fmt.Sprintf("ir: %s is not an arithmetic operator", i.Op))
		}
		out.op("%s %s, %s", mn, R11D, EAX)
	}
	return out.String()
}

func (i *Arithmetic) String() string {
	return fmt.Sprintf("%s := %s %s %s", EAX, i.LHS, i.Op, i.RHS)
}

// Unary applies a one-operand operator. Neg, Not and BitNot leave their
// result in EAX; SignExtend widens a 32-bit register in place.
type Unary struct {
	Op      ops.Op
	Operand Operand
}

func (i *Unary) Render(r Resolver) string {
	var out lines
	if i.Op == ops.SignExtend {
		if i.Operand.Kind != RegOperand {
			panic("ir: sign extension needs a register operand")
		}
		out.op("movslq %s, %s", i.Operand.Reg, Wide(i.Operand.Reg))
		return out.String()
	}

	out.load(r, i.Operand, EAX)
	switch i.Op {
	case ops.Neg:
		out.op("negl %s", EAX)
	case ops.BitNot:
		out.op("notl %s", EAX)
	case ops.Not:
		out.op("testl %s, %s", EAX, EAX)
		out.op("movl $0, %s", EAX)
		out.op("sete %%al")
		out.op("movzbl %%al, %s", EAX)
	default:
		panic(fmt.Sprintf("ir: %s is not a unary operator", i.Op))
	}
	return out.String()
}

func (i *Unary) String() string {
	if i.Op == ops.SignExtend {
		return fmt.Sprintf("%s := sext %s", Wide(i.Operand.Reg), i.Operand)
	}
	return fmt.Sprintf("%s := %s%s", EAX, i.Op, i.Operand)
}

var setMnemonic = map[ops.Op]string{
	ops.Eq: "sete",
	ops.Ne: "setne",
	ops.Lt: "setl",
	ops.Le: "setle",
	ops.Gt: "setg",
	ops.Ge: "setge",
}

// Comparison evaluates LHS op RHS to 0 or 1 in EAX.
type Comparison struct {
	Op  ops.Op
	LHS Operand
	RHS Operand
}

func (i *Comparison) Render(r Resolver) string {
	set, ok := setMnemonic[i.Op]
	if !ok {
		panic(fmt.Sprintf("ir: %s is not a comparison", i.Op))
	}
	var out lines
	out.load(r, i.RHS, R11D)
	out.load(r, i.LHS, EAX)
	out.op("cmpl %s, %s", R11D, EAX)
	out.op("%s %%al", set)
	out.op("movzbl %%al, %s", EAX)
	return out.String()
}

func (i *Comparison) String() string {
	return fmt.Sprintf("%s := %s %s %s", EAX, i.LHS, i.Op, i.RHS)
}

// Logical evaluates LHS && RHS or LHS || RHS to 0 or 1 in EAX. The right
// operand's instructions run only when the left operand does not decide the
// result.
type Logical struct {
	Op       ops.Op
	LHS      Operand
	RHS      []Instruction
	RHSValue Operand

	False, True, End string
}

func (i *Logical) Render(r Resolver) string {
	var out lines
	decide, taken, skip := "je", i.False, 1
	if i.Op == ops.LogOr {
		decide, taken, skip = "jne", i.True, 0
	} else if i.Op != ops.LogAnd {
		panic(fmt.Sprintf("ir: %s is not a logical operator", i.Op))
	}

	out.load(r, i.LHS, EAX)
	out.op("cmpl $0, %s", EAX)
	out.op("%s %s", decide, taken)
	for _, in := range i.RHS {
		out.raw(in.Render(r))
	}
	out.load(r, i.RHSValue, EAX)
	out.op("cmpl $0, %s", EAX)
	out.op("%s %s", decide, taken)
	out.op("movl $%d, %s", skip, EAX)
	out.op("jmp %s", i.End)
	out.label(taken)
	out.op("movl $%d, %s", 1-skip, EAX)
	out.label(i.End)
	return out.String()
}

func (i *Logical) String() string {
	var rhs []string
	for _, in := range i.RHS {
		rhs = append(rhs, in.String())
	}
	return fmt.Sprintf("%s := %s %s {%s} %s", EAX, i.LHS, i.Op, strings.Join(rhs, "; "), i.RHSValue)
}

// element returns the memory operand for base[Index]. A negative index means
// the element number is already sign-extended in R11.
func element(r Resolver, out *lines, base *symtab.Symbol, index int) string {
	loc := r.Locate(base)
	if index >= 0 {
		return loc.Element(index).String()
	}
	switch loc.Kind {
	case InFrame:
		return fmt.Sprintf("%d(%%rbp,%s,4)", loc.Offset, R11)
	case InData:
		out.op("leaq %s, %s", loc, R10)
		return fmt.Sprintf("(%s,%s,4)", R10, R11)
	}
	panic(fmt.Sprintf("ir: %s is not addressable as an array", base.Name))
}

// LoadFromArray reads Base[Index] into EAX.
type LoadFromArray struct {
	Base  *symtab.Symbol
	Index int
}

func (i *LoadFromArray) Render(r Resolver) string {
	var out lines
	mem := element(r, &out, i.Base, i.Index)
	out.op("movl %s, %s", mem, EAX)
	return out.String()
}

func (i *LoadFromArray) String() string {
	return fmt.Sprintf("%s := %s[%s]", EAX, i.Base.Name, indexString(i.Index))
}

// StoreToArray writes Src into Base[Index]. A memory source is staged
// through EAX.
type StoreToArray struct {
	Base  *symtab.Symbol
	Index int
	Src   Operand
}

func (i *StoreToArray) Render(r Resolver) string {
	var out lines
	src := i.Src.render(r)
	if i.Src.inMemory(r) {
		out.op("movl %s, %s", src, EAX)
		src = EAX
	}
	mem := element(r, &out, i.Base, i.Index)
	out.op("movl %s, %s", src, mem)
	return out.String()
}

func (i *StoreToArray) String() string {
	return fmt.Sprintf("%s[%s] := %s", i.Base.Name, indexString(i.Index), i.Src)
}

func indexString(index int) string {
	if index < 0 {
		return R11
	}
	return fmt.Sprint(index)
}

// Call transfers control to a function label. Arguments are already in the
// argument registers and the result comes back in EAX.
type Call struct {
	Name string
	Args int
}

func (i *Call) Render(Resolver) string { return "\tcall " + i.Name }
func (i *Call) String() string         { return fmt.Sprintf("call %s/%d", i.Name, i.Args) }

type Cond int

const (
	IfZero Cond = iota
	IfNonZero
)

// JumpConditional tests Reg against zero and branches to Label.
type JumpConditional struct {
	Cond  Cond
	Label string
	Reg   string
}

func (i *JumpConditional) Render(Resolver) string {
	j := "je"
	if i.Cond == IfNonZero {
		j = "jne"
	}
	return fmt.Sprintf("\tcmpl $0, %s\n\t%s %s", i.Reg, j, i.Label)
}

func (i *JumpConditional) String() string {
	if i.Cond == IfNonZero {
		return fmt.Sprintf("if %s != 0 goto %s", i.Reg, i.Label)
	}
	return fmt.Sprintf("if %s == 0 goto %s", i.Reg, i.Label)
}

type Jump struct {
	Label string
}

func (i *Jump) Render(Resolver) string { return "\tjmp " + i.Label }
func (i *Jump) String() string         { return "goto " + i.Label }

// FunctionPrologue establishes the frame pointer and reserves FrameSize
// bytes of locals.
type FunctionPrologue struct {
	FrameSize int
}

func (i *FunctionPrologue) Render(Resolver) string {
	var out lines
	out.op("pushq %%rbp")
	out.op("movq %%rsp, %%rbp")
	if i.FrameSize > 0 {
		out.op("subq $%d, %%rsp", i.FrameSize)
	}
	return out.String()
}

func (i *FunctionPrologue) String() string { return fmt.Sprintf("prologue %d", i.FrameSize) }

type FunctionEpilogue struct{}

func (i *FunctionEpilogue) Render(Resolver) string {
	return "\tmovq %rbp, %rsp\n\tpopq %rbp\n\tret"
}

func (i *FunctionEpilogue) String() string { return "epilogue" }

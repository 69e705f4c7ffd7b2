package cfg

import (
	"strings"

	"minicc/pkg/ir"
)

// BasicBlock is a straight-line run of instructions. A block with only a
// True successor falls through to it; a Test block branches on the value
// left in the accumulator; a block with no successor ends the function.
type BasicBlock struct {
	Label  string
	Instrs []ir.Instruction
	True   *BasicBlock
	False  *BasicBlock
	Test   bool
}

func (b *BasicBlock) Append(in ...ir.Instruction) {
	b.Instrs = append(b.Instrs, in...)
}

func (b *BasicBlock) Prepend(in ...ir.Instruction) {
	b.Instrs = append(append([]ir.Instruction{}, in...), b.Instrs...)
}

// Terminated reports whether the block ends in an explicit jump, in which
// case nothing appended after it could run.
func (b *BasicBlock) Terminated() bool {
	if len(b.Instrs) == 0 {
		return false
	}
	_, ok := b.Instrs[len(b.Instrs)-1].(*ir.Jump)
	return ok
}

func (b *BasicBlock) Successors() []*BasicBlock {
	var out []*BasicBlock
	if b.True != nil {
		out = append(out, b.True)
	}
	if b.False != nil {
		out = append(out, b.False)
	}
	return out
}

// Render writes the block's label, its instructions and whatever control
// transfer its successor edges need given that next is the block placed
// immediately after it.
func (b *BasicBlock) Render(r ir.Resolver, next *BasicBlock) string {
	var sb strings.Builder
	sb.WriteString(b.Label)
	sb.WriteString(":\n")

	emit := func(text string) {
		if text == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	instrs := b.Instrs
	if n := len(instrs); n > 0 && next != nil {
		if j, ok := instrs[n-1].(*ir.Jump); ok && j.Label == next.Label {
			instrs = instrs[:n-1]
		}
	}
	for _, in := range instrs {
		emit(in.Render(r))
	}

	switch {
	case b.Test:
		if b.True == nil || b.False == nil {
			panic("cfg: test block " + b.Label + " needs both successors")
		}
		emit((&ir.JumpConditional{Cond: ir.IfZero, Label: b.False.Label, Reg: ir.EAX}).Render(r))
		if b.True != next {
			emit((&ir.Jump{Label: b.True.Label}).Render(r))
		}
	case !b.Terminated() && b.True != nil && b.True != next:
		emit((&ir.Jump{Label: b.True.Label}).Render(r))
	}
	return sb.String()
}

// Dump renders the block in IR form.
func (b *BasicBlock) Dump() string {
	var sb strings.Builder
	sb.WriteString(b.Label)
	sb.WriteString(":")
	switch {
	case b.Test:
		sb.WriteString(" test ? " + b.True.Label + " : " + b.False.Label)
	case b.True != nil:
		sb.WriteString(" -> " + b.True.Label)
	}
	sb.WriteByte('\n')
	for _, in := range b.Instrs {
		sb.WriteString("    ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"minicc/pkg/asm"
)

var (
	ErrStepLimit  = errors.New("step limit exceeded")
	ErrUndefined  = errors.New("undefined function")
	ErrFault      = errors.New("memory fault")
	ErrDivide     = errors.New("divide error")
	ErrMisaligned = errors.New("stack misaligned at call")
)

const (
	StackSize       = 1 << 16
	DefaultMaxSteps = 10_000_000
)

// returnSentinel marks the bottom frame pushed by Call; returning to it
// halts the machine.
const returnSentinel = math.MaxUint64

// Extern stands in for a function the program declares but does not define.
// It receives the six argument registers and returns the value for EAX.
type Extern func(args [6]int32) int32

var argRegs = [6]int{asm.RDI, asm.RSI, asm.RDX, asm.RCX, asm.R8, asm.R9}

// CPU interprets an assembled program. Memory holds the data image at
// address 0 followed by the stack, which grows down from the top.
type CPU struct {
	Regs [16]uint64

	IP int

	Z bool
	N bool
	V bool

	Halted bool

	Memory []byte

	Steps    int
	MaxSteps int

	Externs map[string]Extern

	prog *asm.Program
}

func New(prog *asm.Program) *CPU {
	dataLen := (len(prog.Data) + 15) &^ 15
	c := &CPU{
		Memory:   make([]byte, dataLen+StackSize),
		MaxSteps: DefaultMaxSteps,
		Externs:  make(map[string]Extern),
		prog:     prog,
	}
	copy(c.Memory, prog.Data)
	return c
}

// Call runs fn with args in the argument registers until it returns, and
// yields its EAX. Globals keep their values between calls.
func (c *CPU) Call(fn string, args ...int32) (int32, error) {
	entry, ok := c.prog.Labels[fn]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefined, fn)
	}
	if len(args) > len(argRegs) {
		return 0, fmt.Errorf("%s: too many arguments (%d)", fn, len(args))
	}

	c.Regs = [16]uint64{}
	for i, a := range args {
		c.setReg(argRegs[i], 4, uint64(uint32(a)))
	}
	c.Regs[asm.RSP] = uint64(len(c.Memory))
	if err := c.push(returnSentinel); err != nil {
		return 0, err
	}
	c.IP = entry
	c.Halted = false
	c.Steps = 0

	if err := c.Run(); err != nil {
		return 0, err
	}
	return int32(uint32(c.Regs[asm.RAX])), nil
}

func (c *CPU) Run() error {
	for !c.Halted {
		if c.Steps >= c.MaxSteps {
			return ErrStepLimit
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Global reads the 4-byte word at offset i of a data label.
func (c *CPU) Global(name string, i int) (int32, error) {
	off, ok := c.prog.DataLabels[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	v, err := c.load(uint64(off+4*i), 4)
	return int32(uint32(v)), err
}

func (c *CPU) reg(num, size int) uint64 {
	v := c.Regs[num]
	switch size {
	case 1:
		return v & 0xFF
	case 4:
		return v & 0xFFFFFFFF
	}
	return v
}

// setReg writes a register view. 32-bit writes clear the upper half; byte
// writes leave the rest of the register alone.
func (c *CPU) setReg(num, size int, v uint64) {
	switch size {
	case 1:
		c.Regs[num] = c.Regs[num]&^0xFF | v&0xFF
	case 4:
		c.Regs[num] = v & 0xFFFFFFFF
	default:
		c.Regs[num] = v
	}
}

func (c *CPU) load(addr uint64, size int) (uint64, error) {
	if addr+uint64(size) > uint64(len(c.Memory)) || addr+uint64(size) < addr {
		return 0, fmt.Errorf("%w: read of %d bytes at %#x", ErrFault, size, addr)
	}
	b := c.Memory[addr:]
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *CPU) store(addr uint64, size int, v uint64) error {
	if addr+uint64(size) > uint64(len(c.Memory)) || addr+uint64(size) < addr {
		return fmt.Errorf("%w: write of %d bytes at %#x", ErrFault, size, addr)
	}
	b := c.Memory[addr:]
	switch size {
	case 1:
		b[0] = byte(v)
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
	return nil
}

func (c *CPU) push(v uint64) error {
	c.Regs[asm.RSP] -= 8
	return c.store(c.Regs[asm.RSP], 8, v)
}

func (c *CPU) pop() (uint64, error) {
	v, err := c.load(c.Regs[asm.RSP], 8)
	c.Regs[asm.RSP] += 8
	return v, err
}

func (c *CPU) address(op asm.Operand) uint64 {
	addr := uint64(op.Disp)
	if op.RIP {
		return addr
	}
	if op.Base >= 0 {
		addr += c.Regs[op.Base]
	}
	if op.Index >= 0 {
		addr += c.Regs[op.Index] * uint64(op.Scale)
	}
	return addr
}

func (c *CPU) read(op asm.Operand, size int) (uint64, error) {
	switch op.Kind {
	case asm.Immediate:
		return uint64(op.Imm), nil
	case asm.Reg:
		return c.reg(op.Reg.Num, size), nil
	case asm.Mem:
		return c.load(c.address(op), size)
	}
	return 0, fmt.Errorf("cannot read operand %s", op)
}

func (c *CPU) write(op asm.Operand, size int, v uint64) error {
	switch op.Kind {
	case asm.Reg:
		c.setReg(op.Reg.Num, size, v)
		return nil
	case asm.Mem:
		return c.store(c.address(op), size, v)
	}
	return fmt.Errorf("cannot write operand %s", op)
}

func (c *CPU) updateFlags(result int32, overflow bool) {
	c.Z = result == 0
	c.N = result < 0
	c.V = overflow
}

func (c *CPU) condition(mnemonic string) bool {
	switch mnemonic {
	case "sete", "je":
		return c.Z
	case "setne", "jne":
		return !c.Z
	case "setl":
		return c.N != c.V
	case "setle":
		return c.Z || c.N != c.V
	case "setg":
		return !c.Z && c.N == c.V
	case "setge":
		return c.N == c.V
	}
	return true
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}
	if c.IP < 0 || c.IP >= len(c.prog.Instrs) {
		return fmt.Errorf("%w: instruction pointer %d outside the program", ErrFault, c.IP)
	}

	in := c.prog.Instrs[c.IP]
	c.IP++
	c.Steps++

	if err := c.exec(in); err != nil {
		return fmt.Errorf("line %d (%s): %w", in.Line, in.Mnemonic, err)
	}
	return nil
}

func (c *CPU) exec(in asm.Instruction) error {
	ops := in.Operands

	switch in.Mnemonic {
	case "movl", "movq":
		size := 4
		if in.Mnemonic == "movq" {
			size = 8
		}
		v, err := c.read(ops[0], size)
		if err != nil {
			return err
		}
		return c.write(ops[1], size, v)

	case "movslq":
		v, err := c.read(ops[0], 4)
		if err != nil {
			return err
		}
		return c.write(ops[1], 8, uint64(int64(int32(uint32(v)))))

	case "movzbl":
		v, err := c.read(ops[0], 1)
		if err != nil {
			return err
		}
		return c.write(ops[1], 4, v&0xFF)

	case "leaq":
		if ops[0].Kind != asm.Mem {
			return fmt.Errorf("leaq needs a memory operand")
		}
		return c.write(ops[1], 8, c.address(ops[0]))

	case "addl", "subl", "imull", "andl", "orl", "xorl", "sall", "sarl":
		return c.binary(in.Mnemonic, ops[0], ops[1])

	case "addq", "subq":
		src, err := c.read(ops[0], 8)
		if err != nil {
			return err
		}
		dst, err := c.read(ops[1], 8)
		if err != nil {
			return err
		}
		if in.Mnemonic == "addq" {
			return c.write(ops[1], 8, dst+src)
		}
		return c.write(ops[1], 8, dst-src)

	case "negl", "notl":
		v, err := c.read(ops[0], 4)
		if err != nil {
			return err
		}
		x := int32(uint32(v))
		if in.Mnemonic == "negl" {
			c.updateFlags(-x, x == math.MinInt32)
			x = -x
		} else {
			x = ^x
		}
		return c.write(ops[0], 4, uint64(uint32(x)))

	case "cmpl", "testl":
		a, err := c.read(ops[0], 4)
		if err != nil {
			return err
		}
		b, err := c.read(ops[1], 4)
		if err != nil {
			return err
		}
		x, y := int32(uint32(b)), int32(uint32(a))
		if in.Mnemonic == "testl" {
			c.updateFlags(x&y, false)
			return nil
		}
		d := int64(x) - int64(y)
		c.updateFlags(int32(d), d != int64(int32(d)))
		return nil

	case "sete", "setne", "setl", "setle", "setg", "setge":
		var v uint64
		if c.condition(in.Mnemonic) {
			v = 1
		}
		return c.write(ops[0], 1, v)

	case "cltd":
		eax := int32(uint32(c.Regs[asm.RAX]))
		var edx uint64
		if eax < 0 {
			edx = 0xFFFFFFFF
		}
		c.setReg(asm.RDX, 4, edx)
		return nil

	case "idivl":
		v, err := c.read(ops[0], 4)
		if err != nil {
			return err
		}
		divisor := int64(int32(uint32(v)))
		dividend := int64(c.reg(asm.RDX, 4)<<32 | c.reg(asm.RAX, 4))
		if divisor == 0 {
			return fmt.Errorf("%w: division by zero", ErrDivide)
		}
		q, r := dividend/divisor, dividend%divisor
		if q != int64(int32(q)) {
			return fmt.Errorf("%w: quotient overflow", ErrDivide)
		}
		c.setReg(asm.RAX, 4, uint64(uint32(int32(q))))
		c.setReg(asm.RDX, 4, uint64(uint32(int32(r))))
		return nil

	case "pushq":
		v, err := c.read(ops[0], 8)
		if err != nil {
			return err
		}
		return c.push(v)

	case "popq":
		v, err := c.pop()
		if err != nil {
			return err
		}
		return c.write(ops[0], 8, v)

	case "call":
		return c.call(ops[0])

	case "ret":
		v, err := c.pop()
		if err != nil {
			return err
		}
		if v == returnSentinel {
			c.Halted = true
			return nil
		}
		c.IP = int(v)
		return nil

	case "jmp", "je", "jne":
		if c.condition(in.Mnemonic) {
			c.IP = ops[0].Index
		}
		return nil
	}
	return fmt.Errorf("unsupported instruction %s", in.Mnemonic)
}

func (c *CPU) binary(mnemonic string, srcOp, dstOp asm.Operand) error {
	s, err := c.read(srcOp, 4)
	if err != nil {
		return err
	}
	d, err := c.read(dstOp, 4)
	if err != nil {
		return err
	}
	src, dst := int32(uint32(s)), int32(uint32(d))

	var res int32
	overflow := false
	switch mnemonic {
	case "addl":
		wide := int64(dst) + int64(src)
		res, overflow = int32(wide), wide != int64(int32(wide))
	case "subl":
		wide := int64(dst) - int64(src)
		res, overflow = int32(wide), wide != int64(int32(wide))
	case "imull":
		wide := int64(dst) * int64(src)
		res, overflow = int32(wide), wide != int64(int32(wide))
	case "andl":
		res = dst & src
	case "orl":
		res = dst | src
	case "xorl":
		res = dst ^ src
	case "sall":
		res = dst << (uint32(src) & 31)
	case "sarl":
		res = dst >> (uint32(src) & 31)
	}
	c.updateFlags(res, overflow)
	return c.write(dstOp, 4, uint64(uint32(res)))
}

func (c *CPU) call(target asm.Operand) error {
	if c.Regs[asm.RSP]%16 != 0 {
		return fmt.Errorf("%w: call %s with rsp=%#x", ErrMisaligned, target.Symbol, c.Regs[asm.RSP])
	}
	if target.Index >= 0 {
		if err := c.push(uint64(c.IP)); err != nil {
			return err
		}
		c.IP = target.Index
		return nil
	}

	ext, ok := c.Externs[target.Symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefined, target.Symbol)
	}
	var args [6]int32
	for i, r := range argRegs {
		args[i] = int32(uint32(c.Regs[r]))
	}
	c.setReg(asm.RAX, 4, uint64(uint32(ext(args))))
	return nil
}

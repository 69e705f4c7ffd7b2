package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Register is one view of a general-purpose register: Num is the hardware
// number (rax=0 .. r15=15) and Size the width in bytes.
type Register struct {
	Name string
	Num  int
	Size int
}

var registers = map[string]Register{}

func init() {
	wide := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
	long := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	low := []string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil"}
	for i := 0; i < 16; i++ {
		var q, l, b string
		if i < 8 {
			q, l, b = wide[i], long[i], low[i]
		} else {
			q = fmt.Sprintf("r%d", i)
			l, b = q+"d", q+"b"
		}
		registers[q] = Register{Name: q, Num: i, Size: 8}
		registers[l] = Register{Name: l, Num: i, Size: 4}
		registers[b] = Register{Name: b, Num: i, Size: 1}
	}
}

// Register numbers the interpreter needs by name.
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RSP = 4
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R9  = 9
)

type OperandKind int

const (
	Immediate OperandKind = iota
	Reg
	Mem
	Target
)

// Operand is a decoded instruction operand. For Mem operands Base and Index
// are register numbers or -1; a RIP-relative reference has been resolved to
// a data offset in Disp. For Target operands Index is the instruction index
// of the label, or -1 for a call to a symbol outside the program.
type Operand struct {
	Kind   OperandKind
	Imm    int64
	Reg    Register
	Base   int
	Index  int
	Scale  int64
	Disp   int64
	RIP    bool
	Symbol string
}

type Instruction struct {
	Line     int
	Mnemonic string
	Operands []Operand
}

// Program is an assembled translation unit: instructions addressed by
// index, and an initialised data image addressed by byte offset.
type Program struct {
	Instrs     []Instruction
	Labels     map[string]int
	Data       []byte
	DataLabels map[string]int
	Globals    []string
}

// arity lists the accepted mnemonics and their operand counts.
var arity = map[string]int{
	"movl": 2, "movq": 2, "movslq": 2, "movzbl": 2, "leaq": 2,
	"addl": 2, "subl": 2, "imull": 2, "andl": 2, "orl": 2, "xorl": 2,
	"addq": 2, "subq": 2,
	"sall": 2, "sarl": 2,
	"testl": 2, "cmpl": 2,
	"negl": 1, "notl": 1, "idivl": 1,
	"sete": 1, "setne": 1, "setl": 1, "setle": 1, "setg": 1, "setge": 1,
	"pushq": 1, "popq": 1,
	"call": 1, "jmp": 1, "je": 1, "jne": 1,
	"cltd": 0, "ret": 0,
}

var branchOps = map[string]bool{"call": true, "jmp": true, "je": true, "jne": true}

type section int

const (
	textSection section = iota
	dataSection
)

type Assembler struct {
	labels map[string]int
	data   map[string]int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
		data:   make(map[string]int),
	}
}

// Assemble is a convenience wrapper around a fresh Assembler.
func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	lines := strings.Split(code, "\n")

	parsed, err := a.pass1(lines)
	if err != nil {
		return nil, err
	}

	return a.pass2(parsed)
}

// pass1 parses every line and assigns text labels to instruction indices
// and data labels to byte offsets.
func (a *Assembler) pass1(lines []string) ([]parsedLine, error) {
	var out []parsedLine
	sec := textSection
	pc, dataOff := 0, 0

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}

		switch p.mnemonic {
		case ".text":
			sec = textSection
		case ".data":
			sec = dataSection
		}

		for _, lbl := range p.labels {
			if _, dup := a.labels[lbl]; dup {
				return nil, fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			if _, dup := a.data[lbl]; dup {
				return nil, fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			if sec == textSection {
				a.labels[lbl] = pc
			} else {
				a.data[lbl] = dataOff
			}
		}

		switch p.mnemonic {
		case "", ".text", ".data", ".globl":
		case ".long":
			if sec != dataSection {
				return nil, fmt.Errorf(".long outside the data section on line %d", lineNo)
			}
			dataOff += 4 * len(p.operands)
		case ".zero":
			if sec != dataSection {
				return nil, fmt.Errorf(".zero outside the data section on line %d", lineNo)
			}
			if len(p.operands) != 1 {
				return nil, fmt.Errorf(".zero expects exactly one operand on line %d", lineNo)
			}
			n, err := strconv.Atoi(p.operands[0])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid .zero size on line %d: %s", lineNo, p.operands[0])
			}
			dataOff += n
		default:
			if _, ok := arity[p.mnemonic]; !ok {
				return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			if sec != textSection {
				return nil, fmt.Errorf("instruction outside the text section on line %d", lineNo)
			}
			pc++
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *Assembler) pass2(lines []parsedLine) (*Program, error) {
	prog := &Program{
		Labels:     a.labels,
		DataLabels: a.data,
	}

	for _, p := range lines {
		lineNo := p.lineNo
		switch p.mnemonic {
		case "", ".text", ".data":
			continue
		case ".globl":
			if len(p.operands) != 1 || !isIdentifier(p.operands[0]) {
				return nil, fmt.Errorf(".globl expects one symbol on line %d", lineNo)
			}
			prog.Globals = append(prog.Globals, p.operands[0])
			continue
		case ".long":
			for _, tok := range p.operands {
				v, err := strconv.ParseInt(tok, 0, 64)
				if err != nil || v < -1<<31 || v > 1<<32-1 {
					return nil, fmt.Errorf("invalid .long value on line %d: %s", lineNo, tok)
				}
				u := uint32(v)
				prog.Data = append(prog.Data, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
			}
			continue
		case ".zero":
			n, _ := strconv.Atoi(p.operands[0])
			prog.Data = append(prog.Data, make([]byte, n)...)
			continue
		}

		want := arity[p.mnemonic]
		if len(p.operands) != want {
			return nil, fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, want, lineNo)
		}

		in := Instruction{Line: lineNo, Mnemonic: p.mnemonic}
		for _, tok := range p.operands {
			op, err := a.parseOperand(tok, lineNo)
			if err != nil {
				return nil, err
			}
			in.Operands = append(in.Operands, op)
		}
		if err := a.checkBranch(&in); err != nil {
			return nil, err
		}
		prog.Instrs = append(prog.Instrs, in)
	}
	return prog, nil
}

// checkBranch resolves the target of a control transfer. Calls may name a
// symbol outside the program; jumps may not.
func (a *Assembler) checkBranch(in *Instruction) error {
	if !branchOps[in.Mnemonic] {
		for _, op := range in.Operands {
			if op.Kind == Target {
				return fmt.Errorf("invalid operand '%s' on line %d", op.Symbol, in.Line)
			}
		}
		return nil
	}

	op := &in.Operands[0]
	if op.Kind != Target {
		return fmt.Errorf("%s expects a label on line %d", in.Mnemonic, in.Line)
	}
	if idx, ok := a.labels[op.Symbol]; ok {
		op.Index = idx
		return nil
	}
	if in.Mnemonic != "call" {
		return fmt.Errorf("undefined label '%s' on line %d", op.Symbol, in.Line)
	}
	op.Index = -1
	return nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		mnemonic, rest = line[:sp], line[sp+1:]
	}
	p.mnemonic = strings.ToLower(mnemonic)

	ops, err := splitOperands(rest, lineNo)
	if err != nil {
		return p, err
	}
	p.operands = ops
	return p, nil
}

// splitOperands splits on commas that are not inside a memory reference.
func splitOperands(s string, lineNo int) ([]string, error) {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses on line %d", lineNo)
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses on line %d", lineNo)
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(out) > 0 {
		out = append(out, last)
	}
	for _, op := range out {
		if op == "" {
			return nil, fmt.Errorf("empty operand on line %d", lineNo)
		}
	}
	return out, nil
}

func stripComments(line string) string {
	hash := strings.Index(line, "#")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if hash >= 0 {
		cut = hash
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func (a *Assembler) parseOperand(tok string, lineNo int) (Operand, error) {
	switch {
	case strings.HasPrefix(tok, "$"):
		v, err := strconv.ParseInt(tok[1:], 0, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid immediate '%s' on line %d", tok, lineNo)
		}
		if !fitsInt32(v) {
			return Operand{}, fmt.Errorf("immediate '%s' out of 32-bit range on line %d", tok, lineNo)
		}
		return Operand{Kind: Immediate, Imm: v}, nil

	case strings.HasPrefix(tok, "%"):
		r, err := parseRegister(tok, lineNo)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: Reg, Reg: r}, nil

	case strings.Contains(tok, "("):
		return a.parseMemory(tok, lineNo)

	case isIdentifier(tok):
		return Operand{Kind: Target, Symbol: tok, Index: -1}, nil
	}
	return Operand{}, fmt.Errorf("invalid operand '%s' on line %d", tok, lineNo)
}

// fitsInt32 reports whether v can be encoded as a sign-extended 32-bit
// immediate or displacement.
func fitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func parseRegister(token string, lineNo int) (Register, error) {
	r, ok := registers[strings.ToLower(strings.TrimPrefix(token, "%"))]
	if !ok {
		return Register{}, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
	}
	return r, nil
}

// parseMemory decodes disp(%base,%index,scale), label(%rip) and
// label+disp(%rip).
func (a *Assembler) parseMemory(tok string, lineNo int) (Operand, error) {
	op := Operand{Kind: Mem, Base: -1, Index: -1, Scale: 1}

	open := strings.IndexByte(tok, '(')
	if !strings.HasSuffix(tok, ")") {
		return op, fmt.Errorf("invalid memory operand '%s' on line %d", tok, lineNo)
	}
	disp := strings.TrimSpace(tok[:open])
	parts := strings.Split(tok[open+1:len(tok)-1], ",")

	if disp != "" {
		sym, off := disp, ""
		if i := strings.LastIndexAny(disp, "+-"); i > 0 {
			sym, off = disp[:i], disp[i:]
		}
		if isIdentifier(sym) {
			op.Symbol = sym
			if off != "" {
				v, err := strconv.ParseInt(off, 0, 64)
				if err != nil {
					return op, fmt.Errorf("invalid displacement '%s' on line %d", disp, lineNo)
				}
				op.Disp = v
			}
		} else {
			v, err := strconv.ParseInt(disp, 0, 64)
			if err != nil {
				return op, fmt.Errorf("invalid displacement '%s' on line %d", disp, lineNo)
			}
			op.Disp = v
		}
	}

	if !fitsInt32(op.Disp) {
		return op, fmt.Errorf("displacement in '%s' out of 32-bit range on line %d", tok, lineNo)
	}

	base := strings.TrimSpace(parts[0])
	if strings.EqualFold(base, "%rip") {
		if len(parts) != 1 || op.Symbol == "" {
			return op, fmt.Errorf("invalid rip-relative operand '%s' on line %d", tok, lineNo)
		}
		off, ok := a.data[op.Symbol]
		if !ok {
			return op, fmt.Errorf("undefined label '%s' on line %d", op.Symbol, lineNo)
		}
		op.RIP = true
		op.Disp += int64(off)
		if !fitsInt32(op.Disp) {
			return op, fmt.Errorf("displacement in '%s' out of 32-bit range on line %d", tok, lineNo)
		}
		return op, nil
	}
	if op.Symbol != "" {
		return op, fmt.Errorf("symbolic displacement needs %%rip on line %d: %s", lineNo, tok)
	}

	if base != "" {
		r, err := parseRegister(base, lineNo)
		if err != nil {
			return op, err
		}
		if r.Size != 8 {
			return op, fmt.Errorf("address register must be 64-bit on line %d: %s", lineNo, base)
		}
		op.Base = r.Num
	}
	if len(parts) > 1 {
		r, err := parseRegister(strings.TrimSpace(parts[1]), lineNo)
		if err != nil {
			return op, err
		}
		if r.Size != 8 {
			return op, fmt.Errorf("index register must be 64-bit on line %d: %s", lineNo, parts[1])
		}
		op.Index = r.Num
	}
	if len(parts) > 2 {
		s, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || (s != 1 && s != 2 && s != 4 && s != 8) {
			return op, fmt.Errorf("invalid scale on line %d: %s", lineNo, parts[2])
		}
		op.Scale = s
	}
	if len(parts) > 3 {
		return op, fmt.Errorf("invalid memory operand '%s' on line %d", tok, lineNo)
	}
	return op, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != '.' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}

	return true
}

func (o Operand) String() string {
	switch o.Kind {
	case Immediate:
		return fmt.Sprintf("$%d", o.Imm)
	case Reg:
		return "%" + o.Reg.Name
	case Target:
		return o.Symbol
	}
	if o.RIP {
		return fmt.Sprintf("%s@%d(%%rip)", o.Symbol, o.Disp)
	}
	return fmt.Sprintf("%d(r%d,r%d,%d)", o.Disp, o.Base, o.Index, o.Scale)
}

package asm

import (
	"reflect"
	"strings"
	"testing"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{".Lmain_out", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
		{"%eax", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	regTests := []struct {
		token string
		want  Register
	}{
		{"%eax", Register{Name: "eax", Num: 0, Size: 4}},
		{"%rbp", Register{Name: "rbp", Num: 5, Size: 8}},
		{"%r11d", Register{Name: "r11d", Num: 11, Size: 4}},
		{"%al", Register{Name: "al", Num: 0, Size: 1}},
		{"%cl", Register{Name: "cl", Num: 1, Size: 1}},
		{"%R10", Register{Name: "r10", Num: 10, Size: 8}},
	}
	for _, tc := range regTests {
		got, err := parseRegister(tc.token, 1)
		if err != nil || got != tc.want {
			t.Errorf("parseRegister(%q) = %+v, %v; want %+v", tc.token, got, err, tc.want)
		}
	}
	if _, err := parseRegister("%xmm0", 1); err == nil {
		t.Errorf("parseRegister should reject %%xmm0")
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			"\tmovl $5, %eax",
			parsedLine{lineNo: 1, mnemonic: "movl", operands: []string{"$5", "%eax"}},
			false,
		},
		{
			"  movl -8(%rbp,%r11,4), %eax  # comment",
			parsedLine{lineNo: 1, mnemonic: "movl", operands: []string{"-8(%rbp,%r11,4)", "%eax"}},
			false,
		},
		{
			"main:",
			parsedLine{lineNo: 1, labels: []string{"main"}},
			false,
		},
		{
			".Lf_out: movq %rbp, %rsp",
			parsedLine{lineNo: 1, labels: []string{".Lf_out"}, mnemonic: "movq", operands: []string{"%rbp", "%rsp"}},
			false,
		},
		{
			"\tret",
			parsedLine{lineNo: 1, mnemonic: "ret"},
			false,
		},
		{
			"\tMOVL\t$1,%eax",
			parsedLine{lineNo: 1, mnemonic: "movl", operands: []string{"$1", "%eax"}},
			false,
		},
		{
			"1bad: ret",
			parsedLine{},
			true,
		},
		{
			"\tmovl -8(%rbp, %eax",
			parsedLine{},
			true,
		},
		{
			"\tmovl $1,, %eax",
			parsedLine{},
			true,
		},
	}

	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseLine(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestAssemble(t *testing.T) {
	code := `	.text

	.globl main
main:
	pushq %rbp
	movq %rsp, %rbp
	subq $16, %rsp
	movl $3, -4(%rbp)
	movl b+4(%rip), %eax
	movl -8(%rbp,%r11,4), %eax
	leaq b(%rip), %r10
	movl (%r10,%r11,4), %eax
	cmpl $0, %eax
	je .Lmain_out
	call helper
.Lmain_out:
	movq %rbp, %rsp
	popq %rbp
	ret

	.data
	.globl a
a:
	.long 7
	.globl b
b:
	.long 1
	.long -2
	.zero 8
`
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if len(prog.Instrs) != 14 {
		t.Fatalf("expected 14 instructions, got %d", len(prog.Instrs))
	}
	if prog.Labels["main"] != 0 || prog.Labels[".Lmain_out"] != 11 {
		t.Errorf("text labels: %v", prog.Labels)
	}
	if prog.DataLabels["a"] != 0 || prog.DataLabels["b"] != 4 {
		t.Errorf("data labels: %v", prog.DataLabels)
	}
	if !reflect.DeepEqual(prog.Globals, []string{"main", "a", "b"}) {
		t.Errorf("globals: %v", prog.Globals)
	}

	wantData := []byte{7, 0, 0, 0, 1, 0, 0, 0, 0xFE, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0}
	if !reflect.DeepEqual(prog.Data, wantData) {
		t.Errorf("data = %v, want %v", prog.Data, wantData)
	}

	store := prog.Instrs[3].Operands[1]
	if store.Kind != Mem || store.Base != RBP || store.Disp != -4 || store.Index != -1 {
		t.Errorf("frame operand decoded as %+v", store)
	}

	global := prog.Instrs[4].Operands[0]
	if !global.RIP || global.Disp != 8 || global.Symbol != "b" {
		t.Errorf("rip operand should resolve to data offset 8: %+v", global)
	}

	indexed := prog.Instrs[5].Operands[0]
	if indexed.Base != RBP || indexed.Index != 11 || indexed.Scale != 4 || indexed.Disp != -8 {
		t.Errorf("indexed operand decoded as %+v", indexed)
	}

	je := prog.Instrs[9].Operands[0]
	if je.Kind != Target || je.Index != 11 {
		t.Errorf("je target: %+v", je)
	}

	call := prog.Instrs[10].Operands[0]
	if call.Kind != Target || call.Index != -1 || call.Symbol != "helper" {
		t.Errorf("call to an outside symbol should stay unresolved: %+v", call)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown mnemonic", "main:\n\tfrobl %eax", "unknown instruction on line 2: frobl"},
		{"duplicate label", "f:\n\tret\nf:\n\tret", "duplicate label 'f' on line 3"},
		{"duplicate across sections", "x:\n\tret\n\t.data\nx:\n\t.long 1", "duplicate label 'x' on line 4"},
		{"operand count", "\tmovl %eax", "movl expects 2 operands on line 1"},
		{"undefined jump", "\tjmp nowhere", "undefined label 'nowhere' on line 1"},
		{"undefined data", "\tmovl g(%rip), %eax", "undefined label 'g' on line 1"},
		{"bad register", "\tmovl %foo, %eax", "invalid register '%foo' on line 1"},
		{"bad immediate", "\tmovl $x, %eax", "invalid immediate '$x' on line 1"},
		{"data in text", "\t.long 1", ".long outside the data section on line 1"},
		{"code in data", "\t.data\n\tret", "instruction outside the text section on line 2"},
		{"narrow base", "\tmovl (%eax), %eax", "address register must be 64-bit on line 1"},
		{"label as data operand", "f:\n\tmovl f, %eax", "invalid operand 'f' on line 2"},
		{"immediate too wide", "\tsubq $2400000000, %rsp", "immediate '$2400000000' out of 32-bit range on line 1"},
		{"displacement too wide", "\tmovl $1, -2400000000(%rbp)", "displacement in '-2400000000(%rbp)' out of 32-bit range on line 1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Assemble(tc.code)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestInt32Bounds(t *testing.T) {
	prog, err := Assemble("\tmovl $-2147483648, %eax\n\tmovl $2147483647, -2147483648(%rbp)")
	if err != nil {
		t.Fatalf("32-bit extremes should assemble: %v", err)
	}
	if got := prog.Instrs[1].Operands[1].Disp; got != -2147483648 {
		t.Errorf("Disp = %d", got)
	}
}

func TestInstructionLines(t *testing.T) {
	code := `
# Line 2: comment
main:
	movl $10, %eax      # Line 4

	addl $1, %eax       // Line 6
	ret                 # Line 7
`
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := []int{4, 6, 7}
	for i, in := range prog.Instrs {
		if in.Line != want[i] {
			t.Errorf("instruction %d (%s) on line %d, want %d", i, in.Mnemonic, in.Line, want[i])
		}
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"movl $1, %eax", "movl $1, %eax"},
		{"movl $1, %eax # comment", "movl $1, %eax "},
		{"movl $1, %eax // comment", "movl $1, %eax "},
		{"// comment", ""},
		{"# comment", ""},
		{"movl $1, %eax # first // second", "movl $1, %eax "},
	}
	for _, tc := range tests {
		if got := stripComments(tc.input); got != tc.want {
			t.Errorf("stripComments(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

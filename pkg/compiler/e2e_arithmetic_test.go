package compiler

import (
	"fmt"
	"testing"
)

func TestConstantExpressions_E2E(t *testing.T) {
	tests := []struct {
		expr     string
		expected int32
	}{
		{"6 * 7", 42},
		{"100 / 10", 10},
		{"10 % 3", 1},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"0xFF & 0x0F", 15},
		{"0xF0 | 0x0F", 255},
		{"~0", -1},
		{"1 << 4", 16},
		{"256 >> 4", 16},
		{"5 < 10", 1},
		{"1 != 1", 0},
		{"!5", 0},
		{"-(3 - 10)", 7},
	}
	for _, tt := range tests {
		src := fmt.Sprintf("int main() { return %s; }", tt.expr)
		if got := runCode(t, src); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.expr, tt.expected, got)
		}
	}
}

func TestBinaryOperators_E2E(t *testing.T) {
	tests := []struct {
		a        int32
		op       string
		b        int32
		expected int32
	}{
		{6, "*", 7, 42},
		{3, "-", 10, -7},
		{100, "/", 10, 10},
		{-7, "/", 2, -3},
		{-7, "%", 2, -1},
		{7, "%", -2, 1},
		{255, "&", 15, 15},
		{240, "|", 15, 255},
		{5, "^", 3, 6},
		{1, "<<", 4, 16},
		{-256, ">>", 4, -16},
		{2147483647, "+", 1, -2147483648},
		{5, "<", 10, 1},
		{10, "<", 5, 0},
		{5, ">=", 5, 1},
		{5, "<=", 4, 0},
		{-1, ">", -2, 1},
		{3, "==", 3, 1},
		{3, "!=", 3, 0},
	}
	for _, tt := range tests {
		src := fmt.Sprintf("int main() { int a = %d; int b = %d; return a %s b; }", tt.a, tt.b, tt.op)
		if got := runCode(t, src); got != tt.expected {
			t.Errorf("%d %s %d: expected %d, got %d", tt.a, tt.op, tt.b, tt.expected, got)
		}
	}
}

func TestUnaryOperators_E2E(t *testing.T) {
	tests := []struct {
		expr     string
		expected int32
	}{
		{"-a", -5},
		{"~a", -6},
		{"!a", 0},
		{"!z", 1},
		{"-(-a)", 5},
		{"!(a - 5)", 1},
	}
	for _, tt := range tests {
		src := fmt.Sprintf("int main() { int a = 5; int z = 0; return %s + z; }", tt.expr)
		if got := runCode(t, src); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.expr, tt.expected, got)
		}
	}
}

func TestNestedExpressions_E2E(t *testing.T) {
	src := `
int main() {
	int a = 3;
	int b = 4;
	int c = 5;
	return (a * b + c) * (c - a) - (b << a) / (c % a + 1) + (a < b) * 100;
}`
	// (12 + 5) * 2 - 32 / 3 + 100 = 34 - 10 + 100
	if got := runCode(t, src); got != 124 {
		t.Errorf("expected 124, got %d", got)
	}
}

func TestCompoundAssignment_E2E(t *testing.T) {
	src := `
int main() {
	int x = 10;
	x += 5;
	x -= 3;
	x *= 2;
	x /= 4;
	x <<= 2;
	x++;
	x--;
	x--;
	return x;
}`
	// ((10 + 5 - 3) * 2 / 4) << 2 = 24, then -1
	if got := runCode(t, src); got != 23 {
		t.Errorf("expected 23, got %d", got)
	}
}

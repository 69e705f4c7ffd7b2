package ops

import (
	"math"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		l, r int32
		want int32
		ok   bool
	}{
		{"add", Add, 2, 3, 5, true},
		{"sub negative", Sub, 2, 5, -3, true},
		{"mul", Mul, 3, 4, 12, true},
		{"div truncates toward zero", Div, -7, 2, -3, true},
		{"mod keeps dividend sign", Mod, -7, 2, -1, true},
		{"div by zero", Div, 1, 0, 0, false},
		{"mod by zero", Mod, 1, 0, 0, false},
		{"overflow wraps", Add, math.MaxInt32, 1, math.MinInt32, true},
		{"min over minus one", Div, math.MinInt32, -1, math.MinInt32, true},
		{"shl", Shl, 1, 4, 16, true},
		{"shl masks count", Shl, 1, 33, 2, true},
		{"shr arithmetic", Shr, -16, 2, -4, true},
		{"and", BitAnd, 6, 3, 2, true},
		{"or", BitOr, 6, 3, 7, true},
		{"xor", BitXor, 6, 3, 5, true},
		{"lt true", Lt, 1, 2, 1, true},
		{"ge false", Ge, 1, 2, 0, true},
		{"eq", Eq, 4, 4, 1, true},
		{"ne", Ne, 4, 4, 0, true},
		{"logand", LogAnd, 3, 0, 0, true},
		{"logor", LogOr, 0, 9, 1, true},
		{"unary is not binary", Neg, 1, 1, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Fold(tc.op, tc.l, tc.r)
			if ok != tc.ok || got != tc.want {
				t.Errorf("Fold(%s, %d, %d) = %d, %v; want %d, %v", tc.op, tc.l, tc.r, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestFoldUnary(t *testing.T) {
	tests := []struct {
		op   Op
		v    int32
		want int32
	}{
		{Neg, 5, -5},
		{Not, 0, 1},
		{Not, 7, 0},
		{BitNot, 0, -1},
	}
	for _, tc := range tests {
		got, ok := FoldUnary(tc.op, tc.v)
		if !ok || got != tc.want {
			t.Errorf("FoldUnary(%s, %d) = %d, %v; want %d", tc.op, tc.v, got, ok, tc.want)
		}
	}
	if _, ok := FoldUnary(Add, 1); ok {
		t.Error("FoldUnary(Add) should not fold")
	}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name           string
		op             Op
		l, r           int32
		lConst, rConst bool
		want           Side
	}{
		{"x+0", Add, 0, 0, false, true, Left},
		{"0+x", Add, 0, 0, true, false, Right},
		{"x-0", Sub, 0, 0, false, true, Left},
		{"0-x is not an identity", Sub, 0, 0, true, false, Neither},
		{"x*1", Mul, 0, 1, false, true, Left},
		{"1*x", Mul, 1, 0, true, false, Right},
		{"x/1", Div, 0, 1, false, true, Left},
		{"1/x is not an identity", Div, 1, 0, true, false, Neither},
		{"x*2", Mul, 0, 2, false, true, Neither},
		{"x+y", Add, 0, 0, false, false, Neither},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Identity(tc.op, tc.l, tc.r, tc.lConst, tc.rConst); got != tc.want {
				t.Errorf("got %v; want %v", got, tc.want)
			}
		})
	}
}

func TestOpClasses(t *testing.T) {
	if !Add.IsArithmetic() || !Shr.IsArithmetic() || Eq.IsArithmetic() {
		t.Error("arithmetic classification wrong")
	}
	if !Lt.IsComparison() || LogAnd.IsComparison() {
		t.Error("comparison classification wrong")
	}
	if LogOr.IsArithmetic() || Neg.IsArithmetic() || Ge.IsArithmetic() {
		t.Error("only binary arithmetic operators are arithmetic")
	}
	if Shl.String() != "<<" || SignExtend.String() != "sext" {
		t.Errorf("unexpected symbols %q %q", Shl, SignExtend)
	}
}

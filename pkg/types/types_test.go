package types

import "testing"

func TestSizeOf(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{Int, 4},
		{Char, 4},
		{Double, 8},
		{Void, 1},
		{Undefined, 1},
	}
	for _, tc := range tests {
		if got := SizeOf(tc.typ); got != tc.want {
			t.Errorf("SizeOf(%s) = %d; want %d", tc.typ, got, tc.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, kw := range []string{"int", "char", "void", "double"} {
		if got := Parse(kw).String(); got != kw {
			t.Errorf("Parse(%q).String() = %q", kw, got)
		}
	}
	if Parse("float") != Undefined {
		t.Errorf("Parse(\"float\") should be Undefined")
	}
	if Type(42).String() != "Type(42)" {
		t.Errorf("unexpected name for out-of-range type: %s", Type(42))
	}
}

func TestScalar(t *testing.T) {
	if !Scalar(Int) || !Scalar(Char) {
		t.Error("int and char must be scalar")
	}
	if Scalar(Void) || Scalar(Double) || Scalar(Undefined) {
		t.Error("void, double and undefined must not be scalar")
	}
}

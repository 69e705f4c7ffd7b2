package utils

import (
	"path/filepath"
	"testing"
)

func TestGetPathInfo(t *testing.T) {
	full, dir, err := GetPathInfo("testdata/../prog.c")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(full) || filepath.Base(full) != "prog.c" {
		t.Errorf("full = %q", full)
	}
	if dir != filepath.Dir(full) {
		t.Errorf("dir = %q, want %q", dir, filepath.Dir(full))
	}
}

func TestReplaceExt(t *testing.T) {
	tests := []struct{ in, ext, want string }{
		{"prog.c", ".s", "prog.s"},
		{"dir/prog.c", ".s", "dir/prog.s"},
		{"noext", ".s", "noext.s"},
		{"a.b/prog.txt", ".s", "a.b/prog.s"},
		{"prog.c", ".png", "prog.png"},
	}
	for _, tc := range tests {
		if got := ReplaceExt(tc.in, tc.ext); got != tc.want {
			t.Errorf("ReplaceExt(%q, %q) = %q, want %q", tc.in, tc.ext, got, tc.want)
		}
	}
}

package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runTool(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCompileAndRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "primes.s")
	code, stdout, stderr := runTool(t, "-in", "testdata/primes.c", "-out", out, "-run")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "main returned 25") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	asm, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".globl isPrime", "call isPrime", "idivl %r11d"} {
		if !strings.Contains(string(asm), want) {
			t.Errorf("assembly missing %q", want)
		}
	}
}

func TestHeaderDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "best.s")
	code, stdout, stderr := runTool(t, "-in", "testdata/best.c", "-out", out, "-headers", "testdata/headers", "-run")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "main returned 9") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	code, _, stderr = runTool(t, "-in", "testdata/best.c", "-out", out)
	if code != 1 || !strings.Contains(stderr, "util.h") {
		t.Errorf("without -headers the include should fail, exit %d: %s", code, stderr)
	}
}

func TestGraphOutputs(t *testing.T) {
	dir := t.TempDir()
	dot := filepath.Join(dir, "cfg.dot")
	pngDir := filepath.Join(dir, "png")
	code, stdout, stderr := runTool(t,
		"-in", "testdata/primes.c",
		"-out", filepath.Join(dir, "primes.s"),
		"-dot", dot,
		"-png", pngDir,
		"-dump-ir")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "isPrime") {
		t.Errorf("IR dump missing function:\n%s", stdout)
	}

	graph, err := os.ReadFile(dot)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(graph), "digraph") {
		t.Errorf("dot output:\n%s", graph)
	}

	for _, fn := range []string{"isPrime", "main"} {
		f, err := os.Open(filepath.Join(pngDir, fn+".png"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = png.Decode(f)
		f.Close()
		if err != nil {
			t.Errorf("%s.png: %v", fn, err)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, _ := runTool(t); code != 2 {
		t.Errorf("no input: exit %d, want 2", code)
	}
	if code, _, _ := runTool(t, "-bogus"); code != 2 {
		t.Errorf("unknown flag: exit %d, want 2", code)
	}
	if code, _, _ := runTool(t, "-in", "testdata/missing.c"); code != 1 {
		t.Errorf("missing file: exit %d, want 1", code)
	}
}

func TestCompileErrorExitCode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.c")
	if err := os.WriteFile(src, []byte("int main() { return x; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runTool(t, "-in", src)
	if code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if n := strings.Count(stderr, "'x'"); n != 1 {
		t.Errorf("the diagnostic should be printed once, got %d times:\n%s", n, stderr)
	}
}

func TestDefaultOutputBesideInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "one.c")
	if err := os.WriteFile(src, []byte("int main() { return 1; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, stderr := runTool(t, "-in", src); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "one.s")); err != nil {
		t.Errorf("assembly not written beside the input: %v", err)
	}
}

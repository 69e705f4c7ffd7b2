package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestVirtualDisk_Write(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		data         []byte
		initialUsed  int
		expectError  error
		expectedUsed int
	}{
		{
			name:         "Valid write",
			filename:     "test.h",
			data:         []byte{1, 2, 3},
			expectedUsed: 3,
		},
		{
			name:         "Nested path",
			filename:     "lib/util/math.h",
			data:         []byte{1},
			expectedUsed: 1,
		},
		{
			name:        "Invalid filename special chars",
			filename:    "test!.h",
			data:        []byte{1},
			expectError: ErrInvalidFilename,
		},
		{
			name:        "Invalid filename path traversal",
			filename:    "../passwd",
			data:        []byte{1},
			expectError: ErrInvalidFilename,
		},
		{
			name:        "Invalid absolute path",
			filename:    "/etc/passwd",
			data:        []byte{1},
			expectError: ErrInvalidFilename,
		},
		{
			name:        "Invalid hidden component",
			filename:    "lib/.hidden.h",
			data:        []byte{1},
			expectError: ErrInvalidFilename,
		},
		{
			name:         "Quota exceeded",
			filename:     "big.h",
			data:         make([]byte, 100),
			initialUsed:  MaxDiskBytes - 50,
			expectError:  ErrQuotaExceeded,
			expectedUsed: MaxDiskBytes - 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vd := NewVirtualDisk()
			vd.UsedBytes = tt.initialUsed
			err := vd.Write(tt.filename, tt.data)
			if !errors.Is(err, tt.expectError) {
				t.Errorf("Write() error = %v, want %v", err, tt.expectError)
			}
			if vd.UsedBytes != tt.expectedUsed {
				t.Errorf("UsedBytes = %d, want %d", vd.UsedBytes, tt.expectedUsed)
			}
		})
	}
}

func TestVirtualDisk_Read(t *testing.T) {
	vd := NewVirtualDisk()
	if err := vd.Write("a.h", []byte("int a;")); err != nil {
		t.Fatal(err)
	}

	got, err := vd.Read("a.h")
	if err != nil || string(got) != "int a;" {
		t.Errorf("Read(a.h) = %q, %v", got, err)
	}
	if _, err := vd.Read("missing.h"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Read(missing.h) error = %v", err)
	}
	if _, err := vd.Read("../a.h"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("Read(../a.h) error = %v", err)
	}
}

func TestVirtualDisk_UpdateFileSize(t *testing.T) {
	vd := NewVirtualDisk()
	_ = vd.Write("f.h", make([]byte, 10))
	_ = vd.Write("g.h", make([]byte, 3))
	_ = vd.Write("f.h", make([]byte, 4))
	if vd.UsedBytes != 7 {
		t.Errorf("UsedBytes = %d after overwrite, want 7", vd.UsedBytes)
	}
	got, _ := vd.Read("f.h")
	if len(got) != 4 {
		t.Errorf("f.h holds %d bytes, want 4", len(got))
	}
}

func TestVirtualDisk_DeepCopy(t *testing.T) {
	vd := NewVirtualDisk()
	data := []byte("int x;")
	_ = vd.Write("x.h", data)
	data[0] = 'X'

	got, _ := vd.Read("x.h")
	if string(got) != "int x;" {
		t.Errorf("stored data changed with the caller's slice: %q", got)
	}
}

func TestVirtualDisk_QuotaExact(t *testing.T) {
	vd := NewVirtualDisk()
	if err := vd.Write("full.h", make([]byte, MaxDiskBytes)); err != nil {
		t.Fatalf("filling the disk exactly should succeed: %v", err)
	}
	if err := vd.Write("more.h", []byte{1}); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestVirtualDisk_LoadFrom(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"top.h":         "#define TOP 1",
		"lib/inner.h":   "int inner(int x);",
		"lib/impl.c":    "int inner(int x) { return x; }",
		"notes.txt":     "ignored",
		"lib/.hidden.h": "ignored",
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	vd := NewVirtualDisk()
	if err := vd.LoadFrom(dir); err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	want := []string{"lib/impl.c", "lib/inner.h", "top.h"}
	if got := vd.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	if err := NewVirtualDisk().LoadFrom(filepath.Join(dir, "absent")); err != nil {
		t.Errorf("missing directory should be ignored, got %v", err)
	}
}

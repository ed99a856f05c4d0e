package android

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xyproto/introducer/procfs"
)

func TestAbiNameCombinations(t *testing.T) {
	cases := []struct {
		class procfs.Class
		arm   bool
		want  string
	}{
		{procfs.Bits32, true, "arm"},
		{procfs.Bits64, true, "arm64"},
		{procfs.Bits32, false, "i386"},
		{procfs.Bits64, false, "x86_64"},
	}
	for _, c := range cases {
		got, err := abiName(c.class, c.arm)
		if err != nil {
			t.Fatalf("abiName(%v, %v): %v", c.class, c.arm, err)
		}
		if got != c.want {
			t.Errorf("abiName(%v, %v) = %q, want %q", c.class, c.arm, got, c.want)
		}
	}
}

func TestEnsureLibCopiedCopiesOnFirstCall(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib", "arm64")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "evil.so")
	if err := os.WriteFile(src, []byte("payload bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := EnsureLibCopied(src, libDir)
	if err != nil {
		t.Fatalf("EnsureLibCopied: %v", err)
	}
	want := filepath.Join(libDir, "evil.so")
	if dst != want {
		t.Fatalf("dst = %q, want %q", dst, want)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload bytes" {
		t.Fatalf("copied content = %q, want %q", got, "payload bytes")
	}
}

func TestEnsureLibCopiedSkipsWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib", "arm64")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "evil.so")
	if err := os.WriteFile(src, []byte("new bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(libDir, "evil.so")
	if err := os.WriteFile(existing, []byte("already there"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := EnsureLibCopied(src, libDir)
	if err != nil {
		t.Fatalf("EnsureLibCopied: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "already there" {
		t.Fatalf("EnsureLibCopied overwrote existing file: got %q", got)
	}
}

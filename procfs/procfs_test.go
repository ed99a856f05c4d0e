package procfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindLibParsesMapsLine(t *testing.T) {
	dir := t.TempDir()
	procDir := filepath.Join(dir, "1234")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		t.Fatal(err)
	}

	line := "7f0b12300000-7f0b12450000 r-xp 00000000 08:01 131072                    /lib/x86_64-linux-gnu/libc-2.31.so\n"
	if err := os.WriteFile(filepath.Join(procDir, "maps"), []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	p := ForDir(procDir)
	lib, ok := p.FindLib("libc-2.31.so")
	if !ok {
		t.Fatal("FindLib returned false, want true")
	}
	if lib.BaseAddr != 0x7f0b12300000 {
		t.Fatalf("BaseAddr = %#x, want 0x7f0b12300000", lib.BaseAddr)
	}
}

func TestIPParsesSyscallFile(t *testing.T) {
	dir := t.TempDir()
	procDir := filepath.Join(dir, "1234")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := "0 0x3 0x7ffd 0x0 0x0 0x0 0x0 0x7ffd1234 0x7f00deadbeef\n"
	if err := os.WriteFile(filepath.Join(procDir, "syscall"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := ForDir(procDir)
	ip, ok := p.IP()
	if !ok {
		t.Fatal("IP returned false, want true")
	}
	if ip != 0x7f00deadbeef {
		t.Fatalf("IP = %#x, want 0x7f00deadbeef", ip)
	}
}

func TestIPReturnsFalseWhenRunning(t *testing.T) {
	dir := t.TempDir()
	procDir := filepath.Join(dir, "1234")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(procDir, "syscall"), []byte("running\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := ForDir(procDir)
	if _, ok := p.IP(); ok {
		t.Fatal("IP returned true for a running thread, want false")
	}
}

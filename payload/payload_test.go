package payload

import (
	"bytes"
	"testing"
)

func TestShellCode64EmbedsStagePath(t *testing.T) {
	code, err := ShellCode(MachineX8664, "/tmp/payload.bin")
	if err != nil {
		t.Fatalf("ShellCode: %v", err)
	}
	if !bytes.Contains(code, []byte("/tmp/payload.bin\x00")) {
		t.Fatal("shellcode does not contain the null-terminated stage path")
	}
}

func TestStageCode64EmbedsOriginalCodeAndLibPath(t *testing.T) {
	original := []byte{0x90, 0x90, 0x90, 0x90}
	code, err := StageCode(MachineX8664, original, 0x7f0000001000, "/lib/evil.so", Sym{Addr: 0x7f0000002000})
	if err != nil {
		t.Fatalf("StageCode: %v", err)
	}
	if !bytes.Contains(code, original) {
		t.Fatal("stage-two does not embed the original code bytes")
	}
	if !bytes.Contains(code, []byte("/lib/evil.so\x00")) {
		t.Fatal("stage-two does not embed the null-terminated library path")
	}
}

func TestAllMachinesBuildWithoutError(t *testing.T) {
	machines := []Machine{MachineX86, MachineX8664, MachineARM, MachineARM64}
	for _, m := range machines {
		if _, err := ShellCode(m, "/tmp/payload.bin"); err != nil {
			t.Fatalf("ShellCode(%d): %v", m, err)
		}
		if _, err := StageCode(m, []byte{1, 2, 3, 4}, 0x1000, "/lib/x.so", Sym{Addr: 0x2000}); err != nil {
			t.Fatalf("StageCode(%d): %v", m, err)
		}
	}
}

func TestMachineClass(t *testing.T) {
	cases := map[Machine]Class{
		MachineX86:   ThirtyTwo,
		MachineARM:   ThirtyTwo,
		MachineX8664: SixtyFour,
		MachineARM64: SixtyFour,
	}
	for m, want := range cases {
		if got := m.Class(); got != want {
			t.Errorf("Machine(%d).Class() = %d, want %d", m, got, want)
		}
	}
}

// Package x8664 emits raw x86-64 machine code on top of asm.Builder.
package x8664

import "github.com/xyproto/introducer/asm"

// X8664 emits raw x86-64 machine code. Like x86.X86, instructions are
// opaque byte sequences chosen by the caller; the only thing the encoder
// resolves is the 32-bit displacement of a RIP-relative form.
type X8664 struct {
	*asm.Builder
}

// New returns an empty x86-64 encoder.
func New() *X8664 {
	return &X8664{asm.New()}
}

// Instr appends an instruction's raw bytes verbatim.
func (a *X8664) Instr(b []byte) *X8664 {
	a.Bytes(b)
	return a
}

// InstrWithRef appends prefix (e.g. the bytes of `lea rdi, [rip+X]` up to
// but not including the displacement), then reserves 4 bytes patched at
// Build time with label's RIP-relative displacement: label_offset -
// patch_offset - 4, the standard x86-64 rule for a displacement that ends
// exactly at the start of the next instruction.
func (a *X8664) InstrWithRef(prefix []byte, label string) *X8664 {
	a.Bytes(prefix)
	a.Reserve4(label, func(patchOffset, labelOffset int32) uint32 {
		return uint32(labelOffset - patchOffset - 4)
	})
	return a
}

// Build consumes the encoder and returns the final byte slice.
func (a *X8664) Build() ([]byte, error) {
	return a.Builder.Build()
}

// Package x86 emits raw 32-bit x86 machine code on top of asm.Builder.
package x86

import "github.com/xyproto/introducer/asm"

// X86 emits raw 32-bit x86 machine code. Unlike the fixed-width ARM
// encoders, x86 instructions are emitted verbatim as the caller's chosen
// byte sequence; the Builder only ever sees opaque bytes plus, for
// label-relative forms, a 4-byte placeholder to patch later.
//
// 32-bit x86 has no RIP-relative addressing, so callers needing a runtime
// base address use the classic call/pop idiom themselves (emit a CALL to
// the next instruction, POP the return address, then add the label's
// buffer-relative offset) and InstrWithRef supplies that last offset as an
// absolute-within-buffer displacement.
type X86 struct {
	*asm.Builder
}

// New returns an empty 32-bit x86 encoder.
func New() *X86 {
	return &X86{asm.New()}
}

// Instr appends an instruction's raw bytes verbatim.
func (a *X86) Instr(b []byte) *X86 {
	a.Bytes(b)
	return a
}

// InstrWithRef appends prefix, then reserves 4 bytes patched at Build time
// with the buffer offset of label. The patched value is the label's
// absolute offset within the final buffer, not a displacement, since
// callers recover the runtime base separately via call/pop.
func (a *X86) InstrWithRef(prefix []byte, label string) *X86 {
	a.Bytes(prefix)
	a.Reserve4(label, func(_, labelOffset int32) uint32 {
		return uint32(labelOffset)
	})
	return a
}

// Build consumes the encoder and returns the final byte slice.
func (a *X86) Build() ([]byte, error) {
	return a.Builder.Build()
}

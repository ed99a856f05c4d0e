// Package arm64 emits raw AArch64 machine code on top of asm.Builder.
package arm64

import "github.com/xyproto/introducer/asm"

// Reg is an AArch64 general-purpose register, plus the SP and XZR
// aliases, both of which encode as 31.
type Reg uint32

const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29
	X30
)

const (
	XSP Reg = 31
	XZR Reg = 31
)

// AddrMode2 selects indexing mode for a single- or paired-register
// transfer (LDR/STR/LDP/STP).
type AddrMode2 int

const (
	Offset AddrMode2 = iota
	PreIndexed
	PostIndexed
)

// Shift selects the shift kind applied to the second operand of a
// shifted-register data processing instruction.
type Shift uint32

const (
	Lsr Shift = iota
	Asr
	Lsl
	Ror
)

func arm64Adri(xd Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Adri(xd, (1<<21)+imm)
	}
	// ADR's immediate is split into immlo (bits 29:30) and immhi (bits
	// 5:23); this reproduces the source crate's bit-twiddled form rather
	// than a principled immlo:immhi split (see DESIGN.md open question).
	u := uint32(imm)
	return (((u<<1)+1)%8)<<28 | (u>>2)<<5 | uint32(xd)
}

func arm64Blr(xn Reg) uint32 { return 0xd63f0000 | uint32(xn)<<5 }

func arm64Br(xn Reg) uint32 { return 0xd61f0000 | uint32(xn)<<5 }

func addrMode2Bits(mode AddrMode2) uint32 {
	switch mode {
	case PreIndexed:
		return 3
	case PostIndexed:
		return 1
	default:
		return 2
	}
}

func arm64Ldp(mode AddrMode2, xt1, xt2, xn Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Ldp(mode, xt1, xt2, xn, 1024+imm)
	}
	return 0xa8400000 | addrMode2Bits(mode)<<23 | (uint32(imm)>>3)<<15 | uint32(xt2)<<10 | uint32(xn)<<5 | uint32(xt1)
}

func arm64Stp(mode AddrMode2, xt1, xt2, xn Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Stp(mode, xt1, xt2, xn, 1024+imm)
	}
	return 0xa8000000 | addrMode2Bits(mode)<<23 | (uint32(imm)>>3)<<15 | uint32(xt2)<<10 | uint32(xn)<<5 | uint32(xt1)
}

func arm64Ldri(mode AddrMode2, xt, xn Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Ldri(mode, xt, xn, 512+imm)
	}
	switch mode {
	case PreIndexed:
		return 0xf8400c00 | uint32(imm)<<12 | uint32(xn)<<5 | uint32(xt)
	case PostIndexed:
		return 0xf8400400 | uint32(imm)<<12 | uint32(xn)<<5 | uint32(xt)
	default:
		return 0xf9400000 | uint32(imm)<<10 | uint32(xn)<<5 | uint32(xt)
	}
}

func arm64Stri(mode AddrMode2, xt, xn Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Stri(mode, xt, xn, 512+imm)
	}
	switch mode {
	case PreIndexed:
		return 0xf8000c00 | uint32(imm)<<12 | uint32(xn)<<5 | uint32(xt)
	case PostIndexed:
		return 0xf8000400 | uint32(imm)<<12 | uint32(xn)<<5 | uint32(xt)
	default:
		return 0xf9000000 | uint32(imm)<<10 | uint32(xn)<<5 | uint32(xt)
	}
}

func arm64Ldrli(xt Reg, imm int32) uint32 {
	if imm < 0 {
		return arm64Ldrli(xt, (1<<21)+imm)
	}
	// LDR (literal): displacement is in words, right-shifted by 2.
	return 0x58000000 | uint32(imm>>2)<<5 | uint32(xt)
}

func arm64Movi(xd Reg, imm int32) uint32 {
	if imm < 0 {
		return 0x40000020 ^ arm64Movi(xd, -imm)
	}
	return 0xd2800000 | uint32(imm)<<5 | uint32(xd)
}

func arm64Orrsr(xd, xn, xm Reg, shift Shift, amount uint8) uint32 {
	return 0xaa000000 | uint32(shift)<<22 | uint32(xm)<<16 | uint32(amount)<<10 | uint32(xn)<<5 | uint32(xd)
}

func arm64Svc(imm uint16) uint32 { return 0xd4000001 | uint32(imm)<<5 }

// AArch64 is a 64-bit ARM encoder.
type AArch64 struct {
	*asm.Builder
}

// New returns an empty AArch64 encoder.
func New() *AArch64 {
	return &AArch64{asm.New()}
}

// Adr encodes ADR Xd, label. The displacement (label_offset - op_offset,
// no pipeline bias on AArch64) is resolved once label is known.
func (a *AArch64) Adr(xd Reg, label string) *AArch64 {
	a.Reserve4(label, func(patchOffset, labelOffset int32) uint32 {
		return arm64Adri(xd, labelOffset-patchOffset)
	})
	return a
}

// Blr encodes BLR Xn.
func (a *AArch64) Blr(xn Reg) *AArch64 {
	a.Dword(arm64Blr(xn))
	return a
}

// Br encodes BR Xn.
func (a *AArch64) Br(xn Reg) *AArch64 {
	a.Dword(arm64Br(xn))
	return a
}

// Ldp encodes LDP Xt1, Xt2, [Xn|SP]{,#imm} in the given indexing mode.
func (a *AArch64) Ldp(mode AddrMode2, xt1, xt2, xn Reg, imm int32) *AArch64 {
	a.Dword(arm64Ldp(mode, xt1, xt2, xn, imm))
	return a
}

// Stp encodes STP Xt1, Xt2, [Xn|SP]{,#imm} in the given indexing mode.
func (a *AArch64) Stp(mode AddrMode2, xt1, xt2, xn Reg, imm int32) *AArch64 {
	a.Dword(arm64Stp(mode, xt1, xt2, xn, imm))
	return a
}

// Ldri encodes LDR Xt, [Xn|SP]{,#imm} in the given indexing mode.
func (a *AArch64) Ldri(mode AddrMode2, xt, xn Reg, imm int32) *AArch64 {
	a.Dword(arm64Ldri(mode, xt, xn, imm))
	return a
}

// Stri encodes STR Xt, [Xn|SP]{,#imm} in the given indexing mode.
func (a *AArch64) Stri(mode AddrMode2, xt, xn Reg, imm int32) *AArch64 {
	a.Dword(arm64Stri(mode, xt, xn, imm))
	return a
}

// Ldrl encodes LDR Xt, label: a PC-relative literal load whose displacement
// (in words, i.e. right-shifted by 2 before encoding) is resolved once
// label is known.
func (a *AArch64) Ldrl(xt Reg, label string) *AArch64 {
	a.Reserve4(label, func(patchOffset, labelOffset int32) uint32 {
		return arm64Ldrli(xt, labelOffset-patchOffset)
	})
	return a
}

// Movi encodes MOV Xd, #imm (wide immediate form).
func (a *AArch64) Movi(xd Reg, imm int32) *AArch64 {
	a.Dword(arm64Movi(xd, imm))
	return a
}

// Movr encodes MOV Xd, Xm as ORR Xd, XZR, Xm.
func (a *AArch64) Movr(xd, xm Reg) *AArch64 {
	a.Dword(arm64Orrsr(xd, XZR, xm, Lsl, 0))
	return a
}

// Svc encodes SVC #imm16.
func (a *AArch64) Svc(imm uint16) *AArch64 {
	a.Dword(arm64Svc(imm))
	return a
}

// Build consumes the encoder and returns the final byte slice.
func (a *AArch64) Build() ([]byte, error) {
	return a.Builder.Build()
}

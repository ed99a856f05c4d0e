// Package arm emits raw 32-bit ARM (AArch32) machine code on top of
// asm.Builder.
package arm

import "github.com/xyproto/introducer/asm"

// Reg is a 32-bit ARM general-purpose register, plus the conventional
// SP/LR/PC aliases for r13/r14/r15.
type Reg uint32

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

const (
	SP = R13
	LR = R14
	PC = R15
)

// AddrMode selects the increment/decrement direction and timing of a
// block data transfer (LDM/STM), per the ARM ARM.
type AddrMode uint32

const (
	DecrAfter AddrMode = iota
	IncrAfter
	DecrBefore
	IncrBefore
)

// AddrMode2 selects indexing mode for a single-register transfer (LDR/STR).
type AddrMode2 int

const (
	Offset AddrMode2 = iota
	PreIndexed
	PostIndexed
)

func armAddi(rd, rn Reg, imm uint32) uint32 {
	return 0xe2800000 | uint32(rn)<<16 | uint32(rd)<<12 | imm
}

func armSubi(rd, rn Reg, imm uint32) uint32 {
	return 0xe2400000 | uint32(rn)<<16 | uint32(rd)<<12 | imm
}

// armAdri encodes ADR as ADD/SUB against PC, flipping to SUB and negating
// the immediate when it is negative.
func armAdri(rd Reg, imm int32) uint32 {
	if imm < 0 {
		return armSubi(rd, PC, uint32(-imm))
	}
	return armAddi(rd, PC, uint32(imm))
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func armLdrStr(base uint32, mode AddrMode2, rt, rn Reg, imm int32) uint32 {
	index, wback := uint32(1), uint32(0)
	switch mode {
	case Offset:
		index, wback = 1, 0
	case PreIndexed:
		index, wback = 1, 1
	case PostIndexed:
		index, wback = 0, 1
	}

	u := uint32(1)
	abs := imm
	if imm < 0 {
		u = 0
		abs = -imm
	}

	return base | index<<24 | u<<23 | wback<<21 | uint32(rn)<<16 | uint32(rt)<<12 | uint32(abs)
}

func armLdri(mode AddrMode2, rt, rn Reg, imm int32) uint32 {
	return armLdrStr(0xe4100000, mode, rt, rn, imm)
}

func armMovr(rd, rm Reg) uint32 {
	return 0xe1a00000 | uint32(rd)<<12 | uint32(rm)
}

func armMovw(rd Reg, imm uint32) uint32 {
	return 0xe3000000 | (imm>>12)<<16 | uint32(rd)<<12 | (imm & 0xfff)
}

func armSvc(imm uint32) uint32 {
	return 0xef000000 | imm
}

func armBlockXfer(base uint32, mode AddrMode, rn Reg, wb bool, regs []Reg) uint32 {
	v := base | uint32(mode)<<23 | b2u32(wb)<<21 | uint32(rn)<<16
	for _, r := range regs {
		v |= 1 << uint32(r)
	}
	return v
}

// ARM is a 32-bit ARM (AArch32) encoder.
type ARM struct {
	*asm.Builder
}

// New returns an empty ARM encoder.
func New() *ARM {
	return &ARM{asm.New()}
}

// Movr encodes MOV Rd, Rm.
func (a *ARM) Movr(rd, rm Reg) *ARM {
	a.Dword(armMovr(rd, rm))
	return a
}

// Movw encodes MOVW Rd, #imm16.
func (a *ARM) Movw(rd Reg, imm uint16) *ARM {
	a.Dword(armMovw(rd, uint32(imm)))
	return a
}

// Svc encodes SVC #imm24.
func (a *ARM) Svc(imm uint32) *ARM {
	a.Dword(armSvc(imm))
	return a
}

// Ldri encodes LDR Rt, [Rn, #+/-imm] in the given indexing mode.
func (a *ARM) Ldri(mode AddrMode2, rt, rn Reg, imm int32) *ARM {
	a.Dword(armLdri(mode, rt, rn, imm))
	return a
}

// Adrl encodes ADR Rd, label: a PC-relative ADD/SUB whose immediate is
// resolved once label is known, using the ARM pipeline bias of 8 bytes:
// label_offset - op_offset - 8.
func (a *ARM) Adrl(rd Reg, label string) *ARM {
	a.Reserve4(label, func(patchOffset, labelOffset int32) uint32 {
		return armAdri(rd, labelOffset-patchOffset-8)
	})
	return a
}

// Ldrl encodes LDR Rt, label: a PC-relative literal load resolved the same
// way as Adrl.
func (a *ARM) Ldrl(rt Reg, label string) *ARM {
	a.Reserve4(label, func(patchOffset, labelOffset int32) uint32 {
		return armLdri(Offset, rt, PC, labelOffset-patchOffset-8)
	})
	return a
}

// Push encodes PUSH {regs}, i.e. STMDB SP!, {regs}.
func (a *ARM) Push(regs []Reg) *ARM {
	a.Dword(armBlockXfer(0xe8000000, DecrBefore, SP, true, regs))
	return a
}

// Pop encodes POP {regs}, i.e. LDMIA SP!, {regs}.
func (a *ARM) Pop(regs []Reg) *ARM {
	a.Dword(armBlockXfer(0xe8100000, IncrAfter, SP, true, regs))
	return a
}

// Build consumes the encoder and returns the final byte slice.
func (a *ARM) Build() ([]byte, error) {
	return a.Builder.Build()
}

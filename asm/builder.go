// Package asm is a tiny, append-only machine code emitter with
// forward-referenceable labels. It never looks back at bytes it has
// already written: every backward reference (a jump to an earlier label,
// a RIP-relative load of a data blob appended later) goes through the
// relocation table and is only patched once the whole buffer, and every
// label, is known.
//
// There is one Builder per payload build. Architecture-specific encoders
// (X86, X8664, ARM, AArch64 in the x86, x8664, arm and arm64 subpackages) wrap a *Builder and add
// the handful of instruction forms the payload generator needs; they never
// bypass it to mutate already-written bytes directly.
package asm

import (
	"encoding/binary"
	"fmt"
)

// reloc is a pending patch: once every label is known, encode is invoked
// with the byte offset of the patch site and the byte offset of the named
// label, and the 4 bytes it returns overwrite buf[offset:offset+4].
type reloc struct {
	offset int
	label  string
	encode func(patchOffset, labelOffset int32) uint32
}

// Builder is the shared append-only buffer, label table and relocation
// list used by every architecture-specific encoder.
type Builder struct {
	buf    []byte
	labels map[string]int
	relocs []reloc
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{labels: make(map[string]int)}
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes appends raw bytes verbatim.
func (b *Builder) Bytes(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Ascii appends the bytes of s, unterminated.
func (b *Builder) Ascii(s string) *Builder {
	return b.Bytes([]byte(s))
}

// Asciiz appends the bytes of s followed by a single zero byte.
func (b *Builder) Asciiz(s string) *Builder {
	return b.Ascii(s).Bytes([]byte{0})
}

// Word appends v as 2 little-endian bytes.
func (b *Builder) Word(v uint16) *Builder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return b.Bytes(tmp[:])
}

// Dword appends v as 4 little-endian bytes.
func (b *Builder) Dword(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return b.Bytes(tmp[:])
}

// Qword appends v as 8 little-endian bytes.
func (b *Builder) Qword(v uint64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return b.Bytes(tmp[:])
}

// Align pads with zero bytes until the buffer length is a multiple of a.
func (b *Builder) Align(a int) *Builder {
	for len(b.buf)%a != 0 {
		b.buf = append(b.buf, 0)
	}
	return b
}

// Label records the current buffer length under name. Labels are unique
// per Builder; defining the same name twice panics rather than silently
// letting the last definition win.
func (b *Builder) Label(name string) *Builder {
	if _, exists := b.labels[name]; exists {
		panic(fmt.Sprintf("asm: label %q defined twice", name))
	}
	b.labels[name] = len(b.buf)
	return b
}

// Reserve4 appends 4 zeroed bytes and records a pending relocation that
// will overwrite them at Build time, once label is known. encode receives
// the byte offset of the reserved 4 bytes and the byte offset of label.
//
// This is the only way architecture encoders may reach backward into
// already-written bytes: the write happens once, at Build time, through
// the relocation table, never by mutating buf in place before then.
func (b *Builder) Reserve4(label string, encode func(patchOffset, labelOffset int32) uint32) *Builder {
	off := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0)
	b.relocs = append(b.relocs, reloc{offset: off, label: label, encode: encode})
	return b
}

// Build applies every pending relocation and returns the final byte slice.
// It fails loudly if a relocation names a label that was never defined.
func (b *Builder) Build() ([]byte, error) {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)

	for _, r := range b.relocs {
		labelOffset, ok := b.labels[r.label]
		if !ok {
			return nil, fmt.Errorf("asm: undefined label %q", r.label)
		}
		v := r.encode(int32(r.offset), int32(labelOffset))
		binary.LittleEndian.PutUint32(out[r.offset:r.offset+4], v)
	}

	return out, nil
}

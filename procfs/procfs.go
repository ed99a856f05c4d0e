// Package procfs reads the handful of /proc/<id> pseudo-files the
// introducer needs: ownership, the executable's ELF class, the memory map,
// a read+write handle on the process's memory, and the blocked-syscall
// instruction pointer.
package procfs

import (
	"bufio"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Proc references the /proc/<id> directory of a running process or thread.
type Proc struct {
	dir string
}

// Current returns a Proc for the calling process, via /proc/self.
func Current() *Proc {
	return &Proc{dir: filepath.Join("/proc", "self")}
}

// New returns a Proc for the given numeric id, or false if /proc/<id> does
// not exist.
func New(id int) (*Proc, bool) {
	dir := filepath.Join("/proc", strconv.Itoa(id))
	if _, err := os.Stat(dir); err != nil {
		return nil, false
	}
	return &Proc{dir: dir}, true
}

// Dir returns the underlying /proc/<id> path, e.g. for building a child
// Proc out of a task/<tid> subdirectory.
func (p *Proc) Dir() string { return p.dir }

// ForDir wraps an arbitrary /proc entry, used for task/<tid> subdirectories.
func ForDir(dir string) *Proc { return &Proc{dir: dir} }

// Owner returns the uid and gid that own this /proc/<id> directory.
func (p *Proc) Owner() (uid, gid uint32, err error) {
	var st unix.Stat_t
	if err := unix.Stat(p.dir, &st); err != nil {
		return 0, 0, err
	}
	return st.Uid, st.Gid, nil
}

// Privileged reports whether this process is owned by the superuser.
func (p *Proc) Privileged() bool {
	uid, _, err := p.Owner()
	return err == nil && uid == 0
}

// Exe opens /proc/<id>/exe, the target's executable.
func (p *Proc) Exe() (*os.File, error) {
	return os.Open(filepath.Join(p.dir, "exe"))
}

// Maps opens /proc/<id>/maps, the process's memory map.
func (p *Proc) Maps() (*os.File, error) {
	return os.Open(filepath.Join(p.dir, "maps"))
}

// Mem opens /proc/<id>/mem read+write.
func (p *Proc) Mem() (*os.File, error) {
	return os.OpenFile(filepath.Join(p.dir, "mem"), os.O_RDWR, 0)
}

// Syscall opens /proc/<id>/syscall, the blocked-syscall pseudo-file.
func (p *Proc) Syscall() (*os.File, error) {
	return os.Open(filepath.Join(p.dir, "syscall"))
}

// Tasks lists the thread ids under /proc/<id>/task.
func (p *Proc) Tasks() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dir, "task"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Class is the target's word width, derived from its ELF machine field.
type Class int

const (
	Bits32 Class = iota
	Bits64
)

// ELFMachine reads the first 64 bytes of the target's executable and
// returns the raw e_machine field of its ELF header.
func (p *Proc) ELFMachine() (elf.Machine, bool) {
	exe, err := p.Exe()
	if err != nil {
		return 0, false
	}
	defer exe.Close()

	var header [0x40]byte
	if _, err := readFull(exe, header[:]); err != nil {
		return 0, false
	}

	if header[0] != '\x7f' || header[1] != 'E' || header[2] != 'L' || header[3] != 'F' {
		return 0, false
	}

	var order binary.ByteOrder = binary.LittleEndian
	if header[5] == 2 { // ELFDATA2MSB
		order = binary.BigEndian
	}
	return elf.Machine(order.Uint16(header[18:20])), true
}

// Class classifies the target's machine field into a word width. It
// returns false if the header can't be read or the machine is not x86,
// x86-64, ARM or AArch64. It accepts all four whatever the host
// architecture; it does not check that the target's family matches the
// host's.
func (p *Proc) Class() (Class, bool) {
	machine, ok := p.ELFMachine()
	if !ok {
		return 0, false
	}

	switch machine {
	case elf.EM_ARM:
		return Bits32, true
	case elf.EM_AARCH64:
		return Bits64, true
	case elf.EM_386:
		return Bits32, true
	case elf.EM_X86_64:
		return Bits64, true
	default:
		return 0, false
	}
}

// IsARM reports whether the target's machine is in the ARM family (ARM or
// AArch64), as opposed to the x86 family.
func (p *Proc) IsARM() bool {
	machine, ok := p.ELFMachine()
	return ok && (machine == elf.EM_ARM || machine == elf.EM_AARCH64)
}

// Lib is a shared object mapped into a process: the virtual address of the
// start of its mapping and the path of its backing file.
type Lib struct {
	BaseAddr uint64
	Path     string
}

// FindLib scans the process's maps file for the first entry whose base
// name equals name, returning its mapping base address and full path.
func (p *Proc) FindLib(name string) (Lib, bool) {
	f, err := p.Maps()
	if err != nil {
		return Lib{}, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		idx := strings.LastIndex(line, "    ")
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(line[idx:])
		if path == "" || filepath.Base(path) != name {
			continue
		}

		rangeField := strings.Fields(line)[0]
		addrStr, _, found := strings.Cut(rangeField, "-")
		if !found {
			continue
		}
		base, err := strconv.ParseUint(addrStr, 16, 64)
		if err != nil {
			continue
		}
		return Lib{BaseAddr: base, Path: path}, true
	}
	return Lib{}, false
}

// IP reads the blocked-syscall pseudo-file and returns the instruction
// pointer at which the thread is paused. It returns false if the thread is
// running (content "running") or the file can't be parsed.
func (p *Proc) IP() (uint64, bool) {
	f, err := p.Syscall()
	if err != nil {
		return 0, false
	}
	defer f.Close()

	data, err := readAll(f)
	if err != nil {
		return 0, false
	}
	content := strings.TrimSpace(string(data))
	if content == "running" || content == "" {
		return 0, false
	}

	idx := strings.LastIndex(content, "0x")
	if idx < 0 {
		return 0, false
	}
	ip, err := strconv.ParseUint(content[idx+2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return ip, true
}

// FindIPAcrossThreads tries this process's own instruction pointer first,
// then every task/<tid> subdirectory, returning the first one found
// blocked in a syscall.
func (p *Proc) FindIPAcrossThreads() (uint64, bool) {
	if ip, ok := p.IP(); ok {
		return ip, true
	}

	tasks, err := p.Tasks()
	if err != nil {
		return 0, false
	}
	for _, t := range tasks {
		tp := ForDir(filepath.Join(p.dir, "task", t))
		if ip, ok := tp.IP(); ok {
			return ip, true
		}
	}
	return 0, false
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("procfs: short read")
		}
	}
	return total, nil
}

func readAll(f *os.File) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return out, nil
}

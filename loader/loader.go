// Package loader locates the in-target virtual address of the dynamic
// loader symbol (dlopen or its libc-internal equivalent) used to load a
// shared library into a running process.
package loader

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/introducer/payload"
	"github.com/xyproto/introducer/procfs"
)

// LinuxSymbolNames are the candidate loader symbols searched in order on a
// stock Linux libc.
var LinuxSymbolNames = []string{"__libc_dlopen_mode", "dlopen"}

// AndroidSymbolNames are the candidate loader symbols on Android, where the
// dynamic loader lives in libdl rather than libc.
var AndroidSymbolNames = []string{"dlopen"}

// NotFoundError reports that the loader library itself was never mapped
// into the target.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("loader: library %q not found in target maps", e.Name)
}

// SymbolNotFoundError reports that the loader library was found but none
// of the candidate symbol names resolved inside it.
type SymbolNotFoundError struct{ Names []string }

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("loader: none of %v found in loader library", e.Names)
}

// libcFileName scans the caller's own /proc/self/maps for the first
// mapped file whose base name starts with "libc." or "libc-", which is
// the conventional libc soname across glibc and musl alike.
func libcFileName() (string, error) {
	f, err := procfs.Current().Maps()
	if err != nil {
		return "", err
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
		base := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			base = path[i+1:]
		}
		if strings.HasPrefix(base, "libc.") || strings.HasPrefix(base, "libc-") {
			return base, nil
		}
	}
	return "", fmt.Errorf("loader: no libc mapping found in caller's own maps")
}

// Find locates the loader symbol inside the target process. On Linux it
// scans the caller's own maps for the exact libc file name, then looks for
// that same name in the target; on Android the library and symbol name are
// both fixed (libdl.so / dlopen).
func Find(target *procfs.Proc, android bool) (payload.Sym, error) {
	libName := "libdl.so"
	symNames := AndroidSymbolNames

	if !android {
		name, err := libcFileName()
		if err != nil {
			return payload.Sym{}, err
		}
		libName = name
		symNames = LinuxSymbolNames
	}

	lib, ok := target.FindLib(libName)
	if !ok {
		return payload.Sym{}, &NotFoundError{Name: libName}
	}

	addr, ok := findSymbolAddr(lib, symNames)
	if !ok {
		return payload.Sym{}, &SymbolNotFoundError{Names: symNames}
	}

	return payload.Sym{Addr: lib.BaseAddr + addr}, nil
}

// findSymbolAddr parses lib's ELF file and searches, for each candidate name
// in priority order, first the regular symbol table then the dynamic one,
// before moving on to the next name. Name priority outranks table: a
// higher-priority name found only in .dynsym must win over a lower-priority
// name that happens to sit in .symtab.
func findSymbolAddr(lib procfs.Lib, names []string) (uint64, bool) {
	f, err := os.Open(lib.Path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return 0, false
	}

	symtab, _ := ef.Symbols()
	dynsym, _ := ef.DynamicSymbols()

	for _, name := range names {
		if addr, ok := findSym(symtab, name); ok {
			return addr, true
		}
		if addr, ok := findSym(dynsym, name); ok {
			return addr, true
		}
	}
	return 0, false
}

func findSym(syms []elf.Symbol, name string) (uint64, bool) {
	for _, sym := range syms {
		if sym.Name == name {
			return sym.Value, true
		}
	}
	return 0, false
}

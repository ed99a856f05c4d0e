package introducer

import "fmt"

// LibraryNotFoundError occurs when the dynamic loader library
// (libc-x.xx.so on Linux, libdl.so on Android) is not mapped into the
// target process.
type LibraryNotFoundError struct{ Name string }

func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("introducer: loader library %q not found in target", e.Name)
}

// SymbolNotFoundError occurs when none of the candidate loader symbol
// names were found in the expected library.
type SymbolNotFoundError struct{ Names []string }

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("introducer: none of loader symbols %v found", e.Names)
}

// InstructionPointerNotFoundError occurs when no thread of the target was
// blocked in a syscall at the time of introduction.
type InstructionPointerNotFoundError struct{}

func (e *InstructionPointerNotFoundError) Error() string {
	return "introducer: no blocked instruction pointer found in target"
}

// UnsupportedArchError occurs when the target's ELF machine field isn't
// one this package knows how to build payloads for.
type UnsupportedArchError struct{}

func (e *UnsupportedArchError) Error() string {
	return "introducer: target process architecture is not supported"
}

// ProcessNotRunningError occurs when the target's /proc/<id> directory
// doesn't exist.
type ProcessNotRunningError struct{ ID int }

func (e *ProcessNotRunningError) Error() string {
	return fmt.Sprintf("introducer: process %d is not running", e.ID)
}

// InsufficientPrivilegesError occurs when the authority policy denies the
// operation, or when taking ownership of the staged payload file fails.
type InsufficientPrivilegesError struct{}

func (e *InsufficientPrivilegesError) Error() string {
	return "introducer: insufficient privileges to introduce into target"
}

// LibraryPathNeededError occurs when a bare library name (rather than a
// path) was given for an Android application target, which can't be
// resolved through the app's isolated linker namespace.
type LibraryPathNeededError struct{}

func (e *LibraryPathNeededError) Error() string {
	return "introducer: a canonical library path is required for Android app targets"
}

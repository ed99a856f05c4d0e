// Package authority evaluates whether the caller has the rights to patch a
// target process's memory, based on the kernel's Yama ptrace_scope sysctl.
package authority

import (
	"fmt"
	"os"
	"strings"
)

// Scope is the restriction level read from
// /proc/sys/kernel/yama/ptrace_scope.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeRestricted
	ScopeAdmin
	ScopeDenied
)

const scopePath = "/proc/sys/kernel/yama/ptrace_scope"

// Current reads the Yama scope. A missing file is treated as ScopeAll,
// since that's the behavior of a kernel built without the Yama LSM.
func Current() (Scope, error) {
	data, err := os.ReadFile(scopePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ScopeAll, nil
		}
		return 0, err
	}

	switch strings.TrimSpace(string(data)) {
	case "0":
		return ScopeAll, nil
	case "1":
		return ScopeRestricted, nil
	case "2":
		return ScopeAdmin, nil
	case "3":
		return ScopeDenied, nil
	default:
		return 0, fmt.Errorf("authority: unrecognized ptrace_scope value %q", strings.TrimSpace(string(data)))
	}
}

// Allowed decides, for the given scope, whether a caller with
// callerPrivileged may act on a target with targetPrivileged.
func Allowed(scope Scope, targetPrivileged, callerPrivileged bool) bool {
	switch scope {
	case ScopeAll:
		return !targetPrivileged || callerPrivileged
	case ScopeRestricted, ScopeAdmin:
		return callerPrivileged
	case ScopeDenied:
		return false
	default:
		return false
	}
}

// Package android implements the placement rules specific to injecting
// into an Android application process: locating its package name, its
// native library directory, and staging a library copy there when needed.
package android

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xyproto/introducer/procfs"
)

const packagesList = "/data/system/packages.list"
const appsDir = "/data/app"

// abiName maps a target's word width and machine family to the ABI
// directory name Android uses under an app's lib/ tree.
func abiName(class procfs.Class, arm bool) (string, error) {
	switch {
	case arm && class == procfs.Bits32:
		return "arm", nil
	case arm && class == procfs.Bits64:
		return "arm64", nil
	case !arm && class == procfs.Bits32:
		return "i386", nil
	case !arm && class == procfs.Bits64:
		return "x86_64", nil
	default:
		return "", fmt.Errorf("android: unsupported class/machine combination")
	}
}

// PackageName resolves the package name of an Android application process
// by matching its uid against /data/system/packages.list. It returns
// false if the process isn't an installed application.
func PackageName(target *procfs.Proc) (string, bool) {
	uid, _, err := target.Owner()
	if err != nil {
		return "", false
	}

	f, err := os.Open(packagesList)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		rawUID, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}
		if uint32(rawUID) == uid {
			return fields[0], true
		}
	}
	return "", false
}

// LibDir returns the native library directory of an Android application,
// e.g. /data/app/com.example.app-1/lib/arm64.
func LibDir(target *procfs.Proc) (string, bool) {
	pkg, ok := PackageName(target)
	if !ok {
		return "", false
	}

	class, ok := target.Class()
	if !ok {
		return "", false
	}
	abi, err := abiName(class, target.IsARM())
	if err != nil {
		return "", false
	}

	entries, err := os.ReadDir(appsDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, pkg) && len(name) > len(pkg) && name[len(pkg)] == '-' {
			return filepath.Join(appsDir, name, "lib", abi), true
		}
	}
	return "", false
}

// EnsureLibCopied copies srcPath into libDir under its own base name,
// unless a file with that name already exists there. It returns the final
// destination path.
func EnsureLibCopied(srcPath, libDir string) (string, error) {
	dst := filepath.Join(libDir, filepath.Base(srcPath))

	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return dst, nil
}

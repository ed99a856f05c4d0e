// Package introducer loads a chosen shared library into an already-running
// target process on Linux and Android without using the kernel's tracing
// facility. It works by writing directly to the target's memory file while
// one of its threads is blocked in a syscall, substituting a tiny stub at
// the thread's current instruction pointer; when execution resumes, the
// stub loads a larger second-stage payload from disk, which calls the
// target's own dynamic loader and then restores the original instructions
// and control flow.
package introducer

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/xyproto/introducer/android"
	"github.com/xyproto/introducer/authority"
	"github.com/xyproto/introducer/loader"
	"github.com/xyproto/introducer/payload"
	"github.com/xyproto/introducer/procfs"
	"golang.org/x/sys/unix"
)

const linuxTmpDir = "/tmp"
const androidTmpDir = "/data/local/tmp"

const payloadFileName = "payload.bin"

// Introduce loads the shared library at libPath into the process or
// thread identified by id. libPath is made absolute (against the current
// directory) before it is passed as the dlopen filename argument, so a bare
// library name is not looked up on the loader's search path; on Android app
// targets the resulting path must exist, since the library is copied into
// the app's native library directory.
func Introduce(id int, libPath string) error {
	target, ok := procfs.New(id)
	if !ok {
		return &ProcessNotRunningError{ID: id}
	}

	if err := checkAuthority(target); err != nil {
		return err
	}

	isAndroidApp := false
	stagePath := filepath.Join(tmpDir(), payloadFileName)

	if libDir, isApp := android.LibDir(target); isApp {
		isAndroidApp = true

		if !procfs.Current().Privileged() {
			return &InsufficientPrivilegesError{}
		}

		canonical, err := filepath.Abs(libPath)
		if err != nil || !pathExists(canonical) {
			return &LibraryPathNeededError{}
		}

		dst, err := android.EnsureLibCopied(canonical, libDir)
		if err != nil {
			return err
		}
		libPath = dst
		stagePath = filepath.Join(libDir, payloadFileName)
	}

	return introduce(target, libPath, stagePath, isAndroidApp)
}

// tmpDir is where the staged payload lands for non-application targets.
func tmpDir() string {
	if runtime.GOOS == "android" {
		return androidTmpDir
	}
	return linuxTmpDir
}

func introduce(target *procfs.Proc, libPath, stagePath string, isAndroid bool) error {
	canonicalLib := libPath
	if abs, err := filepath.Abs(libPath); err == nil {
		canonicalLib = abs
	}

	sym, err := loader.Find(target, isAndroid || runtime.GOOS == "android")
	if err != nil {
		switch e := err.(type) {
		case *loader.NotFoundError:
			return &LibraryNotFoundError{Name: e.Name}
		case *loader.SymbolNotFoundError:
			return &SymbolNotFoundError{Names: e.Names}
		default:
			return err
		}
	}

	machine, err := targetMachine(target)
	if err != nil {
		return err
	}

	shellCode, err := payload.ShellCode(machine, stagePath)
	if err != nil {
		return err
	}

	mem, err := target.Mem()
	if err != nil {
		return err
	}
	defer mem.Close()

	ip, ok := target.FindIPAcrossThreads()
	if !ok {
		return &InstructionPointerNotFoundError{}
	}

	originalCode := make([]byte, len(shellCode))
	if _, err := mem.ReadAt(originalCode, int64(ip)); err != nil {
		return err
	}
	if _, err := mem.WriteAt(shellCode, int64(ip)); err != nil {
		return err
	}

	stageCode, err := payload.StageCode(machine, originalCode, ip, canonicalLib, sym)
	if err != nil {
		return err
	}

	return writeStageFile(target, stagePath, stageCode)
}

func writeStageFile(target *procfs.Proc, path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	uid, gid, err := target.Owner()
	if err != nil {
		return err
	}
	if err := unix.Chown(path, int(uid), int(gid)); err != nil {
		return &InsufficientPrivilegesError{}
	}

	if _, err := file.Write(data); err != nil {
		return err
	}
	return nil
}

func checkAuthority(target *procfs.Proc) error {
	scope, err := authority.Current()
	if err != nil {
		return err
	}

	allowed := authority.Allowed(scope, target.Privileged(), procfs.Current().Privileged())
	if !allowed {
		return &InsufficientPrivilegesError{}
	}
	return nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func targetMachine(target *procfs.Proc) (payload.Machine, error) {
	class, ok := target.Class()
	if !ok {
		return 0, &UnsupportedArchError{}
	}
	arm := target.IsARM()

	switch {
	case !arm && class == procfs.Bits32:
		return payload.MachineX86, nil
	case !arm && class == procfs.Bits64:
		return payload.MachineX8664, nil
	case arm && class == procfs.Bits32:
		return payload.MachineARM, nil
	case arm && class == procfs.Bits64:
		return payload.MachineARM64, nil
	default:
		return 0, &UnsupportedArchError{}
	}
}

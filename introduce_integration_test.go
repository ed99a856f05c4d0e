//go:build linux
// +build linux

package introducer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/xyproto/introducer/authority"
	"github.com/xyproto/introducer/procfs"
	"golang.org/x/sys/unix"
)

// skipUnlessPrivileged gates the integration harness beyond its build tag:
// it also needs root (to patch another process's /proc/<pid>/mem), a usable
// Yama policy, and a C compiler to build the disposable target/library
// fixtures.
func skipUnlessPrivileged(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("integration harness only runs on linux")
	}
	if os.Geteuid() != 0 {
		t.Skip("integration harness needs root to patch another process's /proc/<pid>/mem")
	}
	scope, err := authority.Current()
	if err != nil {
		t.Skipf("could not read yama ptrace_scope: %v", err)
	}
	if scope == authority.ScopeDenied {
		t.Skip("yama ptrace_scope is Denied in this sandbox")
	}
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("no C compiler available to build the target/fixture binaries")
	}
}

// pauseSource is the target program: it installs an empty SIGCONT handler
// and blocks in pause(), which only returns once a signal is caught, so
// delivering SIGCONT interrupts the syscall and hands control back to the
// instruction right after it — the same instruction this package's
// orchestrator patches.
const pauseSource = `
#include <signal.h>
#include <unistd.h>
static void on_cont(int sig) { (void)sig; }
int main(void) {
	signal(SIGCONT, on_cont);
	pause();
	return 0;
}
`

// fifoLibSource is the injected library, modeled on examples/evil.rs: its
// constructor runs as soon as the target's dynamic loader maps it in, and
// signals completion by writing to a fifo whose path it reads from the
// target's own environment.
const fifoLibSource = `
#include <fcntl.h>
#include <stdlib.h>
#include <unistd.h>

__attribute__((constructor))
static void evil_init(void) {
	const char *path = getenv("INTRODUCER_TEST_FIFO");
	if (!path) {
		return;
	}
	int fd = open(path, O_WRONLY);
	if (fd < 0) {
		return;
	}
	write(fd, "hi", 2);
	close(fd);
}
`

func compile(t *testing.T, dir, name, source string, extraArgs ...string) string {
	t.Helper()
	src := filepath.Join(dir, name+".c")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatalf("write %s: %v", src, err)
	}
	out := filepath.Join(dir, name)
	args := append([]string{"-O0", "-o", out, src}, extraArgs...)
	output, err := exec.Command("cc", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("cc %v: %v\n%s", args, err, output)
	}
	return out
}

// spawnBlockedTarget starts a child that blocks in pause() and waits until
// procfs reports a blocked instruction pointer for it.
func spawnBlockedTarget(t *testing.T, dir string, env []string) (*exec.Cmd, *procfs.Proc, uint64) {
	t.Helper()
	bin := compile(t, dir, "target", pauseSource)

	cmd := exec.Command(bin)
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		t.Fatalf("start target: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	target, ok := procfs.New(cmd.Process.Pid)
	if !ok {
		t.Fatalf("target %d vanished before it could be introspected", cmd.Process.Pid)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ip, ok := target.FindIPAcrossThreads(); ok {
			return cmd, target, ip
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("target never settled into a blocked syscall")
	return nil, nil, 0
}

// waitForFifo reads exactly one "hi" message from path, the constructor's
// completion signal, and reports it on done.
func waitForFifo(path string, done chan<- error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		done <- err
		return
	}
	defer f.Close()

	buf := make([]byte, 2)
	if _, err := f.Read(buf); err != nil {
		done <- err
		return
	}
	if string(buf) != "hi" {
		done <- fmt.Errorf("fifo: got %q, want %q", buf, "hi")
		return
	}
	done <- nil
}

// TestIntegrationStageTwoSelfRepair covers spec.md §8 property #6: once
// stage-two has executed inside the target, the instruction bytes at the
// patched instruction pointer must read back exactly as they did before
// injection.
func TestIntegrationStageTwoSelfRepair(t *testing.T) {
	skipUnlessPrivileged(t)

	dir := t.TempDir()
	fifoPath := filepath.Join(dir, "evil.fifo")
	if err := unix.Mkfifo(fifoPath, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	libPath := compile(t, dir, "libevil", fifoLibSource, "-shared", "-fPIC")

	env := append(os.Environ(), "INTRODUCER_TEST_FIFO="+fifoPath)
	cmd, target, ip := spawnBlockedTarget(t, dir, env)

	mem, err := target.Mem()
	if err != nil {
		t.Fatalf("open target mem: %v", err)
	}
	original := make([]byte, 64)
	if _, err := mem.ReadAt(original, int64(ip)); err != nil {
		t.Fatalf("snapshot original bytes: %v", err)
	}
	mem.Close()

	if err := Introduce(cmd.Process.Pid, libPath); err != nil {
		t.Fatalf("Introduce: %v", err)
	}

	fifoDone := make(chan error, 1)
	go waitForFifo(fifoPath, fifoDone)

	// pause() only returns once a signal is caught; the target's empty
	// SIGCONT handler runs, the blocking syscall is interrupted, and control
	// goes to the patched instruction pointer.
	if err := cmd.Process.Signal(syscall.SIGCONT); err != nil {
		t.Fatalf("signal target: %v", err)
	}

	select {
	case err := <-fifoDone:
		if err != nil {
			t.Fatalf("library constructor signal: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the injected library's constructor to run")
	}

	mem, err = target.Mem()
	if err != nil {
		t.Fatalf("reopen target mem: %v", err)
	}
	defer mem.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		current := make([]byte, len(original))
		if _, err := mem.ReadAt(current, int64(ip)); err != nil {
			t.Fatalf("read back patched bytes: %v", err)
		}
		if string(current) == string(original) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stage-two never restored the original bytes at %#x", ip)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
		t.Fatalf("target process did not survive injection and self-repair: %v", err)
	}
}

// TestIntegrationIdempotence covers spec.md §8 property #7: two concurrent
// introductions against the same target must not corrupt it. This is
// inherently racy by design (the property itself is about fuzzed
// interleaving), so the assertion stays to the outcomes spec.md actually
// promises: every result is either a success or an
// InstructionPointerNotFoundError, the target process never crashes, and at
// least one library load actually happens. A single target only ever
// resumes from its one blocked syscall once, so even when both calls
// report success, only one of the two staged payloads can actually win the
// race and execute inside the target — this test does not assume both did.
func TestIntegrationIdempotence(t *testing.T) {
	skipUnlessPrivileged(t)

	dir := t.TempDir()
	fifoPath := filepath.Join(dir, "evil.fifo")
	if err := unix.Mkfifo(fifoPath, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	libPath := compile(t, dir, "libevil", fifoLibSource, "-shared", "-fPIC")

	env := append(os.Environ(), "INTRODUCER_TEST_FIFO="+fifoPath)
	cmd, _, _ := spawnBlockedTarget(t, dir, env)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- Introduce(cmd.Process.Pid, libPath)
		}()
	}

	var errs []error
	for i := 0; i < 2; i++ {
		errs = append(errs, <-results)
	}

	successes := 0
	for _, err := range errs {
		switch err.(type) {
		case nil:
			successes++
		case *InstructionPointerNotFoundError:
			// the documented outcome for the losing side of the race.
		default:
			t.Fatalf("unexpected error from concurrent Introduce: %v", err)
		}
	}
	if successes == 0 {
		t.Fatal("both concurrent introductions failed; want at least one success")
	}

	fifoDone := make(chan error, 1)
	go waitForFifo(fifoPath, fifoDone)

	if err := cmd.Process.Signal(syscall.SIGCONT); err != nil {
		t.Fatalf("signal target: %v", err)
	}

	select {
	case err := <-fifoDone:
		if err != nil {
			t.Fatalf("library constructor signal: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the winning staged payload to run")
	}

	if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
		t.Fatalf("target process did not survive the race: %v", err)
	}
}

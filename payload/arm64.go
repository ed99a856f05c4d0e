package payload

import "github.com/xyproto/introducer/asm/arm64"

// shellCode64ARM builds the stage-one blob for an AArch64 target.
func shellCode64ARM(stagePath string) ([]byte, error) {
	b := arm64.New()

	b.
		Stp(arm64.PreIndexed, arm64.X0, arm64.X1, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X2, arm64.X3, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X4, arm64.X5, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X6, arm64.X7, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X8, arm64.X9, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X10, arm64.X11, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X12, arm64.X13, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X14, arm64.X15, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X16, arm64.X17, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X18, arm64.X19, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X20, arm64.X21, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X22, arm64.X23, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X24, arm64.X25, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X26, arm64.X27, arm64.XSP, -16).
		Stp(arm64.PreIndexed, arm64.X28, arm64.X29, arm64.XSP, -16).
		Stri(arm64.PreIndexed, arm64.X30, arm64.XSP, -16)

	// openat(0, stage_path, 0, 0)
	b.
		Movi(arm64.X8, 56).
		Movi(arm64.X0, 0).
		Adr(arm64.X1, "stage_path").
		Movi(arm64.X2, 0).
		Movi(arm64.X3, 0).
		Svc(0).
		Movr(arm64.X14, arm64.X0)

	// mmap(NULL, 256, PROT_READ|PROT_EXEC, MAP_PRIVATE, fd, 0)
	b.
		Movi(arm64.X8, 222).
		Movi(arm64.X0, 0).
		Movi(arm64.X1, 256).
		Movi(arm64.X2, 1|4).
		Movi(arm64.X3, 2).
		Movr(arm64.X4, arm64.X14).
		Movi(arm64.X5, 0).
		Svc(0).
		Movr(arm64.X15, arm64.X0)

	b.
		Movi(arm64.X8, 57).
		Movr(arm64.X0, arm64.X14).
		Svc(0)

	b.Br(arm64.X15)

	b.Label("stage_path")
	b.Asciiz(stagePath)
	b.Align(4)

	return b.Build()
}

// stageCode64ARM builds the stage-two blob for an AArch64 target.
func stageCode64ARM(originalCode []byte, originalIP uint64, libPath string, dlopenAddr uint64) ([]byte, error) {
	b := arm64.New()

	// openat(0, mem_path, O_RDWR, 0)
	b.
		Movi(arm64.X8, 56).
		Movi(arm64.X0, 0).
		Adr(arm64.X1, "mem_path").
		Movi(arm64.X2, 2).
		Movi(arm64.X3, 0).
		Svc(0).
		Movr(arm64.X15, arm64.X0)

	// pwrite64(fd, original_code, original_code_len, original_ip)
	b.
		Movi(arm64.X8, 68).
		Movr(arm64.X0, arm64.X15).
		Adr(arm64.X1, "original_code").
		Movi(arm64.X2, int32(len(originalCode))).
		Ldrl(arm64.X3, "original_ip").
		Svc(0)

	b.
		Movi(arm64.X8, 57).
		Movr(arm64.X0, arm64.X15).
		Svc(0)

	b.
		Adr(arm64.X0, "lib_path").
		Movi(arm64.X1, 1).
		Ldrl(arm64.X28, "dlopen_addr").
		Blr(arm64.X28)

	b.
		Ldri(arm64.PostIndexed, arm64.X30, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X28, arm64.X29, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X26, arm64.X27, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X24, arm64.X25, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X22, arm64.X23, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X20, arm64.X21, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X18, arm64.X19, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X16, arm64.X17, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X14, arm64.X15, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X12, arm64.X13, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X10, arm64.X11, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X8, arm64.X9, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X6, arm64.X7, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X4, arm64.X5, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X2, arm64.X3, arm64.XSP, 16).
		Ldp(arm64.PostIndexed, arm64.X0, arm64.X1, arm64.XSP, 16)

	b.
		Ldrl(arm64.X28, "original_ip").
		Br(arm64.X28)

	b.Label("mem_path")
	b.Asciiz("/proc/self/mem")
	b.Align(4)
	b.Label("original_code")
	b.Bytes(originalCode)
	b.Align(4)
	b.Label("original_ip")
	b.Qword(originalIP)
	b.Align(4)
	b.Label("lib_path")
	b.Asciiz(libPath)
	b.Align(4)
	b.Label("dlopen_addr")
	b.Qword(dlopenAddr)
	b.Align(4)

	return b.Build()
}

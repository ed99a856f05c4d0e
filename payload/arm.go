package payload

import "github.com/xyproto/introducer/asm/arm"

// shellCode32ARM builds the stage-one blob for a 32-bit ARM target.
func shellCode32ARM(stagePath string) ([]byte, error) {
	b := arm.New()

	b.Push([]arm.Reg{arm.R0, arm.R1, arm.R2, arm.R3, arm.R4, arm.R5, arm.R6,
		arm.R7, arm.R8, arm.R9, arm.R10, arm.R11, arm.R12, arm.LR})

	// open(stage_path, O_RDONLY, 0)
	b.
		Movw(arm.R7, 5).
		Adrl(arm.R0, "stage_path").
		Movw(arm.R1, 0).
		Movw(arm.R2, 0).
		Svc(0).
		Movr(arm.R11, arm.R0)

	// mmap2(NULL, 512, PROT_READ|PROT_EXEC, MAP_PRIVATE, fd, 0)
	b.
		Movw(arm.R7, 192).
		Movw(arm.R0, 0).
		Movw(arm.R1, 512).
		Movw(arm.R2, 1|4).
		Movw(arm.R3, 2).
		Movr(arm.R4, arm.R11).
		Movw(arm.R5, 0).
		Svc(0).
		Movr(arm.R12, arm.R0)

	b.
		Movw(arm.R7, 6).
		Movr(arm.R0, arm.R11).
		Svc(0)

	b.Movr(arm.PC, arm.R12)

	b.Label("stage_path")
	b.Asciiz(stagePath)
	b.Align(4)

	return b.Build()
}

// stageCode32ARM builds the stage-two blob for a 32-bit ARM target.
func stageCode32ARM(originalCode []byte, originalIP uint32, libPath string, dlopenAddr uint32) ([]byte, error) {
	b := arm.New()

	// open("/proc/self/mem", O_RDWR, 0)
	b.
		Movw(arm.R7, 5).
		Adrl(arm.R0, "mem_path").
		Movw(arm.R1, 2).
		Movw(arm.R2, 0).
		Svc(0).
		Movr(arm.R12, arm.R0)

	// pwrite64(fd, original_code, original_code_len, original_ip)
	b.
		Movw(arm.R7, 181).
		Movr(arm.R0, arm.R12).
		Adrl(arm.R1, "original_code").
		Movw(arm.R2, uint16(len(originalCode))).
		Ldrl(arm.R3, "original_ip").
		Ldrl(arm.R4, "original_ip").
		Svc(0)

	b.
		Movw(arm.R7, 6).
		Movr(arm.R0, arm.R12).
		Svc(0)

	b.
		Adrl(arm.R0, "lib_path").
		Movw(arm.R1, 1).
		Movr(arm.LR, arm.PC).
		Ldrl(arm.PC, "dlopen_addr")

	b.Pop([]arm.Reg{arm.R0, arm.R1, arm.R2, arm.R3, arm.R4, arm.R5, arm.R6,
		arm.R7, arm.R8, arm.R9, arm.R10, arm.R11, arm.R12, arm.LR})

	b.Ldrl(arm.PC, "original_ip")

	b.Label("mem_path")
	b.Asciiz("/proc/self/mem")
	b.Align(4)
	b.Label("original_code")
	b.Bytes(originalCode)
	b.Align(4)
	b.Label("original_ip")
	b.Dword(originalIP)
	b.Align(4)
	b.Label("lib_path")
	b.Asciiz(libPath)
	b.Align(4)
	b.Label("dlopen_addr")
	b.Dword(dlopenAddr)
	b.Align(4)

	return b.Build()
}

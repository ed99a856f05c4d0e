package payload

import "github.com/xyproto/introducer/asm/x8664"

// shellCode64 builds the stage-one blob for an x86-64 target: it saves
// every general-purpose register, opens and mmaps the staged payload file,
// closes and (best-effort) unlinks it, then jumps into the mapped code.
func shellCode64(stagePath string) ([]byte, error) {
	b := x8664.New()
	b.
		Instr([]byte{0x50}).       // push rax
		Instr([]byte{0x53}).       // push rbx
		Instr([]byte{0x51}).       // push rcx
		Instr([]byte{0x52}).       // push rdx
		Instr([]byte{0x55}).       // push rbp
		Instr([]byte{0x56}).       // push rsi
		Instr([]byte{0x57}).       // push rdi
		Instr([]byte{0x41, 0x50}). // push r8
		Instr([]byte{0x41, 0x51}). // push r9
		Instr([]byte{0x41, 0x52}). // push r10
		Instr([]byte{0x41, 0x53}). // push r11
		Instr([]byte{0x41, 0x54}). // push r12
		Instr([]byte{0x41, 0x55}). // push r13
		Instr([]byte{0x41, 0x56}). // push r14
		Instr([]byte{0x41, 0x57})  // push r15

	// open(stage_path, O_RDONLY, 0)
	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x02, 0x00, 0x00, 0x00}). // mov rax, 2
		InstrWithRef([]byte{0x48, 0x8d, 0x3d}, "stage_path").    // lea rdi, [rip+stage_path]
		Instr([]byte{0x48, 0xc7, 0xc6, 0x00, 0x00, 0x00, 0x00}). // mov rsi, 0
		Instr([]byte{0x48, 0xc7, 0xc2, 0x00, 0x00, 0x00, 0x00}). // mov rdx, 0
		Instr([]byte{0x0f, 0x05}).                               // syscall
		Instr([]byte{0x49, 0x89, 0xc6})                          // mov r14, rax

	// mmap(NULL, 512, PROT_READ|PROT_EXEC, MAP_PRIVATE, fd, 0)
	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x09, 0x00, 0x00, 0x00}). // mov rax, 9
		Instr([]byte{0x48, 0xc7, 0xc7, 0x00, 0x00, 0x00, 0x00}). // mov rdi, 0
		Instr([]byte{0x48, 0xc7, 0xc6, 0x00, 0x02, 0x00, 0x00}). // mov rsi, 512
		Instr([]byte{0x48, 0xc7, 0xc2, 0x05, 0x00, 0x00, 0x00}). // mov rdx, 1|4
		Instr([]byte{0x49, 0xc7, 0xc2, 0x02, 0x00, 0x00, 0x00}). // mov r10, 2
		Instr([]byte{0x4d, 0x89, 0xf0}).                         // mov r8, r14
		Instr([]byte{0x49, 0xc7, 0xc1, 0x00, 0x00, 0x00, 0x00}). // mov r9, 0
		Instr([]byte{0x0f, 0x05}).                               // syscall
		Instr([]byte{0x49, 0x89, 0xc7})                          // mov r15, rax

	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x03, 0x00, 0x00, 0x00}). // mov rax, 3 (close)
		Instr([]byte{0x4c, 0x89, 0xf7}).                         // mov rdi, r14
		Instr([]byte{0x0f, 0x05})                                // syscall

	// unlink(stage_path); fails silently on Android, the fd stays mapped.
	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x57, 0x00, 0x00, 0x00}). // mov rax, 87
		InstrWithRef([]byte{0x48, 0x8d, 0x3d}, "stage_path").    // lea rdi, [rip+stage_path]
		Instr([]byte{0x0f, 0x05})                                // syscall

	b.Instr([]byte{0x41, 0xff, 0xe7}) // jmp r15

	b.Label("stage_path")
	b.Asciiz(stagePath)

	return b.Build()
}

// stageCode64 builds the stage-two blob for an x86-64 target: it restores
// the bytes overwritten at the instruction pointer via /proc/self/mem,
// calls dlopen on lib_path, restores every saved register, then resumes
// at the original instruction pointer.
func stageCode64(originalCode []byte, originalIP uint64, libPath string, dlopenAddr uint64) ([]byte, error) {
	b := x8664.New()

	// open("/proc/self/mem", O_RDWR, 0)
	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x02, 0x00, 0x00, 0x00}). // mov rax, 2
		InstrWithRef([]byte{0x48, 0x8d, 0x3d}, "mem_path").      // lea rdi, [rip+mem_path]
		Instr([]byte{0x48, 0xc7, 0xc6, 0x02, 0x00, 0x00, 0x00}). // mov rsi, 2
		Instr([]byte{0x48, 0x31, 0xd2}).                         // xor rdx, rdx
		Instr([]byte{0x0f, 0x05}).                               // syscall
		Instr([]byte{0x49, 0x89, 0xc7})                          // mov r15, rax

	// pwrite64(fd, original_code, original_code_len, original_ip)
	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x12, 0x00, 0x00, 0x00}).    // mov rax, 18
		Instr([]byte{0x4c, 0x89, 0xff}).                            // mov rdi, r15
		InstrWithRef([]byte{0x48, 0x8d, 0x35}, "original_code").    // lea rsi, [rip+original_code]
		InstrWithRef([]byte{0x48, 0x8b, 0x15}, "original_code_len"). // mov rdx, [rip+original_code_len]
		InstrWithRef([]byte{0x4c, 0x8b, 0x15}, "original_ip").      // mov r10, [rip+original_ip]
		Instr([]byte{0x0f, 0x05})                                   // syscall

	b.
		Instr([]byte{0x48, 0xc7, 0xc0, 0x03, 0x00, 0x00, 0x00}). // mov rax, 3
		Instr([]byte{0x4c, 0x89, 0xff}).                         // mov rdi, r15
		Instr([]byte{0x0f, 0x05})                                // syscall

	b.
		Instr([]byte{0x48, 0x89, 0xe5}).      // mov rbp, rsp
		Instr([]byte{0x48, 0x83, 0xe4, 0xf0}) // and rsp, -16

	b.
		InstrWithRef([]byte{0x48, 0x8b, 0x05}, "dlopen_addr"). // mov rax, [rip+dlopen_addr]
		InstrWithRef([]byte{0x48, 0x8d, 0x3d}, "lib_path").    // lea rdi, [rip+lib_path]
		Instr([]byte{0x48, 0xc7, 0xc6, 0x01, 0x00, 0x00, 0x00}). // mov rsi, 1
		Instr([]byte{0xff, 0xd0})                               // call rax

	b.Instr([]byte{0x48, 0x89, 0xec}) // mov rsp, rbp

	b.
		Instr([]byte{0x41, 0x5f}). // pop r15
		Instr([]byte{0x41, 0x5e}). // pop r14
		Instr([]byte{0x41, 0x5d}). // pop r13
		Instr([]byte{0x41, 0x5c}). // pop r12
		Instr([]byte{0x41, 0x5b}). // pop r11
		Instr([]byte{0x41, 0x5a}). // pop r10
		Instr([]byte{0x41, 0x59}). // pop r9
		Instr([]byte{0x41, 0x58}). // pop r8
		Instr([]byte{0x5f}).       // pop rdi
		Instr([]byte{0x5e}).       // pop rsi
		Instr([]byte{0x5d}).       // pop rbp
		Instr([]byte{0x5a}).       // pop rdx
		Instr([]byte{0x59}).       // pop rcx
		Instr([]byte{0x5b}).       // pop rbx
		Instr([]byte{0x58})        // pop rax

	b.InstrWithRef([]byte{0xff, 0x25}, "original_ip") // jmp [rip+original_ip]

	b.Label("mem_path")
	b.Asciiz("/proc/self/mem")
	b.Label("original_code")
	b.Bytes(originalCode)
	b.Label("original_code_len")
	b.Qword(uint64(len(originalCode)))
	b.Label("original_ip")
	b.Qword(originalIP)
	b.Label("lib_path")
	b.Asciiz(libPath)
	b.Label("dlopen_addr")
	b.Qword(dlopenAddr)

	return b.Build()
}

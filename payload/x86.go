package payload

import "github.com/xyproto/introducer/asm/x86"

// callPopNext emits `call next; next: pop reg`, leaving the runtime address
// of the label "next" in reg. 32-bit x86 has no RIP-relative addressing, so
// every position-independent reference in this file goes through this
// idiom followed by a buffer-relative fixup.
func callPopNext(b *x86.X86, next string, popOpcode byte) {
	b.Instr([]byte{0xe8, 0x00, 0x00, 0x00, 0x00})
	b.Label(next)
	b.Instr([]byte{popOpcode})
}

// shellCode32 builds the stage-one blob for a 32-bit x86 target.
func shellCode32(stagePath string) ([]byte, error) {
	b := x86.New()

	b.
		Instr([]byte{0x50}). // push eax
		Instr([]byte{0x53}). // push ebx
		Instr([]byte{0x51}). // push ecx
		Instr([]byte{0x52}). // push edx
		Instr([]byte{0x55}). // push ebp
		Instr([]byte{0x56}). // push esi
		Instr([]byte{0x57})  // push edi

	// open(stage_path, O_RDONLY, 0)
	b.Instr([]byte{0xb8, 0x05, 0x00, 0x00, 0x00}) // mov eax, 5
	callPopNext(b, "next1", 0x5b)                 // pop ebx
	b.
		InstrWithRef([]byte{0x81, 0xeb}, "next1").      // sub ebx, next1
		InstrWithRef([]byte{0x81, 0xc3}, "stage_path"). // add ebx, stage_path
		Instr([]byte{0xb9, 0x00, 0x00, 0x00, 0x00}).    // mov ecx, 0
		Instr([]byte{0xba, 0x00, 0x00, 0x00, 0x00}).    // mov edx, 0
		Instr([]byte{0xcd, 0x80}).                      // int 0x80
		Instr([]byte{0x89, 0xc7})                       // mov edi, eax

	// mmap2(NULL, 512, PROT_READ|PROT_EXEC, MAP_PRIVATE, fd, 0)
	b.
		Instr([]byte{0xb8, 0xc0, 0x00, 0x00, 0x00}). // mov eax, 192
		Instr([]byte{0xbb, 0x00, 0x00, 0x00, 0x00}). // mov ebx, 0
		Instr([]byte{0xb9, 0x00, 0x02, 0x00, 0x00}). // mov ecx, 512
		Instr([]byte{0xba, 0x05, 0x00, 0x00, 0x00}). // mov edx, 1|4
		Instr([]byte{0xbe, 0x02, 0x00, 0x00, 0x00}). // mov esi, 2
		Instr([]byte{0xbd, 0x00, 0x00, 0x00, 0x00}). // mov ebp, 0
		Instr([]byte{0xcd, 0x80}).                   // int 0x80
		Instr([]byte{0x89, 0xc5})                    // mov ebp, eax

	b.
		Instr([]byte{0xb8, 0x06, 0x00, 0x00, 0x00}). // mov eax, 6
		Instr([]byte{0x89, 0xfb}).                   // mov ebx, edi
		Instr([]byte{0xcd, 0x80})                    // int 0x80

	// unlink(stage_path); fails silently on Android.
	b.Instr([]byte{0xb8, 0x0a, 0x00, 0x00, 0x00}) // mov eax, 10
	callPopNext(b, "next2", 0x5b)                 // pop ebx
	b.
		InstrWithRef([]byte{0x81, 0xeb}, "next2").      // sub ebx, next2
		InstrWithRef([]byte{0x81, 0xc3}, "stage_path"). // add ebx, stage_path
		Instr([]byte{0xcd, 0x80})                       // int 0x80

	b.Instr([]byte{0xff, 0xe5}) // jmp ebp

	b.Label("stage_path")
	b.Asciiz(stagePath)

	return b.Build()
}

// stageCode32 builds the stage-two blob for a 32-bit x86 target.
func stageCode32(originalCode []byte, originalIP uint32, libPath string, dlopenAddr uint32) ([]byte, error) {
	b := x86.New()

	// open("/proc/self/mem", O_RDWR, 0)
	b.Instr([]byte{0xb8, 0x05, 0x00, 0x00, 0x00}) // mov eax, 5
	callPopNext(b, "next0", 0x5b)                 // pop ebx
	b.
		InstrWithRef([]byte{0x81, 0xeb}, "next0").   // sub ebx, next0
		InstrWithRef([]byte{0x81, 0xc3}, "mem_path"). // add ebx, mem_path
		Instr([]byte{0xb9, 0x02, 0x00, 0x00, 0x00}).  // mov ecx, 2
		Instr([]byte{0xba, 0x00, 0x00, 0x00, 0x00}).  // mov edx, 0
		Instr([]byte{0xcd, 0x80}).                    // int 0x80
		Instr([]byte{0x89, 0xc3})                     // mov ebx, eax

	// pwrite64(fd, original_code, original_code_len, original_ip)
	b.Instr([]byte{0xb8, 0xb5, 0x00, 0x00, 0x00}) // mov eax, 181
	callPopNext(b, "next1", 0x59)                 // pop ecx
	b.
		InstrWithRef([]byte{0x81, 0xe9}, "next1").        // sub ecx, next1
		InstrWithRef([]byte{0x81, 0xc1}, "original_code") // add ecx, original_code
	b.Instr([]byte{0xba})
	b.Dword(uint32(len(originalCode))) // mov edx, original_code_len
	b.Instr([]byte{0xbe})
	b.Dword(originalIP)                          // mov esi, instruction_pointer
	b.Instr([]byte{0xbf, 0x00, 0x00, 0x00, 0x00}) // mov edi, 0
	b.Instr([]byte{0xcd, 0x80})                   // int 0x80

	b.
		Instr([]byte{0xb8, 0x06, 0x00, 0x00, 0x00}). // mov eax, 6
		Instr([]byte{0xcd, 0x80})                    // int 0x80

	b.
		Instr([]byte{0x55}).       // push ebp
		Instr([]byte{0x89, 0xe5})  // mov ebp, esp

	b.Instr([]byte{0xb8})
	b.Dword(dlopenAddr)            // mov eax, dlopen_addr
	b.Instr([]byte{0x6a, 0x01})    // push 1
	callPopNext(b, "next2", 0x5b)  // pop ebx
	b.
		InstrWithRef([]byte{0x81, 0xeb}, "next2").  // sub ebx, next2
		InstrWithRef([]byte{0x81, 0xc3}, "lib_path"). // add ebx, lib_path
		Instr([]byte{0x53}).                          // push ebx
		Instr([]byte{0xff, 0xd0})                     // call eax

	b.
		Instr([]byte{0x89, 0xec}). // mov esp, ebp
		Instr([]byte{0x5d})        // pop ebp

	b.
		Instr([]byte{0x5f}). // pop edi
		Instr([]byte{0x5e}). // pop esi
		Instr([]byte{0x5d}). // pop ebp
		Instr([]byte{0x5a}). // pop edx
		Instr([]byte{0x59}). // pop ecx
		Instr([]byte{0x5b}). // pop ebx
		Instr([]byte{0x58})  // pop eax

	b.Instr([]byte{0x68})
	b.Dword(originalIP)       // push original_ip
	b.Instr([]byte{0xc3})     // ret

	b.Label("mem_path")
	b.Asciiz("/proc/self/mem")
	b.Label("original_code")
	b.Bytes(originalCode)
	b.Label("lib_path")
	b.Asciiz(libPath)

	return b.Build()
}

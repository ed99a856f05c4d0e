package payload

import "fmt"

// Sym is a resolved address of the target's dlopen-equivalent loader
// symbol, as found by the loader package.
type Sym struct {
	Addr uint64
}

// ShellCode builds the stage-one blob for the given machine: it is what
// gets written over the target's instruction pointer.
func ShellCode(m Machine, stagePath string) ([]byte, error) {
	switch m {
	case MachineX86:
		return shellCode32(stagePath)
	case MachineX8664:
		return shellCode64(stagePath)
	case MachineARM:
		return shellCode32ARM(stagePath)
	case MachineARM64:
		return shellCode64ARM(stagePath)
	default:
		return nil, fmt.Errorf("payload: unknown machine %d", m)
	}
}

// StageCode builds the stage-two blob for the given machine: the file
// mapped and jumped to by stage-one, embedding the bytes it overwrote, the
// saved instruction pointer, the library path to dlopen, and the resolved
// loader symbol address.
func StageCode(m Machine, originalCode []byte, originalIP uint64, libPath string, dlopen Sym) ([]byte, error) {
	switch m {
	case MachineX86:
		return stageCode32(originalCode, uint32(originalIP), libPath, uint32(dlopen.Addr))
	case MachineX8664:
		return stageCode64(originalCode, originalIP, libPath, dlopen.Addr)
	case MachineARM:
		return stageCode32ARM(originalCode, uint32(originalIP), libPath, uint32(dlopen.Addr))
	case MachineARM64:
		return stageCode64ARM(originalCode, originalIP, libPath, dlopen.Addr)
	default:
		return nil, fmt.Errorf("payload: unknown machine %d", m)
	}
}

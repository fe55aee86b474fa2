//go:build linux

package process_linux

import (
	"errors"
	"fmt"

	"memcheat/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads len(localBuf) bytes at remoteAddr of pid into localBuf
func process_vm_readv(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	if len(localBuf) == 0 {
		return 0, nil
	}

	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(len(localBuf))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}}

	return unix.ProcessVMReadv(int(pid), localIov, remoteIov, 0)
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	pid := p.GetPID()
	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	if _, ok := p.region(addr); !ok {
		return nil, fmt.Errorf("%w: 0x%x", process.ErrAddressNotMapped, uint64(addr))
	}

	data := make([]byte, size)
	n, err := process_vm_readv(pid, data, addr)
	if err != nil {
		return nil, vmError(process.ErrReadFault, "process_vm_readv", addr, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: partial read at 0x%x: %d of %d bytes", process.ErrReadFault, uint64(addr), n, len(data))
	}

	return data, nil
}

// vmError maps syscall failures onto the process sentinels; a target that
// vanished or refuses access makes the whole capability unavailable
func vmError(fault error, op string, addr process.ProcessMemoryAddress, err error) error {
	if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.EPERM) {
		return fmt.Errorf("%w: %s: %v", process.ErrCapabilityUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s at 0x%x: %v", fault, op, uint64(addr), err)
}

//go:build linux

package process_linux

import (
	"fmt"

	"memcheat/process"

	"golang.org/x/sys/unix"
)

// process_vm_writev writes localBuf to remoteAddr of pid
func process_vm_writev(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	if len(localBuf) == 0 {
		return 0, nil
	}

	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(len(localBuf))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}}

	return unix.ProcessVMWritev(int(pid), localIov, remoteIov, 0)
}

// WriteMemory writes data to the process memory at the specified address
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	pid := p.GetPID()
	if pid == 0 {
		return process.ErrProcessNotOpen
	}

	region, ok := p.region(addr)
	if !ok {
		return fmt.Errorf("%w: 0x%x", process.ErrAddressNotMapped, uint64(addr))
	}
	if !region.IsWritable() {
		return fmt.Errorf("%w: 0x%x (%s)", process.ErrRegionNotWritable, uint64(addr), region.Perms)
	}

	// Create a copy of the data to avoid potential modification during the write
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	written, err := process_vm_writev(pid, dataCopy, addr)
	if err != nil {
		return vmError(process.ErrWriteFault, "process_vm_writev", addr, err)
	}
	if written != len(data) {
		return fmt.Errorf("%w: only wrote %d of %d bytes at 0x%x", process.ErrWriteFault, written, len(data), uint64(addr))
	}

	return nil
}

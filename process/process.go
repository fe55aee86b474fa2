// Package process defines the memory access capability consumed by the scan
// and cheat engines, and the address types shared by every backend.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrCapabilityUnavailable means the target cannot be introspected at all
	// (not running, closed, or access denied). Scans and applies fail fast with it.
	ErrCapabilityUnavailable = errors.New("memory access capability unavailable")

	// ErrReadFault wraps a failed read of a single address range.
	ErrReadFault = errors.New("read fault")

	// ErrWriteFault wraps a failed write of a single address range.
	ErrWriteFault = errors.New("write fault")

	// ErrRegionNotWritable is returned when writing into a region without write permission.
	ErrRegionNotWritable = errors.New("memory region not writable")
)

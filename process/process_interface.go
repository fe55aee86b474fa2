package process

import (
	"memcheat/process/memory_map"
)

// MemoryAccessor is the only capability the engine needs from its host: region
// enumeration plus raw reads and writes in the target. Each individual read or
// write is expected to be atomic at the call boundary.
type MemoryAccessor interface {
	// EnumerateRegions returns a snapshot of the readable regions whose kind is in mask, sorted by base address
	EnumerateRegions(mask memory_map.Kind) ([]memory_map.Region, error)

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error

	// IsAvailable reports whether the target can currently be introspected
	IsAvailable() bool
}

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// Save saves the process memory and metadata to a directory
	Save(dirname string) error

	MemoryAccessor
}

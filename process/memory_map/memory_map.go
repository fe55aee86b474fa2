package memory_map

import (
	"fmt"
	"sort"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 `json:"address"`          // The starting address of the memory region
	Size    uint   `json:"size"`             // The size of the memory region in bytes
	Perms   string `json:"perms"`            // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 `json:"offset,omitempty"` // Offset into the backing file
	Device  string `json:"device,omitempty"` // Backing device (major:minor)
	Inode   uint64 `json:"inode,omitempty"`  // Backing inode, 0 for anonymous mappings
	Path    string `json:"path,omitempty"`   // Backing file or pseudo name like [heap]
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return IsReadablePerms(mmItem.Perms)
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return IsWritablePerms(mmItem.Perms)
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return IsExecutablePerms(mmItem.Perms)
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)
}

func IsReadablePerms(perms string) bool {
	return len(perms) > 0 && perms[0] == 'r'
}

func IsWritablePerms(perms string) bool {
	return len(perms) > 1 && perms[1] == 'w'
}

func IsExecutablePerms(perms string) bool {
	return len(perms) > 2 && perms[2] == 'x'
}

// SortByAddress sorts the map in place; Find requires a sorted map
func SortByAddress(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// Find returns the region containing addr using a binary search over a sorted map
func Find(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// Contains reports whether [addr, addr+size) lies entirely inside one region of a sorted map
func Contains(addr uint64, size uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	item := Find(addr, memoryMap)
	if item == nil {
		return nil
	}
	if addr+size < addr || addr+size > item.End() {
		return nil
	}
	return item
}

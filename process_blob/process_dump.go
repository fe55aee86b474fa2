package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"memcheat/process"
	"memcheat/process/memory_map"
)

// ProcessDump implements process.Process over a saved process dump or over
// regions added in memory. Writes land in the in-memory copy only.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	mu     sync.RWMutex
	closed bool
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a new ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
	}
}

// AddRegion maps item and backs it with data. A nil data leaves the region
// mapped but unreadable. A zero item.Size takes the length of data.
func (p *ProcessDump) AddRegion(item memory_map.MemoryMapItem, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if item.Size == 0 {
		item.Size = uint(len(data))
	}

	p.MemoryMap = append(p.MemoryMap, item)
	memory_map.SortByAddress(p.MemoryMap)

	if p.Blobs == nil {
		p.Blobs = make(map[uint64][]byte)
	}
	if data != nil {
		blob := make([]byte, len(data))
		copy(blob, data)
		p.Blobs[item.Address] = blob
	}
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	return fmt.Errorf("Open not supported for ProcessDump, use Load")
}

func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.Blobs = nil
	p.MemoryMap = nil
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	return nil // Memory map is static in a dump
}

// IsAvailable is true until the dump is closed
func (p *ProcessDump) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	item := memory_map.Find(uint64(addr), p.MemoryMap)
	return item != nil && item.IsReadable()
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, process.ErrProcessNotOpen
	}

	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

func (p *ProcessDump) EnumerateRegions(mask memory_map.Kind) ([]memory_map.Region, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, process.ErrCapabilityUnavailable
	}
	return memory_map.Select(p.MemoryMap, mask), nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, process.ErrProcessNotOpen
	}

	data, offset, err := p.locate(addr, uint64(size))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: no data for 0x%x", process.ErrReadFault, uint64(addr))
	}

	result := make([]byte, size)
	copy(result, data[offset:offset+uint64(size)])
	return result, nil
}

func (p *ProcessDump) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return process.ErrProcessNotOpen
	}

	item := memory_map.Find(uint64(addr), p.MemoryMap)
	if item != nil && !item.IsWritable() {
		return fmt.Errorf("%w: 0x%x (%s)", process.ErrRegionNotWritable, uint64(addr), item.Perms)
	}

	blob, offset, err := p.locate(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	if blob == nil {
		return fmt.Errorf("%w: no data for 0x%x", process.ErrWriteFault, uint64(addr))
	}

	copy(blob[offset:], data)
	return nil
}

// locate returns the blob backing [addr, addr+size) and the offset of addr in it.
// The blob is nil when the region is mapped but has no data.
// Caller must hold p.mu.
func (p *ProcessDump) locate(addr process.ProcessMemoryAddress, size uint64) ([]byte, uint64, error) {
	item := memory_map.Contains(uint64(addr), size, p.MemoryMap)
	if item == nil {
		if memory_map.Find(uint64(addr), p.MemoryMap) == nil {
			return nil, 0, fmt.Errorf("%w: 0x%x", process.ErrAddressNotMapped, uint64(addr))
		}
		return nil, 0, fmt.Errorf("%w: %d bytes at 0x%x cross the region end", process.ErrReadFault, size, uint64(addr))
	}

	data, ok := p.Blobs[item.Address]
	if !ok {
		return nil, 0, nil
	}

	offset := uint64(addr) - item.Address
	if offset+size > uint64(len(data)) {
		return nil, 0, fmt.Errorf("%w: %d bytes at 0x%x exceed region data bounds", process.ErrReadFault, size, uint64(addr))
	}
	return data, offset, nil
}

// Save writes the dump, including any in-memory writes, to dirname
func (p *ProcessDump) Save(dirname string) error {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	_, err = WriteDump(dirname, Metadata{PID: p.PID, Name: p.Name}, mm, p)
	return err
}

func (p *ProcessDump) Load(dirname string) error {
	// Read metadata
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	// Read memory map
	mmBytes, err := os.ReadFile(filepath.Join(dirname, memoryMapFile))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var mm []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &mm); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.SortByAddress(mm)

	// Load blobs
	blobs := make(map[uint64][]byte)
	for _, region := range mm {
		filename := blobFilename(dirname, region)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		blobs[region.Address] = data
	}

	p.mu.Lock()
	p.PID = metadata.PID
	p.Name = metadata.Name
	p.MemoryMap = mm
	p.Blobs = blobs
	p.closed = false
	p.mu.Unlock()

	return nil
}

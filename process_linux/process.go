//go:build linux

// Package process_linux reads and writes the memory of a live process through
// process_vm_readv / process_vm_writev and classifies its /proc/pid/maps.
package process_linux

import (
	"fmt"
	"sync"

	"memcheat/process"
	"memcheat/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a LinuxProcess that is not attached to anything yet
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	if !procExists(int(pid)) {
		return fmt.Errorf("%w: process with PID %d does not exist", process.ErrCapabilityUnavailable, pid)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Infoln("Closing process")

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// IsAvailable reports whether the process is open and still alive
func (p *LinuxProcess) IsAvailable() bool {
	pid := p.GetPID()
	return pid != 0 && procExists(int(pid))
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	pid := p.GetPID()
	if pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// Find requires the memory map to be sorted by address
	memory_map.SortByAddress(mm)

	p.mu.Lock()
	p.mm = mm
	p.mu.Unlock()
	return nil
}

// EnumerateRegions re-reads /proc/pid/maps and returns the readable regions in mask
func (p *LinuxProcess) EnumerateRegions(mask memory_map.Kind) ([]memory_map.Region, error) {
	if !p.IsAvailable() {
		return nil, process.ErrCapabilityUnavailable
	}
	if err := p.UpdateMemoryMap(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.Select(p.mm, mask), nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.Find(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

// region returns a copy of the cached mapping holding addr
func (p *LinuxProcess) region(addr process.ProcessMemoryAddress) (memory_map.MemoryMapItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.Find(uint64(addr), p.mm)
	if item == nil {
		return memory_map.MemoryMapItem{}, false
	}
	return *item, true
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// Package engine composes a scan session, a cheat list and its apply loop
// over one target, serializing their access to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"memcheat/cheat"
	"memcheat/config"
	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/scan"
	"memcheat/value"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Engine is the capability handed to front ends. Scan passes hold the access
// gate for their whole duration; apply ticks that find it held are skipped.
type Engine struct {
	acc     process.MemoryAccessor
	cfg     config.Config
	gate    sync.Mutex
	session *scan.Session
	cheats  *cheat.List
	applier *cheat.Applier
	log     *logger.Logger

	scanning atomic.Bool

	mu   sync.Mutex
	mask memory_map.Kind
}

// New builds an engine over acc configured by cfg
func New(acc process.MemoryAccessor, cfg config.Config, options ...cheat.ApplierOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mask, _ := cfg.RegionMask()

	e := &Engine{
		acc:     acc,
		cfg:     cfg,
		session: scan.NewSession(acc, cfg.ScanOptions()...),
		cheats:  cheat.NewList(),
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "engine")),
		mask:    mask,
	}

	options = append([]cheat.ApplierOption{cheat.WithInterval(cfg.ApplyInterval())}, options...)
	e.applier = cheat.NewApplier(e.cheats, acc, &e.gate, options...)

	return e, nil
}

func (e *Engine) Config() config.Config {
	return e.cfg
}

func (e *Engine) Session() *scan.Session {
	return e.session
}

func (e *Engine) Cheats() *cheat.List {
	return e.cheats
}

func (e *Engine) Applier() *cheat.Applier {
	return e.applier
}

// Scope is the region mask used by Start
func (e *Engine) Scope() memory_map.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mask
}

func (e *Engine) SetScope(mask memory_map.Kind) {
	e.mu.Lock()
	e.mask = mask
	e.mu.Unlock()
}

// Regions enumerates the target's regions in mask
func (e *Engine) Regions(mask memory_map.Kind) ([]memory_map.Region, error) {
	if !e.acc.IsAvailable() {
		return nil, process.ErrCapabilityUnavailable
	}
	return e.acc.EnumerateRegions(mask)
}

// Start enumerates the scope's regions and runs a first pass over them
func (e *Engine) Start(ctx context.Context, dt value.DataType, pred scan.Predicate) (scan.PassResult, error) {
	if !e.scanning.CompareAndSwap(false, true) {
		return scan.PassResult{}, scan.ErrBusy
	}
	defer e.scanning.Store(false)

	regions, err := e.Regions(e.Scope())
	if err != nil {
		return scan.PassResult{}, err
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	return e.session.Start(ctx, regions, dt, pred)
}

func (e *Engine) Refine(ctx context.Context, pred scan.Predicate) (scan.PassResult, error) {
	if !e.scanning.CompareAndSwap(false, true) {
		return scan.PassResult{}, scan.ErrBusy
	}
	defer e.scanning.Store(false)

	e.gate.Lock()
	defer e.gate.Unlock()

	return e.session.Refine(ctx, pred)
}

// Scanning reports whether a pass is running
func (e *Engine) Scanning() bool {
	return e.scanning.Load()
}

func (e *Engine) Reset() {
	e.session.Reset()
}

func (e *Engine) Candidates() []scan.Candidate {
	return e.session.Candidates()
}

func (e *Engine) Count() int {
	return e.session.Count()
}

func (e *Engine) Progress() scan.Progress {
	return e.session.Progress()
}

// Read reads n bytes at addr under the gate
func (e *Engine) Read(addr process.ProcessMemoryAddress, n int) ([]byte, error) {
	if !e.acc.IsAvailable() {
		return nil, process.ErrCapabilityUnavailable
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	return e.acc.ReadMemory(addr, process.ProcessMemorySize(n))
}

// ReadValue reads a value of dt at addr
func (e *Engine) ReadValue(addr process.ProcessMemoryAddress, dt value.DataType) (value.Value, error) {
	if dt.Size() == 0 {
		return value.Value{}, fmt.Errorf("%w: %s has no width", value.ErrSizeMismatch, dt)
	}
	data, err := e.Read(addr, dt.Size())
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBytes(dt, data)
}

// Write writes v at addr under the gate
func (e *Engine) Write(addr process.ProcessMemoryAddress, v value.Value) error {
	if !e.acc.IsAvailable() {
		return process.ErrCapabilityUnavailable
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	return e.acc.WriteMemory(addr, v.Bytes())
}

// Promote turns addr into a new enabled cheat named name. A zero v uses the
// candidate's last seen value.
func (e *Engine) Promote(name string, addr process.ProcessMemoryAddress, v value.Value) (cheat.Entry, error) {
	if v.Size() == 0 {
		found := false
		for _, c := range e.session.Candidates() {
			if c.Address == addr {
				v, found = c.LastValue, true
				break
			}
		}
		if !found {
			return cheat.Entry{}, fmt.Errorf("%w: %s is not a candidate, give a value", cheat.ErrInvalidEntry, addr.ToString())
		}
	}

	entry, err := cheat.NewEntry(name, true, cheat.Patch{Address: addr, Value: v})
	if err != nil {
		return cheat.Entry{}, err
	}
	if err := e.cheats.Add(entry); err != nil {
		return cheat.Entry{}, err
	}

	e.log.Infoln("Promoted", addr.ToString(), "to cheat", name, "=", v)
	return entry, nil
}

// ApplyNow applies the cheat list once, waiting for any running scan
func (e *Engine) ApplyNow() (cheat.ApplyResult, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	return e.cheats.Apply(e.acc)
}

// RunApplier runs the background apply loop until ctx is cancelled
func (e *Engine) RunApplier(ctx context.Context) error {
	return e.applier.Run(ctx)
}

// TriggerApply requests an immediate tick from the running apply loop
func (e *Engine) TriggerApply(ctx context.Context) (cheat.ApplyResult, error) {
	return e.applier.Trigger(ctx)
}

// LoadCheats adds the entries of a cheat file, replacing entries with the same name
func (e *Engine) LoadCheats(path string) (int, error) {
	entries, err := config.LoadCheatFile(path)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		err := e.cheats.Add(entry)
		if errors.Is(err, cheat.ErrDuplicateEntry) {
			err = e.cheats.Replace(entry)
		}
		if err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func (e *Engine) SaveCheats(path string) error {
	return config.SaveCheatFile(path, e.cheats.List())
}

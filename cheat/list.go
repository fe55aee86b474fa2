package cheat

import (
	"errors"
	"fmt"
	"sync"

	"memcheat/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Failure is one patch that could not be written
type Failure struct {
	Entry   string
	Address process.ProcessMemoryAddress
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s @ %s: %v", f.Entry, f.Address.ToString(), f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// ApplyResult summarises one Apply call
type ApplyResult struct {
	Entries  int // enabled entries visited
	Writes   int // patches written successfully
	Failures []Failure
}

// List is an ordered set of cheat entries keyed by name. It is safe for
// concurrent use; List and Get hand out copies.
type List struct {
	mu      sync.RWMutex
	entries []Entry
	log     *logger.Logger
}

func NewList() *List {
	return &List{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "cheats")),
	}
}

func (l *List) indexOf(name string) int {
	for i := range l.entries {
		if l.entries[i].Name == name {
			return i
		}
	}
	return -1
}

// Add appends entry; names are unique
func (l *List) Add(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(entry.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateEntry, entry.Name)
	}
	l.entries = append(l.entries, entry.clone())
	return nil
}

// Replace swaps the entry with the same name, keeping its position
func (l *List) Replace(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(entry.Name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, entry.Name)
	}
	l.entries[i] = entry.clone()
	return nil
}

func (l *List) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

func (l *List) SetEnabled(name string, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	l.entries[i].Enabled = enabled
	return nil
}

func (l *List) Get(name string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOf(name)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
	}
	return l.entries[i].clone(), nil
}

// List returns a copy of every entry in insertion order
func (l *List) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Apply writes every patch of every enabled entry through acc. A failed write
// is recorded and the remaining patches are still attempted; losing the target
// stops the pass with process.ErrCapabilityUnavailable.
func (l *List) Apply(acc process.MemoryAccessor) (ApplyResult, error) {
	var res ApplyResult

	if !acc.IsAvailable() {
		return res, process.ErrCapabilityUnavailable
	}

	// entries are immutable once stored, a shallow snapshot is enough
	l.mu.RLock()
	var enabled []Entry
	for _, e := range l.entries {
		if e.Enabled {
			enabled = append(enabled, e)
		}
	}
	l.mu.RUnlock()

	for _, e := range enabled {
		res.Entries++
		for _, p := range e.Patches {
			if err := acc.WriteMemory(p.Address, p.Value.Bytes()); err != nil {
				if errors.Is(err, process.ErrCapabilityUnavailable) {
					return res, err
				}
				res.Failures = append(res.Failures, Failure{Entry: e.Name, Address: p.Address, Err: err})
				continue
			}
			res.Writes++
		}
	}

	if len(res.Failures) > 0 {
		l.log.Debugln("Apply:", res.Writes, "writes,", len(res.Failures), "failures")
	}
	return res, nil
}

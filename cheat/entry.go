// Package cheat keeps the list of named address patches that are written
// back into the target on every apply tick.
package cheat

import (
	"fmt"

	"memcheat/process"
	"memcheat/value"
)

// Patch is one fixed write: Value's bytes at Address
type Patch struct {
	Address process.ProcessMemoryAddress
	Value   value.Value
}

func (p Patch) String() string {
	return fmt.Sprintf("%s = %s (%s)", p.Address.ToString(), p.Value, p.Value.Type())
}

// Entry is a named, toggleable group of patches. Patches never change after
// creation; editing a cheat replaces the whole entry.
type Entry struct {
	Name    string
	Enabled bool
	Patches []Patch
}

// NewEntry validates and builds an entry
func NewEntry(name string, enabled bool, patches ...Patch) (Entry, error) {
	e := Entry{Name: name, Enabled: enabled, Patches: patches}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e.clone(), nil
}

func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidEntry)
	}
	if len(e.Patches) == 0 {
		return fmt.Errorf("%w: %q has no patches", ErrInvalidEntry, e.Name)
	}
	for i, p := range e.Patches {
		if p.Value.Size() == 0 {
			return fmt.Errorf("%w: %q patch %d has no value", ErrInvalidEntry, e.Name, i)
		}
	}
	return nil
}

func (e Entry) clone() Entry {
	patches := make([]Patch, len(e.Patches))
	copy(patches, e.Patches)
	e.Patches = patches
	return e
}

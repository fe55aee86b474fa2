package memory_map

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a region. Kinds are bit flags so a set of them forms a class mask.
type Kind uint8

const (
	KindHeap Kind = 1 << iota
	KindCodeStatic
	KindMapped
	KindCodeMutable

	KindNone Kind = 0
	KindAll       = KindHeap | KindCodeStatic | KindMapped | KindCodeMutable
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindHeap, "heap"},
	{KindCodeStatic, "code"},
	{KindMapped, "mapped"},
	{KindCodeMutable, "main"},
}

func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	if k == KindAll {
		return "all"
	}
	var parts []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	return strings.Join(parts, "+")
}

// ParseKindMask parses masks such as "heap", "main", "heap+main" or "all"
func ParseKindMask(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return KindNone, fmt.Errorf("empty region mask")
	}

	var mask Kind
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == '|' }) {
		switch part {
		case "heap":
			mask |= KindHeap
		case "main", "code-mutable", "data":
			mask |= KindCodeMutable
		case "code", "code-static", "text":
			mask |= KindCodeStatic
		case "mapped":
			mask |= KindMapped
		case "all", "everything":
			mask |= KindAll
		default:
			return KindNone, fmt.Errorf("unknown region class %q", part)
		}
	}
	return mask, nil
}

// Perm is the read/write/execute permission set of a region
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExecute
)

func (p Perm) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExecute != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// Region is a classified window of the target's address space. Length is never zero.
type Region struct {
	Base   uint64
	Length uint64
	Kind   Kind
	Perm   Perm
}

func (r Region) End() uint64 {
	return r.Base + r.Length
}

func (r Region) Contains(addr uint64) bool {
	return addr >= r.Base && addr < r.End()
}

func (r Region) Readable() bool {
	return r.Perm&PermRead != 0
}

func (r Region) Writable() bool {
	return r.Perm&PermWrite != 0
}

func (r Region) String() string {
	return fmt.Sprintf("%016x-%016x %s %-6s %d bytes", r.Base, r.End(), r.Perm, r.Kind, r.Length)
}

// Perm converts the textual maps permissions into a Perm set
func (mmItem MemoryMapItem) Perm() Perm {
	var p Perm
	if mmItem.IsReadable() {
		p |= PermRead
	}
	if mmItem.IsWritable() {
		p |= PermWrite
	}
	if mmItem.IsExecutable() {
		p |= PermExecute
	}
	return p
}

// Kind classifies the mapping the way the heap / main / code selector expects
func (mmItem MemoryMapItem) Kind() Kind {
	switch {
	case mmItem.Path == "[heap]":
		return KindHeap
	case strings.HasPrefix(mmItem.Path, "["):
		// [stack], [vvar], [vdso], [vsyscall], [anon:...]
		if strings.HasPrefix(mmItem.Path, "[anon") && mmItem.IsWritable() {
			return KindHeap
		}
		return KindMapped
	case mmItem.Inode == 0 && mmItem.Path == "":
		if mmItem.IsWritable() {
			return KindHeap
		}
		return KindMapped
	case mmItem.IsExecutable():
		return KindCodeStatic
	case mmItem.IsWritable():
		return KindCodeMutable
	default:
		return KindMapped
	}
}

// Region returns the classified view of the mapping
func (mmItem MemoryMapItem) Region() Region {
	return Region{
		Base:   mmItem.Address,
		Length: uint64(mmItem.Size),
		Kind:   mmItem.Kind(),
		Perm:   mmItem.Perm(),
	}
}

// Select returns the readable, non-empty regions of the map whose kind is in mask, sorted by base
func Select(memoryMap []MemoryMapItem, mask Kind) []Region {
	var regions []Region
	for _, item := range memoryMap {
		if item.Size == 0 || !item.IsReadable() {
			continue
		}
		r := item.Region()
		if r.Kind&mask == 0 {
			continue
		}
		regions = append(regions, r)
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Base < regions[j].Base
	})
	return regions
}

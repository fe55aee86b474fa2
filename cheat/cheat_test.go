package cheat

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/process_blob"
	"memcheat/value"
)

func u32Value(t *testing.T, n uint64) value.Value {
	t.Helper()
	v, err := value.FromUint64(value.TypeOf(value.U32), n)
	if err != nil {
		t.Fatalf("FromUint64: %v", err)
	}
	return v
}

func newTarget() *process_blob.ProcessDump {
	dump := process_blob.NewProcessDump()
	dump.AddRegion(memory_map.MemoryMapItem{Address: 0x1000, Perms: "rw-p", Path: "[heap]"}, make([]byte, 16))
	dump.AddRegion(memory_map.MemoryMapItem{Address: 0x2000, Perms: "r--p", Inode: 3, Path: "/bin/game"}, make([]byte, 16))
	return dump
}

func readU32(t *testing.T, acc process.MemoryAccessor, addr process.ProcessMemoryAddress) uint32 {
	t.Helper()
	data, err := acc.ReadMemory(addr, 4)
	if err != nil {
		t.Fatalf("ReadMemory(%x): %v", uint64(addr), err)
	}
	return binary.LittleEndian.Uint32(data)
}

func mustEntry(t *testing.T, name string, enabled bool, patches ...Patch) Entry {
	t.Helper()
	e, err := NewEntry(name, enabled, patches...)
	if err != nil {
		t.Fatalf("NewEntry(%q): %v", name, err)
	}
	return e
}

func TestListCRUD(t *testing.T) {
	l := NewList()
	health := mustEntry(t, "health", true, Patch{Address: 0x1000, Value: u32Value(t, 999)})
	ammo := mustEntry(t, "ammo", false, Patch{Address: 0x1004, Value: u32Value(t, 50)})

	if err := l.Add(health); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(ammo); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(health); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("duplicate Add: got %v", err)
	}

	names := []string{}
	for _, e := range l.List() {
		names = append(names, e.Name)
	}
	if len(names) != 2 || names[0] != "health" || names[1] != "ammo" {
		t.Fatalf("List order = %v", names)
	}

	if err := l.SetEnabled("ammo", true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if e, _ := l.Get("ammo"); !e.Enabled {
		t.Fatalf("ammo not enabled")
	}

	replaced := mustEntry(t, "health", true, Patch{Address: 0x1008, Value: u32Value(t, 1)})
	if err := l.Replace(replaced); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if e, _ := l.Get("health"); e.Patches[0].Address != 0x1008 {
		t.Fatalf("Replace did not swap patches: %+v", e)
	}
	if l.List()[0].Name != "health" {
		t.Fatalf("Replace moved the entry")
	}

	if err := l.Remove("health"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := l.Remove("health"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("second Remove: got %v", err)
	}
	if err := l.SetEnabled("nope", true); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("SetEnabled missing: got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d", l.Len())
	}
}

func TestListReturnsCopies(t *testing.T) {
	l := NewList()
	l.Add(mustEntry(t, "health", true, Patch{Address: 0x1000, Value: u32Value(t, 999)}))

	entries := l.List()
	entries[0].Patches[0].Address = 0xdead
	entries[0].Enabled = false

	e, _ := l.Get("health")
	if e.Patches[0].Address != 0x1000 || !e.Enabled {
		t.Fatalf("List snapshot aliases stored entry: %+v", e)
	}
}

func TestInvalidEntries(t *testing.T) {
	if _, err := NewEntry("", true, Patch{Address: 1, Value: u32Value(t, 1)}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("empty name: got %v", err)
	}
	if _, err := NewEntry("x", true); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("no patches: got %v", err)
	}
	if _, err := NewEntry("x", true, Patch{Address: 1}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("empty value: got %v", err)
	}

	l := NewList()
	if err := l.Add(Entry{Name: "x"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Add invalid: got %v", err)
	}
}

func TestApplyFailSoft(t *testing.T) {
	target := newTarget()
	l := NewList()

	// first entry targets a read-only region, second is fine
	l.Add(mustEntry(t, "broken", true, Patch{Address: 0x2000, Value: u32Value(t, 1)}))
	l.Add(mustEntry(t, "health", true,
		Patch{Address: 0x1000, Value: u32Value(t, 999)},
		Patch{Address: 0x1004, Value: u32Value(t, 5)},
	))
	l.Add(mustEntry(t, "disabled", false, Patch{Address: 0x1008, Value: u32Value(t, 7)}))

	res, err := l.Apply(target)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if res.Entries != 2 || res.Writes != 2 || len(res.Failures) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if f := res.Failures[0]; f.Entry != "broken" || f.Address != 0x2000 || !errors.Is(f.Err, process.ErrRegionNotWritable) {
		t.Fatalf("failure = %+v", f)
	}

	if got := readU32(t, target, 0x1000); got != 999 {
		t.Fatalf("health = %d", got)
	}
	if got := readU32(t, target, 0x1004); got != 5 {
		t.Fatalf("second patch = %d", got)
	}
	if got := readU32(t, target, 0x1008); got != 0 {
		t.Fatalf("disabled entry was written: %d", got)
	}
}

func TestApplyUnavailable(t *testing.T) {
	target := newTarget()
	target.Close()

	l := NewList()
	l.Add(mustEntry(t, "health", true, Patch{Address: 0x1000, Value: u32Value(t, 999)}))

	if _, err := l.Apply(target); !errors.Is(err, process.ErrCapabilityUnavailable) {
		t.Fatalf("Apply on closed target: got %v", err)
	}
}

// dyingTarget loses the target after its first successful write
type dyingTarget struct {
	*process_blob.ProcessDump
	writes int
}

func (d *dyingTarget) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if d.writes > 0 {
		return fmt.Errorf("write %x: %w", uint64(addr), process.ErrCapabilityUnavailable)
	}
	d.writes++
	return d.ProcessDump.WriteMemory(addr, data)
}

func TestApplyStopsWhenTargetIsLost(t *testing.T) {
	target := &dyingTarget{ProcessDump: newTarget()}

	l := NewList()
	l.Add(mustEntry(t, "health", true,
		Patch{Address: 0x1000, Value: u32Value(t, 999)},
		Patch{Address: 0x1004, Value: u32Value(t, 5)},
		Patch{Address: 0x1008, Value: u32Value(t, 6)},
	))

	res, err := l.Apply(target)
	if !errors.Is(err, process.ErrCapabilityUnavailable) {
		t.Fatalf("Apply on a dying target: got %v", err)
	}
	if res.Writes != 1 || len(res.Failures) != 0 || target.writes != 1 {
		t.Fatalf("result = %+v, writes = %d", res, target.writes)
	}
}

func TestApplierReportsEachNewFailureOnce(t *testing.T) {
	target := newTarget()
	l := NewList()
	l.Add(mustEntry(t, "broken", true, Patch{Address: 0x2000, Value: u32Value(t, 1)}))

	a := NewApplier(l, target, &sync.Mutex{})
	for i := 0; i < 3; i++ {
		if _, err := a.tick(); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}

	stats := a.Stats()
	if stats.Failures != 3 || stats.Warnings != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if !errors.Is(stats.LastError, process.ErrRegionNotWritable) {
		t.Fatalf("last error = %v", stats.LastError)
	}

	l.Remove("broken")
	l.Add(mustEntry(t, "unmapped", true, Patch{Address: 0x9000, Value: u32Value(t, 1)}))
	a.tick()
	a.tick()

	if stats := a.Stats(); stats.Warnings != 2 || stats.Applied != 5 {
		t.Fatalf("stats after a new failure = %+v", stats)
	}
}

func waitRunning(t *testing.T, a *Applier) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !a.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("apply loop did not start")
		}
		time.Sleep(time.Millisecond)
	}
}

func startApplier(t *testing.T, a *Applier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	waitRunning(t, a)
}

func TestApplierSkipsWhileGateHeld(t *testing.T) {
	target := newTarget()
	l := NewList()
	l.Add(mustEntry(t, "health", true, Patch{Address: 0x1000, Value: u32Value(t, 999)}))

	gate := &sync.Mutex{}
	a := NewApplier(l, target, gate, WithInterval(time.Hour))
	startApplier(t, a)

	gate.Lock()
	if _, err := a.Trigger(context.Background()); !errors.Is(err, ErrSkipped) {
		gate.Unlock()
		t.Fatalf("Trigger while gate held: got %v", err)
	}
	if got := readU32(t, target, 0x1000); got != 0 {
		gate.Unlock()
		t.Fatalf("skipped tick wrote memory: %d", got)
	}
	gate.Unlock()

	res, err := a.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.Writes != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := readU32(t, target, 0x1000); got != 999 {
		t.Fatalf("health = %d", got)
	}

	stats := a.Stats()
	if stats.Ticks != 2 || stats.Skipped != 1 || stats.Applied != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestApplierTicks(t *testing.T) {
	target := newTarget()
	l := NewList()
	l.Add(mustEntry(t, "health", true, Patch{Address: 0x1000, Value: u32Value(t, 999)}))

	results := make(chan ApplyResult, 16)
	a := NewApplier(l, target, &sync.Mutex{},
		WithInterval(time.Millisecond),
		WithResultHandler(func(res ApplyResult, err error) {
			if err == nil {
				select {
				case results <- res:
				default:
				}
			}
		}),
	)
	startApplier(t, a)

	// the game keeps overwriting the value, the loop keeps restoring it
	for i := 0; i < 3; i++ {
		target.WriteMemory(0x1000, []byte{1, 0, 0, 0})
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatalf("no apply tick within 2s")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for readU32(t, target, 0x1000) != 999 {
		if time.Now().After(deadline) {
			t.Fatalf("health never restored to 999")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestApplierNotRunning(t *testing.T) {
	a := NewApplier(NewList(), newTarget(), &sync.Mutex{})
	if _, err := a.Trigger(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Trigger without loop: got %v", err)
	}
}

func TestApplierRunTwice(t *testing.T) {
	a := NewApplier(NewList(), newTarget(), &sync.Mutex{}, WithInterval(time.Hour))
	startApplier(t, a)

	if err := a.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run: got %v", err)
	}
}

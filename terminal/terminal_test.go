package terminal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"memcheat/cheat"
	"memcheat/config"
	"memcheat/engine"
	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/process_blob"
	"memcheat/scan"
)

func u32s(vals ...uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func newTestTerm(t *testing.T) (*Term, *bytes.Buffer, *process_blob.ProcessDump) {
	t.Helper()

	dump := process_blob.NewProcessDump()
	dump.AddRegion(memory_map.MemoryMapItem{Address: 0x1000, Perms: "rw-p", Path: "[heap]"}, u32s(10, 20, 10, 99))
	dump.AddRegion(memory_map.MemoryMapItem{Address: 0x4000, Perms: "r-xp", Inode: 7, Path: "/usr/bin/game"}, []byte("ELF code"))

	e, err := engine.New(dump, config.Default())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var out bytes.Buffer
	return newTerm(e, &out, false), &out, dump
}

func run(t *testing.T, term *Term, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	if err := term.Execute(context.Background(), line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return out.String()
}

func TestSearchSession(t *testing.T) {
	term, out, dump := newTestTerm(t)

	got := run(t, term, out, "start u32 eq 10")
	if !strings.Contains(got, "Pass 1 (eq): 2 candidates") {
		t.Fatalf("start output:\n%s", got)
	}

	got = run(t, term, out, "results")
	if !strings.Contains(got, "0x1000") || !strings.Contains(got, "0x1008") {
		t.Fatalf("results output:\n%s", got)
	}

	dump.WriteMemory(0x1008, u32s(11))
	got = run(t, term, out, "refine unchanged")
	if !strings.Contains(got, "1 candidates, 1 removed") {
		t.Fatalf("refine output:\n%s", got)
	}

	got = run(t, term, out, "progress")
	if !strings.Contains(got, "has-candidates (2 searches)") {
		t.Fatalf("progress output:\n%s", got)
	}

	run(t, term, out, "reset")
	got = run(t, term, out, "progress")
	if !strings.Contains(got, "idle (no searches)") {
		t.Fatalf("progress after reset:\n%s", got)
	}
}

func TestRefineNeedsCandidates(t *testing.T) {
	term, _, _ := newTestTerm(t)

	err := term.Execute(context.Background(), "refine increased")
	if !errors.Is(err, scan.ErrInvalidState) {
		t.Fatalf("refine without a search: got %v", err)
	}
}

func TestEmptyResultMessage(t *testing.T) {
	term, out, _ := newTestTerm(t)

	got := run(t, term, out, "start u32 eq 12345")
	if !strings.Contains(got, "No candidates left") {
		t.Fatalf("start output:\n%s", got)
	}
}

func TestScopeAndRegions(t *testing.T) {
	term, out, _ := newTestTerm(t)

	got := run(t, term, out, "regions")
	if !strings.Contains(got, "2 regions, 24 bytes") {
		t.Fatalf("regions output:\n%s", got)
	}
	if !strings.Contains(got, "code") || !strings.Contains(got, "heap") {
		t.Fatalf("regions should show classes:\n%s", got)
	}

	got = run(t, term, out, "regions heap")
	if !strings.Contains(got, "1 regions, 16 bytes") {
		t.Fatalf("regions heap output:\n%s", got)
	}

	got = run(t, term, out, "scope heap code")
	if !strings.Contains(got, "scope: heap+code") {
		t.Fatalf("scope output:\n%s", got)
	}
	if term.engine.Scope() != memory_map.KindHeap|memory_map.KindCodeStatic {
		t.Fatalf("scope = %s", term.engine.Scope())
	}

	if err := term.Execute(context.Background(), "scope stack-ish"); err == nil {
		t.Fatalf("bad scope should fail")
	}
}

func TestFastToggle(t *testing.T) {
	term, out, _ := newTestTerm(t)

	if got := run(t, term, out, "fast off"); !strings.Contains(got, "fast scanning: off") {
		t.Fatalf("fast output:\n%s", got)
	}
	if term.engine.Session().FastScan() {
		t.Fatalf("fast scan should be off")
	}
	if err := term.Execute(context.Background(), "fast maybe"); err == nil {
		t.Fatalf("fast maybe should fail")
	}
}

func TestPeekPoke(t *testing.T) {
	term, out, dump := newTestTerm(t)

	run(t, term, out, "poke 0x1004 u32 1234")
	data, _ := dump.ReadMemory(0x1004, 4)
	if binary.LittleEndian.Uint32(data) != 1234 {
		t.Fatalf("poke did not write: %v", data)
	}

	got := run(t, term, out, "peek 0x1000 16")
	if !strings.HasPrefix(got, "0000000000001000  0a 00 00 00 d2 04 00 00") {
		t.Fatalf("peek output:\n%s", got)
	}

	err := term.Execute(context.Background(), "poke 0x4000 u8 1")
	if !errors.Is(err, process.ErrRegionNotWritable) {
		t.Fatalf("poke into code: got %v", err)
	}
	if err := term.Execute(context.Background(), "peek 0x9000"); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("peek unmapped: got %v", err)
	}
	if err := term.Execute(context.Background(), "peek zz"); err == nil {
		t.Fatalf("peek with a bad address should fail")
	}
}

func TestPromoteAndCheats(t *testing.T) {
	term, out, dump := newTestTerm(t)

	run(t, term, out, "start u32 eq 99")
	got := run(t, term, out, `promote "Infinite lives" 0x100c`)
	if !strings.Contains(got, `Cheat "Infinite lives"`) {
		t.Fatalf("promote output:\n%s", got)
	}

	run(t, term, out, "cheat add health 0x1000 u32 500")
	got = run(t, term, out, "cheat ls")
	if !strings.Contains(got, "Infinite lives") || !strings.Contains(got, "health") {
		t.Fatalf("cheat ls:\n%s", got)
	}

	run(t, term, out, "cheat off health")
	dump.WriteMemory(0x100c, u32s(1))
	got = run(t, term, out, "apply")
	if !strings.Contains(got, "Applied 1 cheats, 1 writes") {
		t.Fatalf("apply output:\n%s", got)
	}
	data, _ := dump.ReadMemory(0x1000, 16)
	if binary.LittleEndian.Uint32(data[12:]) != 99 || binary.LittleEndian.Uint32(data) != 10 {
		t.Fatalf("memory after apply: %v", data)
	}

	run(t, term, out, "cheat rm health")
	if err := term.Execute(context.Background(), "cheat rm health"); !errors.Is(err, cheat.ErrEntryNotFound) {
		t.Fatalf("second rm: got %v", err)
	}
	if err := term.Execute(context.Background(), "cheat add health 0x1000 u8 300"); err == nil {
		t.Fatalf("out of range cheat value should fail")
	}
}

func TestCheatLoadSave(t *testing.T) {
	term, out, _ := newTestTerm(t)
	path := filepath.Join(t.TempDir(), "cheats.yml")

	run(t, term, out, "cheat add health 0x1000 u32 500")
	if got := run(t, term, out, "cheat save "+path); !strings.Contains(got, "Saved 1 cheats") {
		t.Fatalf("save output:\n%s", got)
	}

	other, otherOut, _ := newTestTerm(t)
	if got := run(t, other, otherOut, "cheat load "+path); !strings.Contains(got, "Loaded 1 cheats") {
		t.Fatalf("load output:\n%s", got)
	}
	if _, err := other.engine.Cheats().Get("health"); err != nil {
		t.Fatalf("loaded list is missing health: %v", err)
	}
}

func TestHelpAndUnknown(t *testing.T) {
	term, out, _ := newTestTerm(t)

	got := run(t, term, out, "help")
	for _, name := range []string{"start", "refine", "promote", "cheat", "peek"} {
		if !strings.Contains(got, name) {
			t.Fatalf("help is missing %s:\n%s", name, got)
		}
	}

	got = run(t, term, out, "help refine")
	if !strings.Contains(got, "refine <op> [value] [upper]") {
		t.Fatalf("help refine:\n%s", got)
	}

	if err := term.Execute(context.Background(), "frobnicate"); !errors.Is(err, errNoCmd) {
		t.Fatalf("unknown command: got %v", err)
	}
	if err := term.Execute(context.Background(), "exit"); err == nil {
		t.Fatalf("exit should return ExitRequestError")
	} else if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("exit: got %T", err)
	}
	if err := term.Execute(context.Background(), `start "u32`); err == nil {
		t.Fatalf("unterminated quote should fail")
	}
	if err := term.Execute(context.Background(), "   "); err != nil {
		t.Fatalf("blank line: %v", err)
	}
}

func TestCancelledCommand(t *testing.T) {
	term, _, _ := newTestTerm(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := term.Execute(ctx, "start u32 unknown"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled start: got %v", err)
	}
	if term.engine.Session().State() != scan.Idle {
		t.Fatalf("state = %s", term.engine.Session().State())
	}
}

func TestSigintGuardStopsWithShell(t *testing.T) {
	term, _, _ := newTestTerm(t)

	cancelled := make(chan struct{})
	term.mu.Lock()
	term.cancel = func() { close(cancelled) }
	term.mu.Unlock()

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		term.sigintGuard(ch, done)
		close(exited)
	}()

	ch <- os.Interrupt
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("SIGINT did not cancel the running command")
	}

	close(done)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatalf("sigintGuard kept running after the shell stopped")
	}
}

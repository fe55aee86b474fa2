//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"testing"
	"unsafe"

	"memcheat/process"
	"memcheat/process/memory_map"
)

func openSelf(t *testing.T) *LinuxProcess {
	t.Helper()
	p, err := NewWithPID(process.ProcessID(os.Getpid()))
	if err != nil {
		t.Fatalf("NewWithPID(self): %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestReadWriteSelf(t *testing.T) {
	p := openSelf(t)

	buf := make([]byte, 64)
	copy(buf, "memcheat self test")
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))

	data, err := p.ReadMemory(addr, 18)
	if err != nil {
		t.Skipf("process_vm_readv unavailable here: %v", err)
	}
	if string(data) != "memcheat self test" {
		t.Fatalf("ReadMemory = %q", data)
	}

	if err := p.WriteMemory(addr, []byte("MEM")); err != nil {
		t.Skipf("process_vm_writev unavailable here: %v", err)
	}
	if !bytes.HasPrefix(buf, []byte("MEMcheat")) {
		t.Fatalf("after write buf = %q", buf[:18])
	}

	runtime.KeepAlive(buf)
}

func TestEnumerateSelf(t *testing.T) {
	p := openSelf(t)

	if !p.IsAvailable() {
		t.Fatalf("own process should be available")
	}

	buf := make([]byte, 1<<16)
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	regions, err := p.EnumerateRegions(memory_map.KindAll)
	if err != nil {
		t.Fatalf("EnumerateRegions: %v", err)
	}

	found := false
	for i, r := range regions {
		if i > 0 && r.Base < regions[i-1].Base {
			t.Fatalf("regions not sorted at %d", i)
		}
		if !r.Readable() {
			t.Fatalf("unreadable region returned: %s", r)
		}
		if r.Contains(addr) {
			found = true
		}
	}
	if !found {
		t.Fatalf("no region contains heap buffer at %x", addr)
	}

	runtime.KeepAlive(buf)
}

func TestClosedProcess(t *testing.T) {
	p := New()

	if p.IsAvailable() {
		t.Fatalf("unopened process reports available")
	}
	if _, err := p.ReadMemory(0x1000, 4); !errors.Is(err, process.ErrProcessNotOpen) {
		t.Fatalf("ReadMemory on unopened process: got %v", err)
	}
	if _, err := p.EnumerateRegions(memory_map.KindAll); !errors.Is(err, process.ErrCapabilityUnavailable) {
		t.Fatalf("EnumerateRegions on unopened process: got %v", err)
	}
}

func TestOpenMissingProcess(t *testing.T) {
	// pid_max never exceeds 2^22
	if _, err := NewWithPID(1 << 23); !errors.Is(err, process.ErrCapabilityUnavailable) {
		t.Fatalf("NewWithPID(missing): got %v", err)
	}
}

func TestFindSelf(t *testing.T) {
	info, err := findProcessByPID(os.Getpid())
	if err != nil {
		t.Fatalf("findProcessByPID: %v", err)
	}
	if info.Name == "" {
		t.Fatalf("empty process name")
	}

	// ListByName skips ourselves
	ps, err := ListByName(info.Name)
	if err != nil {
		t.Fatalf("ListByName: %v", err)
	}
	for _, p := range ps {
		if int(p.PID) == os.Getpid() {
			t.Fatalf("ListByName returned own pid")
		}
	}

	if _, err := ListByName(""); err == nil {
		t.Fatalf("ListByName(\"\") should fail")
	}
}

func TestBytesTrimNL(t *testing.T) {
	if got := string(bytesTrimNL([]byte("game\n"))); got != "game" {
		t.Fatalf("bytesTrimNL = %q", got)
	}
}

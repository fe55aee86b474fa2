//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"memcheat/process"
)

// List returns every process visible in /proc except ourselves, lowest PID first
func List() ([]process.ProcessInfo, error) {
	return scanProc(func(process.ProcessInfo, string) bool { return true })
}

// ListByName returns all processes whose comm or exe basename equals name.
// name match is case-sensitive (like pidof).
func ListByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	return scanProc(func(info process.ProcessInfo, exe string) bool {
		return info.Name == name || (exe != "" && filepath.Base(exe) == name)
	})
}

// OneByName returns the first match for name (lowest PID), or os.ErrNotExist if none.
func OneByName(name string) (process.ProcessInfo, error) {
	ps, err := ListByName(name)
	if err != nil {
		return process.ProcessInfo{}, err
	}
	if len(ps) == 0 {
		return process.ProcessInfo{}, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return ps[0], nil
}

func scanProc(match func(info process.ProcessInfo, exe string) bool) ([]process.ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var out []process.ProcessInfo

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue // not a PID dir
		}
		if pid == selfPID {
			continue // skip ourselves
		}

		info, err := findProcessByPID(pid)
		if err != nil {
			continue // exited while we were looking
		}

		// Resolve /proc/<pid>/exe symlink; may fail if zombie or permission
		exe, _ := os.Readlink(filepath.Join("/proc", e.Name(), "exe"))
		if match(info, exe) {
			out = append(out, info)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PID < out[j].PID
	})
	return out, nil
}

// findProcessByPID reads the process name from /proc/[pid]/comm
func findProcessByPID(pid int) (process.ProcessInfo, error) {
	comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return process.ProcessInfo{}, fmt.Errorf("failed to read process name: %w", err)
	}

	return process.ProcessInfo{
		PID:  process.ProcessID(pid),
		Name: string(bytesTrimNL(comm)),
	}, nil
}

func procExists(pid int) bool {
	if pid <= 0 {
		return false
	}

	// Fast path: stat /proc/<pid>
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	// For transient errors (permission, EIO): fall back to kill 0
	return syscall.Kill(pid, 0) == nil
}

func bytesTrimNL(b []byte) []byte {
	// Trim trailing '\n' if present (comm has a newline).
	for len(b) > 0 {
		switch b[len(b)-1] {
		case '\n', '\r', ' ', '\t':
			b = b[:len(b)-1]
		default:
			return b
		}
	}
	return b
}

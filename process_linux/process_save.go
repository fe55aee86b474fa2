//go:build linux

package process_linux

import (
	"fmt"

	"memcheat/process_blob"
)

// Save saves the process memory and metadata to a directory in the format
// process_blob.ProcessDump loads
func (p *LinuxProcess) Save(dirname string) error {
	pid := p.GetPID()
	if pid == 0 {
		return fmt.Errorf("process not opened")
	}

	name := "unknown"
	if info, err := findProcessByPID(int(pid)); err == nil {
		name = info.Name
	}

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}

	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	p.log.Infoln("Saving process to directory:", dirname)

	stats, err := process_blob.WriteDump(dirname, process_blob.Metadata{PID: pid, Name: name}, mm, p)
	if err != nil {
		return err
	}

	p.log.Infoln("Region statistics: saved", stats.Saved,
		"non-readable", stats.SkippedUnreadable,
		"too large", stats.SkippedTooLarge,
		"read errors", stats.ReadErrors)

	return nil
}

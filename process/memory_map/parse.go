package memory_map

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseMaps parses the /proc/[pid]/maps text format:
//
//	address           perms offset  dev   inode   pathname
//	00400000-00452000 r-xp 00000000 08:02 173521  /usr/bin/dbus-daemon
//
// Malformed lines are skipped.
func ParseMaps(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		item, ok := parseMapsLine(scanner.Text())
		if !ok {
			continue
		}
		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}

func parseMapsLine(line string) (MemoryMapItem, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return MemoryMapItem{}, false
	}

	// Parse address range (e.g., "00400000-0040b000")
	startStr, endStr, found := strings.Cut(fields[0], "-")
	if !found {
		return MemoryMapItem{}, false
	}

	startAddr, err := strconv.ParseUint(startStr, 16, 64)
	if err != nil {
		return MemoryMapItem{}, false
	}

	endAddr, err := strconv.ParseUint(endStr, 16, 64)
	if err != nil || endAddr < startAddr {
		return MemoryMapItem{}, false
	}

	item := MemoryMapItem{
		Address: startAddr,
		Size:    uint(endAddr - startAddr),
		Perms:   fields[1],
	}

	if len(fields) > 2 {
		item.Offset, _ = strconv.ParseUint(fields[2], 16, 64)
	}
	if len(fields) > 3 {
		item.Device = fields[3]
	}
	if len(fields) > 4 {
		item.Inode, _ = strconv.ParseUint(fields[4], 10, 64)
	}
	if len(fields) > 5 {
		// paths may contain spaces, and deleted files carry a " (deleted)" suffix
		item.Path = strings.Join(fields[5:], " ")
	}

	return item, true
}

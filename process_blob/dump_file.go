package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memcheat/process"
	"memcheat/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	metadataFile  = "metadata.json"
	memoryMapFile = "process_memory_map.json"

	// MaxBlobSize is the largest region written to a dump
	MaxBlobSize = 100 * 1024 * 1024
)

// Metadata identifies the process a dump was taken from
type Metadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

// SaveStats counts what WriteDump did with each region
type SaveStats struct {
	Saved             int
	SkippedUnreadable int
	SkippedTooLarge   int
	ReadErrors        int
}

func blobFilename(dirname string, region memory_map.MemoryMapItem) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size))
}

// WriteDump stores meta, the memory map and one blob per readable region of
// mm into dirname. Regions that fail to read are skipped and counted.
func WriteDump(dirname string, meta Metadata, mm []memory_map.MemoryMapItem, reader process.MemoryAccessor) (SaveStats, error) {
	var stats SaveStats

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("dump-%d", meta.PID)))

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return stats, fmt.Errorf("failed to create directory: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return stats, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, metadataFile), metadataJSON, 0644); err != nil {
		return stats, fmt.Errorf("failed to write metadata file: %w", err)
	}

	memoryMapJSON, err := json.MarshalIndent(mm, "", "  ")
	if err != nil {
		return stats, fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, memoryMapFile), memoryMapJSON, 0644); err != nil {
		return stats, fmt.Errorf("failed to write memory map file: %w", err)
	}

	log.Infoln("Saving", len(mm), "regions to", dirname)

	for _, region := range mm {
		if !region.IsReadable() {
			stats.SkippedUnreadable++
			continue
		}

		if region.Size > MaxBlobSize {
			log.Infoln("Skipping large region at", fmt.Sprintf("%x", region.Address), "(size:", region.Size/1024/1024, "MB)")
			stats.SkippedTooLarge++
			continue
		}

		data, err := reader.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), ":", err)
			stats.ReadErrors++
			continue
		}

		if err := os.WriteFile(blobFilename(dirname, region), data, 0644); err != nil {
			return stats, fmt.Errorf("failed to write blob for region 0x%x: %w", region.Address, err)
		}
		stats.Saved++
	}

	log.Infoln("Process dump saved:", stats.Saved, "regions saved,", stats.ReadErrors, "read errors")
	return stats, nil
}

// Package config loads the memcheat YAML configuration and cheat files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memcheat/cheat"
	"memcheat/process/memory_map"
	"memcheat/scan"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDir        = "~/.memcheat"
	DefaultConfigFile = DefaultDir + "/config.yml"
	DefaultCheatsFile = DefaultDir + "/cheats.yml"
)

// Duration is a time.Duration written as Go duration text ("16ms") in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar for duration")
	}

	v, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type ScanConfig struct {
	FastScan  bool   `yaml:"fast_scan"`
	MaxDOP    uint   `yaml:"max_dop"`
	ChunkSize int    `yaml:"chunk_size"`
	PageSize  int    `yaml:"page_size"`
	Regions   string `yaml:"regions"`
}

type ApplyConfig struct {
	Interval Duration `yaml:"interval"`
}

type Config struct {
	Scan   ScanConfig  `yaml:"scan"`
	Apply  ApplyConfig `yaml:"apply"`
	Cheats string      `yaml:"cheats"`
}

// Default is the configuration used when no file exists
func Default() Config {
	return Config{
		Scan: ScanConfig{
			FastScan:  true,
			MaxDOP:    1,
			ChunkSize: 1 << 20,
			PageSize:  4096,
			Regions:   "heap",
		},
		Apply: ApplyConfig{
			Interval: Duration(cheat.DefaultInterval),
		},
		Cheats: DefaultCheatsFile,
	}
}

// Load reads YAML from r over the defaults; keys missing from r keep their default
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	raw, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile loads path; a missing file yields the defaults
func LoadFile(path string) (Config, error) {
	f, err := os.Open(ExpandPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), err
	}
	defer f.Close()

	return Load(f)
}

func (c Config) Validate() error {
	if _, err := c.RegionMask(); err != nil {
		return err
	}
	if c.Scan.ChunkSize <= 0 {
		return fmt.Errorf("scan.chunk_size must be positive, got %d", c.Scan.ChunkSize)
	}
	if c.Scan.PageSize <= 0 || c.Scan.PageSize > c.Scan.ChunkSize {
		return fmt.Errorf("scan.page_size must be positive and at most chunk_size, got %d", c.Scan.PageSize)
	}
	if c.Apply.Interval <= 0 {
		return fmt.Errorf("apply.interval must be positive, got %s", time.Duration(c.Apply.Interval))
	}
	return nil
}

func (c Config) RegionMask() (memory_map.Kind, error) {
	return memory_map.ParseKindMask(c.Scan.Regions)
}

// ScanOptions converts the scan section into session options
func (c Config) ScanOptions() []scan.Option {
	return []scan.Option{
		scan.WithFastScan(c.Scan.FastScan),
		scan.WithMaxDOP(c.Scan.MaxDOP),
		scan.WithChunkSize(c.Scan.ChunkSize),
		scan.WithPageSize(c.Scan.PageSize),
	}
}

func (c Config) ApplyInterval() time.Duration {
	return time.Duration(c.Apply.Interval)
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

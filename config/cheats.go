package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memcheat/cheat"
	"memcheat/process"
	"memcheat/value"

	"gopkg.in/yaml.v3"
)

// HexAddress is an address written as a 0x-prefixed hex scalar
type HexAddress uint64

func (h *HexAddress) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar for hex address")
	}

	s := strings.TrimSpace(value.Value)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")

	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q: %w", value.Line, value.Value, err)
	}

	*h = HexAddress(v)
	return nil
}

func (h HexAddress) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%x", uint64(h)),
	}, nil
}

type patchSpec struct {
	Address HexAddress `yaml:"address"`
	Type    string     `yaml:"type"`
	Value   string     `yaml:"value"`
}

type cheatSpec struct {
	Name    string      `yaml:"name"`
	Enabled bool        `yaml:"enabled"`
	Patches []patchSpec `yaml:"patches"`
}

type cheatFile struct {
	Cheats []cheatSpec `yaml:"cheats"`
}

// LoadCheats parses a cheat file into validated entries
func LoadCheats(r io.Reader) ([]cheat.Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var file cheatFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cheats: %w", err)
	}

	entries := make([]cheat.Entry, 0, len(file.Cheats))
	for _, spec := range file.Cheats {
		patches := make([]cheat.Patch, 0, len(spec.Patches))
		for i, ps := range spec.Patches {
			dt, err := value.ParseDataType(ps.Type)
			if err != nil {
				return nil, fmt.Errorf("cheat %q patch %d: %w", spec.Name, i, err)
			}
			v, err := value.Parse(ps.Value, dt)
			if err != nil {
				return nil, fmt.Errorf("cheat %q patch %d: %w", spec.Name, i, err)
			}
			patches = append(patches, cheat.Patch{Address: process.ProcessMemoryAddress(ps.Address), Value: v})
		}

		entry, err := cheat.NewEntry(spec.Name, spec.Enabled, patches...)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// SaveCheats writes entries in the format LoadCheats reads
func SaveCheats(w io.Writer, entries []cheat.Entry) error {
	file := cheatFile{Cheats: make([]cheatSpec, 0, len(entries))}

	for _, e := range entries {
		spec := cheatSpec{Name: e.Name, Enabled: e.Enabled}
		for _, p := range e.Patches {
			spec.Patches = append(spec.Patches, patchSpec{
				Address: HexAddress(p.Address),
				Type:    p.Value.Type().String(),
				Value:   value.Format(p.Value),
			})
		}
		file.Cheats = append(file.Cheats, spec)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return err
	}
	return enc.Close()
}

func LoadCheatFile(path string) ([]cheat.Entry, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadCheats(f)
}

func SaveCheatFile(path string, entries []cheat.Entry) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := SaveCheats(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package rom

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snes65816/romgen/pkg/mapper"
)

// BuildConfig is the on-disk description of one assembly run, using a
// plain-struct-with-defaults config idiom. It is the YAML file a
// cmd/snes816asm invocation loads before constructing a BuildContext.
type BuildConfig struct {
	// ROMSizeBytes is the total size of the output ROM buffer.
	ROMSizeBytes int `yaml:"rom_size_bytes"`
	// Mapping selects the cartridge memory map; only "lorom" is
	// implemented.
	Mapping string `yaml:"mapping"`
	// OutputROM, OutputLabels and OutputCoverage are the paths the CLI
	// writes its three output files to.
	OutputROM      string `yaml:"output_rom"`
	OutputLabels   string `yaml:"output_labels"`
	OutputCoverage string `yaml:"output_coverage"`
}

// DefaultBuildConfig returns the config a bare `snes816asm build` run
// uses when no config file is given.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		ROMSizeBytes:   512 * 1024,
		Mapping:        "lorom",
		OutputROM:      "out.sfc",
		OutputLabels:   "out.label",
		OutputCoverage: "out.cdl",
	}
}

// LoadBuildConfig reads and parses a YAML build config from path,
// starting from DefaultBuildConfig so a partial file only overrides what
// it mentions.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rom: reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("rom: parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Mode resolves the config's Mapping name to a mapper.Mode.
func (c BuildConfig) Mode() (mapper.Mode, error) {
	switch c.Mapping {
	case "lorom", "":
		return mapper.LoROM, nil
	default:
		return 0, fmt.Errorf("rom: unimplemented mapping %q", c.Mapping)
	}
}

/*
Package config loads the engine configuration from a TOML file.

PURPOSE:
  One file, two sections: [server] for the process (listen address, database
  path, document directory) and [leave] for the business policy (default
  yearly allocation, which types deduct from the balance, fixed durations).
  A missing configuration file is not an error; the engine runs on defaults
  so a fresh checkout works with zero setup.
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/leave"
)

// Config is the root of the TOML file.
type Config struct {
	Server ServerConfig `toml:"server"`
	Leave  LeaveConfig  `toml:"leave"`
}

// ServerConfig covers the process-level settings.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	DBPath  string `toml:"db_path"`
	DocsDir string `toml:"docs_dir"`
}

// LeaveConfig covers the business policy. DefaultAllocation is a decimal
// string so fractional day grants round-trip exactly.
type LeaveConfig struct {
	DefaultAllocation string   `toml:"default_allocation"`
	DeductingTypes    []string `toml:"deducting_types"`
	MaternityDays     int      `toml:"maternity_days"`
	PaternityDays     int      `toml:"paternity_days"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:    ":8080",
			DBPath:  "leave.db",
			DocsDir: "docs",
		},
		Leave: LeaveConfig{
			DefaultAllocation: "22",
			DeductingTypes:    []string{"annual"},
			MaternityDays:     98,
			PaternityDays:     15,
		},
	}
}

// Load reads the TOML file at path. A missing file yields Default() without
// error; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Settings converts the leave section into domain settings.
func (c Config) Settings() (leave.Settings, error) {
	alloc, err := decimal.NewFromString(c.Leave.DefaultAllocation)
	if err != nil {
		return leave.Settings{}, fmt.Errorf("invalid default_allocation %q: %w", c.Leave.DefaultAllocation, err)
	}
	if alloc.IsNegative() {
		return leave.Settings{}, fmt.Errorf("default_allocation must not be negative")
	}

	deducting := make(map[leave.LeaveType]bool, len(c.Leave.DeductingTypes))
	for _, t := range c.Leave.DeductingTypes {
		lt := leave.LeaveType(t)
		if !lt.Known() {
			return leave.Settings{}, fmt.Errorf("unknown leave type %q in deducting_types", t)
		}
		deducting[lt] = true
	}

	return leave.Settings{
		DefaultAllocation: alloc,
		DeductingTypes:    deducting,
		MaternityDays:     c.Leave.MaternityDays,
		PaternityDays:     c.Leave.PaternityDays,
	}, nil
}

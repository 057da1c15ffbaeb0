package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ndl/dwarf-idea/dwarfdb"
)

// Config is an optional sidecar file (YAML or, via the same extension
// dispatch the teacher's LoadConfig uses, JSON) setting default cache
// sizes and mmap usage for repeated CLI invocations against the same
// database file, so a user doesn't have to repeat flags every run.
type Config struct {
	ResultCacheCapacity int  `yaml:"result_cache_capacity" json:"result_cache_capacity"`
	BlockCacheCapacity  int  `yaml:"block_cache_capacity" json:"block_cache_capacity"`
	UseMmap             bool `yaml:"use_mmap" json:"use_mmap"`
}

// LoadConfig reads path, dispatching on its extension the way the
// teacher's config.go dispatches JSON vs YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %q: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json config %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config file %q must be .yaml, .yml or .json", path)
	}
	return &cfg, nil
}

// ToOptions converts a Config into dwarfdb.Options, falling back to
// DefaultOptions for a nil Config and for any cache capacity that is not
// positive. UseMmap is always taken from the Config, so an unset use_mmap
// yields false.
func (c *Config) ToOptions() dwarfdb.Options {
	opts := dwarfdb.DefaultOptions()
	if c == nil {
		return opts
	}
	if c.ResultCacheCapacity > 0 {
		opts.ResultCacheCapacity = c.ResultCacheCapacity
	}
	if c.BlockCacheCapacity > 0 {
		opts.BlockCacheCapacity = c.BlockCacheCapacity
	}
	opts.UseMmap = c.UseMmap
	return opts
}

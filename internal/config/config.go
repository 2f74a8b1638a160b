// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes the YAML document describing the volumes a
// process should open or format, plus the evaluator and allocator limits
// that tune the storage and query core: plain structs decoded with
// mapstructure and validated eagerly.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// VolumeConfig describes one volume to format or open at startup.
type VolumeConfig struct {
	Volid        int32  `mapstructure:"volid"         yaml:"volid"         json:"volid"`
	Path         string `mapstructure:"path"          yaml:"path"          json:"path"`
	Purpose      string `mapstructure:"purpose"       yaml:"purpose"       json:"purpose"`
	MaxNpages    int32  `mapstructure:"max_npages"    yaml:"max_npages"    json:"max_npages"`
	ExtendNpages int32  `mapstructure:"extend_npages" yaml:"extend_npages" json:"extend_npages"`
	// WriteRateCap, when non-zero, bounds format-time write throughput
	// (pages/sec); zero means unbounded.
	WriteRateCap int `mapstructure:"write_rate_cap,omitempty" yaml:"write_rate_cap,omitempty" json:"write_rate_cap,omitempty"`
}

// EvaluatorConfig tunes the predicate evaluator.
type EvaluatorConfig struct {
	MaxSQLDepth int `mapstructure:"max_sql_depth" yaml:"max_sql_depth" json:"max_sql_depth"`
}

// CacheConfig tunes the free-space cache / auto-extension policy.
type CacheConfig struct {
	// GenericPreallocThresholdPages is the GENERIC free-page aggregate floor
	// that triggers need_add_generic_volume / auto-extension.
	GenericPreallocThresholdPages int64 `mapstructure:"generic_prealloc_threshold_pages" yaml:"generic_prealloc_threshold_pages" json:"generic_prealloc_threshold_pages"`
	AutoExtendIncrementPages      int32 `mapstructure:"auto_extend_increment_pages"      yaml:"auto_extend_increment_pages"      json:"auto_extend_increment_pages"`
}

// Config is the top-level document.
type Config struct {
	Volumes   []VolumeConfig  `mapstructure:"volumes"   yaml:"volumes"   json:"volumes"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"  yaml:"evaluator" json:"evaluator"`
	Cache     CacheConfig     `mapstructure:"cache"      yaml:"cache"     json:"cache"`
}

// DefaultEvaluatorConfig carries the built-in max_sql_depth bound.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{MaxSQLDepth: 1000}
}

// DefaultCacheConfig sets a roughly-1MiB generic-volume preallocation
// threshold at a 16KiB page size.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		GenericPreallocThresholdPages: 64,
		AutoExtendIncrementPages:      4096,
	}
}

// Load reads and decodes a YAML config file, filling in documented
// defaults for any omitted tuning section.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return Decode(raw)
}

// Decode parses YAML bytes into a Config, applying defaults.
func Decode(raw []byte) (*Config, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := &Config{
		Evaluator: DefaultEvaluatorConfig(),
		Cache:     DefaultCacheConfig(),
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs with unknown purposes or impossible sizes,
// mirroring FORMAT_BAD_PARAMS checks the allocator would otherwise hit
// later and less informatively.
func (c *Config) Validate() error {
	seen := map[int32]bool{}
	for _, v := range c.Volumes {
		if seen[v.Volid] {
			return fmt.Errorf("config: duplicate volid %d", v.Volid)
		}
		seen[v.Volid] = true
		switch v.Purpose {
		case "PERM_DATA", "PERM_INDEX", "PERM_GENERIC", "PERM_TEMP", "TEMP_TEMP", "EITHER_TEMP":
		default:
			return fmt.Errorf("config: volume %d: unknown purpose %q", v.Volid, v.Purpose)
		}
		if v.MaxNpages <= 0 {
			return fmt.Errorf("config: volume %d: max_npages must be positive", v.Volid)
		}
		if v.ExtendNpages <= 0 {
			return fmt.Errorf("config: volume %d: extend_npages must be positive", v.Volid)
		}
		if v.ExtendNpages > v.MaxNpages {
			return fmt.Errorf("config: volume %d: extend_npages exceeds max_npages", v.Volid)
		}
	}
	if c.Evaluator.MaxSQLDepth <= 0 {
		return fmt.Errorf("config: evaluator.max_sql_depth must be positive")
	}
	return nil
}

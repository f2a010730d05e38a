package wasmengine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMeteringLimit is the production metering budget: roughly one
	// unit per guest function call, so this bounds how many function
	// calls (not instructions) a single invocation may make before it is
	// cancelled.
	DefaultMeteringLimit uint64 = 100_000_000_000

	// TestMeteringLimit is the smaller budget used in tests and local
	// development so a runaway guest fails fast.
	TestMeteringLimit uint64 = 10_000_000

	// DefaultStaticMemoryBoundPages reserves address space for a guest's
	// linear memory up front so it never has to move once mapped.
	DefaultStaticMemoryBoundPages uint32 = 0x4000

	// GuardPageBytes is the size of the unmapped region placed after a
	// guest's linear memory to turn small out-of-bounds accesses into
	// traps instead of silent corruption. wazero's public RuntimeConfig
	// exposes no explicit guard-page knob — WithMemoryMaxPages already
	// reserves the address space up front, which gives the same
	// trap-on-overrun behavior as an explicit guard page would — so this
	// constant documents the size the spec names rather than configuring
	// anything directly.
	GuardPageBytes uint32 = 0x1_0000
)

// Config holds the tunables for an Engine. Every field has a conservative
// default via DefaultConfig; nothing here is hardcoded into the engine
// itself, so a deployment can make these as generous or as strict as it
// needs.
type Config struct {
	// MeteringLimit is the budget to build a Meter with (NewMeter): a
	// guest call made under WithMeter is cancelled with
	// wasmerrors.ErrMeteringExceeded once it exceeds this cost.
	MeteringLimit uint64 `yaml:"metering_limit"`

	// CanonicalizeNaNs makes floating point operations produce a single
	// canonical NaN bit pattern, trading a little performance for
	// deterministic results across hosts.
	CanonicalizeNaNs bool `yaml:"canonicalize_nans"`

	// CachePath, if non-empty, is the directory wazero's on-disk
	// compilation cache persists compiled machine code to. Empty means
	// compilation results only live for the lifetime of the Engine.
	CachePath string `yaml:"cache_path"`

	// StaticMemoryBoundPages reserves this many 64KiB pages of address
	// space for a guest's linear memory, so growth never requires
	// relocating it.
	StaticMemoryBoundPages uint32 `yaml:"static_memory_bound_pages"`

	// ModuleCacheCapacity bounds how many compiled modules are kept
	// in memory at once.
	ModuleCacheCapacity int `yaml:"module_cache_capacity"`

	// InstancePoolSize is the number of warm instances pkg/instancepool
	// keeps ready per module. Zero disables pooling (an instance is
	// created per call and discarded).
	InstancePoolSize int `yaml:"instance_pool_size"`
}

// DefaultConfig returns the production defaults named in the data model.
func DefaultConfig() *Config {
	return &Config{
		MeteringLimit:          DefaultMeteringLimit,
		CanonicalizeNaNs:       true,
		StaticMemoryBoundPages: DefaultStaticMemoryBoundPages,
		ModuleCacheCapacity:    100,
		InstancePoolSize:       0,
	}
}

// TestConfig returns defaults sized for fast-failing unit tests.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.MeteringLimit = TestMeteringLimit
	return cfg
}

// LoadConfig reads a YAML config file from path, applies defaults via
// ApplyDefaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.ApplyDefaults()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs)
	}
	return cfg, nil
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wasmengine config error: %s: %s", e.Field, e.Message)
}

// Validate collects every configuration problem instead of stopping at
// the first one, so a caller sees the whole picture in one pass.
func (c *Config) Validate() []error {
	var errs []error
	if c.MeteringLimit == 0 {
		errs = append(errs, &ConfigError{Field: "MeteringLimit", Message: "must be positive"})
	}
	if c.StaticMemoryBoundPages == 0 {
		errs = append(errs, &ConfigError{Field: "StaticMemoryBoundPages", Message: "must be positive"})
	}
	if c.ModuleCacheCapacity < 0 {
		errs = append(errs, &ConfigError{Field: "ModuleCacheCapacity", Message: "must not be negative"})
	}
	if c.InstancePoolSize < 0 {
		errs = append(errs, &ConfigError{Field: "InstancePoolSize", Message: "must not be negative"})
	}
	return errs
}

// ApplyDefaults backfills MeteringLimit, StaticMemoryBoundPages and
// ModuleCacheCapacity from DefaultConfig when they are zero. The other
// fields (CanonicalizeNaNs, CachePath, InstancePoolSize) are left as they
// are, so an omitted canonicalize_nans reads as false.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.MeteringLimit == 0 {
		c.MeteringLimit = defaults.MeteringLimit
	}
	if c.StaticMemoryBoundPages == 0 {
		c.StaticMemoryBoundPages = defaults.StaticMemoryBoundPages
	}
	if c.ModuleCacheCapacity == 0 {
		c.ModuleCacheCapacity = defaults.ModuleCacheCapacity
	}
}

// WithMeteringLimit returns a copy with MeteringLimit set.
func (c *Config) WithMeteringLimit(limit uint64) *Config {
	cp := *c
	cp.MeteringLimit = limit
	return &cp
}

// WithCachePath returns a copy with CachePath set.
func (c *Config) WithCachePath(path string) *Config {
	cp := *c
	cp.CachePath = path
	return &cp
}

// WithModuleCacheCapacity returns a copy with ModuleCacheCapacity set.
func (c *Config) WithModuleCacheCapacity(capacity int) *Config {
	cp := *c
	cp.ModuleCacheCapacity = capacity
	return &cp
}

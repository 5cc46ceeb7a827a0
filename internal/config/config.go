package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spendguard/spendguard/internal/expense"
)

// Config is the top-level spendguard configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Policy    PolicyConfig    `yaml:"policy"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Harness   HarnessConfig   `yaml:"harness"`
	AuditDB   string          `yaml:"audit_db"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"` // Address to bind (default: 127.0.0.1)
	LogLevel string `yaml:"log_level"`
}

// PolicyConfig declares the spending-policy rules applied to every document.
// Loaded once per run and treated as immutable for its duration.
type PolicyConfig struct {
	Limits                map[string]float64 `yaml:"limits"`
	DefaultLimit          float64            `yaml:"default_limit"` // permissive fallback for uncategorized spend
	ProhibitedCategories  []string           `yaml:"prohibited_categories"`
	AllowedLanguages      []string           `yaml:"allowed_languages"`
	MinLegibility         float64            `yaml:"min_legibility"`
	HardOverageMultiplier float64            `yaml:"hard_overage_multiplier"`
}

// ExtractorConfig points at the external extraction agent.
type ExtractorConfig struct {
	Endpoint   string  `yaml:"endpoint"`
	TimeoutS   int     `yaml:"timeout_s"`
	RateDelayS float64 `yaml:"rate_delay_s"` // minimum pause between live agent calls
}

// HarnessConfig holds evaluation-harness settings.
type HarnessConfig struct {
	ResultsDir        string  `yaml:"results_dir"`
	Catalogue         string  `yaml:"catalogue"`
	PassRateThreshold float64 `yaml:"pass_rate_threshold"`
}

// Load reads and parses a spendguard config file. Defaults are applied
// before unmarshal so a sparse file still yields a runnable config, except
// that a declared limits section replaces the default set wholesale.
// Validate must still be called before any document is evaluated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	// yaml merges file keys into a pre-populated map, which would let a
	// partially declared limits section silently inherit default limits.
	// Unmarshal into an empty map so a declared limits section stands
	// alone and Validate can reject a partial one.
	cfg.Policy.Limits = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Policy.Limits == nil {
		cfg.Policy.Limits = Defaults().Policy.Limits
	}

	// Apply zero-value defaults after unmarshal
	if cfg.Policy.HardOverageMultiplier == 0 {
		cfg.Policy.HardOverageMultiplier = 2.0
	}
	if cfg.Harness.PassRateThreshold == 0 {
		cfg.Harness.PassRateThreshold = 0.8
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Policy: PolicyConfig{
			Limits: map[string]float64{
				string(expense.CategoryLodging):       400,
				string(expense.CategoryMeals):         75,
				string(expense.CategoryTransport):     500,
				string(expense.CategoryEntertainment): 200,
				string(expense.CategorySupplies):      300,
			},
			DefaultLimit:          1000,
			ProhibitedCategories:  []string{string(expense.CategoryAlcohol)},
			AllowedLanguages:      []string{"en"},
			MinLegibility:         0.5,
			HardOverageMultiplier: 2.0,
		},
		Extractor: ExtractorConfig{
			TimeoutS:   30,
			RateDelayS: 1,
		},
		Harness: HarnessConfig{
			ResultsDir:        "test_results",
			Catalogue:         "edge_cases.json",
			PassRateThreshold: 0.8,
		},
		AuditDB: "spendguard.db",
	}
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent. A broken policy fails
// here, before any document is evaluated; partial policy application is
// never attempted.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	p := c.Policy
	if p.MinLegibility < 0 || p.MinLegibility > 1 {
		return fmt.Errorf("min_legibility must be in [0,1], got %g", p.MinLegibility)
	}
	if p.HardOverageMultiplier < 1 {
		return fmt.Errorf("hard_overage_multiplier must be >= 1, got %g", p.HardOverageMultiplier)
	}
	if p.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got %g", p.DefaultLimit)
	}
	if len(p.AllowedLanguages) == 0 {
		return fmt.Errorf("allowed_languages must not be empty")
	}
	for cat, limit := range p.Limits {
		if string(expense.ParseCategory(cat)) != cat {
			return fmt.Errorf("limits: unknown category %q", cat)
		}
		if limit <= 0 {
			return fmt.Errorf("limits: %s must be positive, got %g", cat, limit)
		}
	}
	prohibited := make(map[string]bool, len(p.ProhibitedCategories))
	for _, cat := range p.ProhibitedCategories {
		if string(expense.ParseCategory(cat)) != cat {
			return fmt.Errorf("prohibited_categories: unknown category %q", cat)
		}
		prohibited[cat] = true
	}
	// Every reviewable category needs a declared limit; "other" falls back
	// to default_limit and prohibited categories are rejected outright.
	for _, cat := range []expense.Category{
		expense.CategoryLodging, expense.CategoryMeals, expense.CategoryTransport,
		expense.CategoryEntertainment, expense.CategorySupplies,
	} {
		if prohibited[string(cat)] {
			continue
		}
		if _, ok := p.Limits[string(cat)]; !ok {
			return fmt.Errorf("limits: missing required limit for category %q", cat)
		}
	}
	if c.Extractor.TimeoutS <= 0 {
		return fmt.Errorf("extractor timeout_s must be positive, got %d", c.Extractor.TimeoutS)
	}
	if c.Extractor.RateDelayS < 0 {
		return fmt.Errorf("extractor rate_delay_s must not be negative, got %g", c.Extractor.RateDelayS)
	}
	return nil
}

// PolicyVersion identifies the policy applied to a verdict. An explicit
// version string wins; otherwise the version is derived from a hash of the
// policy section so distinct policies stay distinguishable in the audit
// trail.
func (c *Config) PolicyVersion() string {
	if c.Version != "" {
		return c.Version
	}
	data, err := yaml.Marshal(c.Policy)
	if err != nil {
		return "unversioned"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// ExtractTimeout returns the per-call timeout against the extraction agent.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutS) * time.Second
}

// RateDelay returns the minimum pause between live extraction calls.
func (c *Config) RateDelay() time.Duration {
	return time.Duration(c.Extractor.RateDelayS * float64(time.Second))
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Store    StoreConfig    `yaml:"store"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Demand   DemandConfig   `yaml:"demand"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit is requests per minute per client; zero disables limiting.
	RateLimit int `yaml:"rate_limit"`
	// FrontierCacheSeconds bounds how long the frontier list is served from
	// memory; zero disables the cache.
	FrontierCacheSeconds int `yaml:"frontier_cache_seconds"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Store drivers.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Dir holds the per-scenario frontier files of the file driver.
	Dir string `yaml:"dir"`
}

// Oracle drivers.
const (
	OracleProcess = "process"
	OracleHTTP    = "http"
)

type OracleConfig struct {
	Driver    string   `yaml:"driver"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	Template  string   `yaml:"template"`
	ParamFile string   `yaml:"param_file"`
	Env       []string `yaml:"env"`
	URL       string   `yaml:"url"`
	Token     string   `yaml:"token"`
	// TimeoutSeconds bounds a single run; zero means unbounded.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type SweepConfig struct {
	Points    int                 `yaml:"points"`
	RunRoot   string              `yaml:"run_root"`
	Scenarios []scenario.Scenario `yaml:"scenarios"`
}

type PricingConfig struct {
	ExportDir     string  `yaml:"export_dir"`
	Commodity     string  `yaml:"commodity"`
	UnitScale     float64 `yaml:"unit_scale"`
	ZeroTolerance float64 `yaml:"zero_tolerance"`
	PeakThreshold float64 `yaml:"peak_threshold"`
}

type DemandConfig struct {
	ExportDir      string  `yaml:"export_dir"`
	PriceScale     float64 `yaml:"price_scale"`
	SpanRatio      float64 `yaml:"span_ratio"`
	SpanRTol       float64 `yaml:"span_rtol"`
	ProfileSamples int     `yaml:"profile_samples"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

func (c *Config) FrontierCacheTTL() time.Duration {
	return time.Duration(c.Server.FrontierCacheSeconds) * time.Second
}

// Defaults returns the configuration used when no file or environment
// overrides are given.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 8700,
			MetricsPort:          8701,
			RateLimit:            120,
			FrontierCacheSeconds: 30,
		},
		Hermes: HermesConfig{
			URL:  "nats://localhost:4222",
			Name: "pareto",
		},
		Store: StoreConfig{
			Driver: StoreFile,
			Dir:    "Results/Pareto",
		},
		Oracle: OracleConfig{
			Driver:   OracleProcess,
			Command:  "python",
			Args:     []string{"CaseStudy.py"},
			Template: "CaseStudy.dat",
			URL:      "http://localhost:8800",
		},
		Sweep: SweepConfig{
			Points:    5,
			RunRoot:   "Data",
			Scenarios: scenario.DefaultScenarios(),
		},
		Pricing: PricingConfig{
			ExportDir:     "Data",
			Commodity:     "ELECTRICITY",
			UnitScale:     1000,
			ZeroTolerance: 1e-5,
			PeakThreshold: 400,
		},
		Demand: DemandConfig{
			ExportDir:      "Data",
			PriceScale:     1000,
			SpanRatio:      1.1,
			SpanRTol:       1e-6,
			ProfileSamples: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the sweep cannot run with.
func (c *Config) Validate() error {
	if c.Sweep.Points < 2 {
		return fmt.Errorf("sweep.points must be at least 2, got %d", c.Sweep.Points)
	}
	if len(c.Sweep.Scenarios) == 0 {
		return fmt.Errorf("sweep.scenarios must not be empty")
	}
	seen := make(map[string]bool, len(c.Sweep.Scenarios))
	for _, s := range c.Sweep.Scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
		if strings.ContainsAny(s.Tag, "/\\. *>") {
			return fmt.Errorf("scenario tag %q must not contain path or subject separators", s.Tag)
		}
		if seen[s.Tag] {
			return fmt.Errorf("duplicate scenario tag %q", s.Tag)
		}
		seen[s.Tag] = true
	}
	switch c.Store.Driver {
	case StoreFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file driver")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Oracle.Driver {
	case OracleProcess:
		if c.Oracle.Command == "" || c.Oracle.Template == "" {
			return fmt.Errorf("oracle.command and oracle.template are required for the process driver")
		}
	case OracleHTTP:
		if c.Oracle.URL == "" {
			return fmt.Errorf("oracle.url is required for the http driver")
		}
	default:
		return fmt.Errorf("unknown oracle driver %q", c.Oracle.Driver)
	}
	if c.Server.FrontierCacheSeconds < 0 {
		return fmt.Errorf("server.frontier_cache_seconds must not be negative")
	}
	if c.Oracle.TimeoutSeconds < 0 {
		return fmt.Errorf("oracle.timeout_seconds must not be negative")
	}
	if c.Pricing.UnitScale <= 0 {
		return fmt.Errorf("pricing.unit_scale must be positive, got %g", c.Pricing.UnitScale)
	}
	if c.Pricing.ZeroTolerance < 0 {
		return fmt.Errorf("pricing.zero_tolerance must not be negative")
	}
	if c.Demand.PriceScale <= 0 {
		return fmt.Errorf("demand.price_scale must be positive, got %g", c.Demand.PriceScale)
	}
	if c.Demand.SpanRTol < 0 {
		return fmt.Errorf("demand.span_rtol must not be negative")
	}
	if c.Demand.ProfileSamples < 2 {
		return fmt.Errorf("demand.profile_samples must be at least 2, got %d", c.Demand.ProfileSamples)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PARETO_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PARETO_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PARETO_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PARETO_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PARETO_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("PARETO_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("PARETO_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("PARETO_ORACLE_DRIVER"); v != "" {
		cfg.Oracle.Driver = v
	}
	if v := os.Getenv("PARETO_ORACLE_COMMAND"); v != "" {
		cfg.Oracle.Command = v
	}
	if v := os.Getenv("PARETO_ORACLE_TEMPLATE"); v != "" {
		cfg.Oracle.Template = v
	}
	if v := os.Getenv("PARETO_ORACLE_URL"); v != "" {
		cfg.Oracle.URL = v
	}
	if v := os.Getenv("PARETO_ORACLE_TOKEN"); v != "" {
		cfg.Oracle.Token = v
	}
	if v := os.Getenv("PARETO_SWEEP_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.Points = n
		}
	}
	if v := os.Getenv("PARETO_RUN_ROOT"); v != "" {
		cfg.Sweep.RunRoot = v
	}
	if v := os.Getenv("PARETO_EXPORT_DIR"); v != "" {
		cfg.Pricing.ExportDir = v
		cfg.Demand.ExportDir = v
	}
	if v := os.Getenv("PARETO_PEAK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pricing.PeakThreshold = f
		}
	}
	if v := os.Getenv("PARETO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PARETO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

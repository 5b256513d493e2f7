// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Runner    RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMConfig configures the generation service client.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryTime      time.Duration `mapstructure:"max_retry_time" yaml:"max_retry_time"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
}

// WorkspaceConfig bounds the relevant-file working set.
type WorkspaceConfig struct {
	Root              string   `mapstructure:"root" yaml:"root"`
	MaxFileSize       int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	MaxSuggestedFiles int      `mapstructure:"max_suggested_files" yaml:"max_suggested_files"`
	MaxTreeEntries    int      `mapstructure:"max_tree_entries" yaml:"max_tree_entries"`
	ExcludeDirs       []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
}

// ServerConfig describes the dev server the tests run against.
type ServerConfig struct {
	Command        string        `mapstructure:"command" yaml:"command"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// RunnerConfig describes the one-shot test-runner process.
type RunnerConfig struct {
	Command    string        `mapstructure:"command" yaml:"command"`
	TestDir    string        `mapstructure:"test_dir" yaml:"test_dir"`
	OutputDir  string        `mapstructure:"output_dir" yaml:"output_dir"`
	ReportFile string        `mapstructure:"report_file" yaml:"report_file"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PipelineConfig bounds the outer and inner loops.
type PipelineConfig struct {
	MaxAttempts    int  `mapstructure:"max_attempts" yaml:"max_attempts"`
	MaxTestRetries int  `mapstructure:"max_test_retries" yaml:"max_test_retries"`
	VisualEnabled  bool `mapstructure:"visual_enabled" yaml:"visual_enabled"`
	StartServer    bool `mapstructure:"start_server" yaml:"start_server"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "suture")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- LLM --
	v.SetDefault("llm.fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.powerful_model", "gemini-2.5-pro")
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.max_retry_time", "2m")
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.burst", 2)

	// -- Workspace --
	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.max_file_size", 64*1024)
	v.SetDefault("workspace.max_suggested_files", 10)
	v.SetDefault("workspace.max_tree_entries", 400)
	v.SetDefault("workspace.exclude_dirs", []string{
		"node_modules", ".git", "dist", "build", "out", "coverage",
		".next", ".cache", "vendor", "__pycache__",
	})

	// -- Server --
	v.SetDefault("server.command", "npm run dev")
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.startup_timeout", "60s")
	v.SetDefault("server.poll_interval", "1s")
	v.SetDefault("server.shutdown_grace", "5s")

	// -- Runner --
	v.SetDefault("runner.command", "npx playwright test")
	v.SetDefault("runner.test_dir", "generated-tests")
	v.SetDefault("runner.output_dir", "test-results")
	v.SetDefault("runner.report_file", "test-results/report.json")
	v.SetDefault("runner.timeout", "5m")

	// -- Pipeline --
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.max_test_retries", 2)
	v.SetDefault("pipeline.visual_enabled", true)
	v.SetDefault("pipeline.start_server", true)
}

// NewFromViper creates a new configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Sensitive data comes from the environment, never the config file.
	_ = v.BindEnv("llm.api_key", "SUTURE_LLM_API_KEY", "GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be a positive integer")
	}
	if c.Pipeline.MaxTestRetries < 0 {
		return fmt.Errorf("pipeline.max_test_retries must not be negative")
	}
	if c.Workspace.MaxFileSize <= 0 {
		return fmt.Errorf("workspace.max_file_size must be a positive integer")
	}
	if c.Server.StartupTimeout <= 0 || c.Server.PollInterval <= 0 {
		return fmt.Errorf("server.startup_timeout and server.poll_interval must be positive durations")
	}
	if c.Server.PollInterval >= c.Server.StartupTimeout {
		return fmt.Errorf("server.poll_interval must be shorter than server.startup_timeout")
	}
	if c.Runner.Command == "" {
		return fmt.Errorf("runner.command is a required configuration field")
	}
	return nil
}

// global holds the active configuration for command wiring.
var global atomic.Pointer[Config]

// Set stores cfg as the process-wide configuration.
func Set(cfg *Config) { global.Store(cfg) }

// Get returns the active configuration, or a default-initialized one if Set
// has not been called (tests, early startup).
func Get() *Config {
	if cfg := global.Load(); cfg != nil {
		return cfg
	}
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		// Defaults always validate; reaching here is a programming error.
		panic(err)
	}
	return cfg
}

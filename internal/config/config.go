package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sfarHD14/cmdstanpy/internal/fileutil"
	"github.com/spf13/viper"
)

// Config holds process-wide settings for the CmdStan runner.
type Config struct {
	// CmdStanHome is the directory CmdStan releases are installed into.
	CmdStanHome string
	// WorkDir is the default working directory for engine processes.
	WorkDir string
	// OutputDir is where per-run output CSV files are written.
	OutputDir string
	// LogFormat is "text" or "json".
	LogFormat string
	// Debug enables debug-level logging.
	Debug bool
	// MaxParallel caps the number of concurrently running chains.
	// Zero means up to the number of host CPUs.
	MaxParallel int
}

var cache = &configCache{}

type configCache struct {
	instance *Config
	mu       sync.RWMutex
}

func (cc *configCache) get() *Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.instance
}

func (cc *configCache) set(cfg *Config) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.instance = cfg
}

// Get returns the cached configuration, loading it on first use.
func Get() *Config {
	cfg := cache.get()
	if cfg != nil {
		return cfg
	}
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from CMDSTAN_* environment variables with
// sensible defaults and caches the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("cmdstan")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	_ = v.BindEnv("home", "CMDSTAN_HOME")
	_ = v.BindEnv("workDir", "CMDSTAN_WORK_DIR")
	_ = v.BindEnv("outputDir", "CMDSTAN_OUTPUT_DIR")
	_ = v.BindEnv("logFormat", "CMDSTAN_LOG_FORMAT")
	_ = v.BindEnv("debug", "CMDSTAN_DEBUG")
	_ = v.BindEnv("maxParallel", "CMDSTAN_MAX_PARALLEL")

	home := fileutil.MustGetUserHomeDir()

	v.SetDefault("home", filepath.Join(home, ".cmdstan"))
	v.SetDefault("workDir", "")
	v.SetDefault("outputDir", "")
	v.SetDefault("logFormat", "text")
	v.SetDefault("debug", false)
	v.SetDefault("maxParallel", 0)

	v.AutomaticEnv()

	cfg := &Config{
		CmdStanHome: v.GetString("home"),
		WorkDir:     v.GetString("workDir"),
		OutputDir:   v.GetString("outputDir"),
		LogFormat:   v.GetString("logFormat"),
		Debug:       v.GetBool("debug"),
		MaxParallel: v.GetInt("maxParallel"),
	}

	cache.set(cfg)
	return cfg, nil
}

// DefaultParallel resolves the effective concurrency cap: the configured
// MaxParallel when set, otherwise the host CPU count.
func (cfg *Config) DefaultParallel() int {
	if cfg.MaxParallel > 0 {
		return cfg.MaxParallel
	}
	return runtime.NumCPU()
}

// Package config provides configuration management for the unit engine.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers.
type Provider interface {
	// GetConfig returns the current engine configuration.
	GetConfig() *Settings
	// SetConfig sets the engine configuration.
	SetConfig(c *Settings)
	// InitConfig initializes the engine configuration from disk/env.
	InitConfig() *Settings
	// SetConfigFilePath sets the configuration file path.
	SetConfigFilePath(p string)
}

// defaultConfigProvider implements the Provider interface.
type defaultConfigProvider struct {
	cfg *Settings
}

// NewDefaultConfigProvider creates a new default config provider.
func NewDefaultConfigProvider() Provider {
	return &defaultConfigProvider{}
}

var defaultProvider = NewDefaultConfigProvider()
var cfg *Settings

// Default configuration values for the unit engine.
const (
	// DefaultUserMode selects the user (session) bus over the system bus.
	DefaultUserMode = false
	// DefaultVerbose controls debug-level logging.
	DefaultVerbose = false
	// DefaultGCInterval is how often the GC queue is swept absent other triggers.
	DefaultGCInterval = 30 * time.Second
	// DefaultGCMarkerStride is added to the garbage collector's marker
	// (gc.Collector) on each sweep.
	DefaultGCMarkerStride = 1
	// DefaultCollectMode is the collect_mode new units are created with.
	DefaultCollectMode = "inactive"
	// DefaultStartLimitBurst is the number of inactive->activating transitions
	// allowed within DefaultStartLimitInterval before start_limit_action fires.
	DefaultStartLimitBurst = 5
	// DefaultStartLimitInterval is the token bucket's refill window.
	DefaultStartLimitInterval = 10 * time.Second
	// DefaultAutoStopInterval rate-limits stop-when-unneeded job submissions.
	DefaultAutoStopInterval = 10 * time.Second
	// DefaultAutoStopBurst is the auto-stop token bucket's burst size.
	DefaultAutoStopBurst = 1
	// DefaultJobTimeout is the default for Settings.JobTimeout. No engine
	// component reads that setting; installed jobs carry no timeout.
	DefaultJobTimeout = 90 * time.Second
	// DefaultSerializeStatePath is where Manager.Serialize writes by default.
	DefaultSerializeStatePath = "/run/unitengine/state"
)

// Settings represents the configuration for the unit engine.
type Settings struct {
	// UserMode selects a user D-Bus session connection instead of the system bus.
	UserMode bool `yaml:"userMode" mapstructure:"userMode"`
	// Verbose enables debug-level logging across the engine.
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// GCInterval is the cadence at which the GC queue is swept when idle.
	GCInterval time.Duration `yaml:"gcInterval" mapstructure:"gcInterval"`
	// GCMarkerStride is the per-sweep increment applied to the mark counter.
	GCMarkerStride uint64 `yaml:"gcMarkerStride" mapstructure:"gcMarkerStride"`
	// DefaultCollectMode is the collect_mode assigned to units that don't override it.
	DefaultCollectMode string `yaml:"defaultCollectMode" mapstructure:"defaultCollectMode"`

	// StartLimitBurst is the default start_limit.burst for new units.
	StartLimitBurst uint `yaml:"startLimitBurst" mapstructure:"startLimitBurst"`
	// StartLimitInterval is the default start_limit.interval for new units.
	StartLimitInterval time.Duration `yaml:"startLimitInterval" mapstructure:"startLimitInterval"`
	// AutoStopInterval is the default auto_stop_ratelimit.interval for new units.
	AutoStopInterval time.Duration `yaml:"autoStopInterval" mapstructure:"autoStopInterval"`
	// AutoStopBurst is the default auto_stop_ratelimit.burst for new units.
	AutoStopBurst uint `yaml:"autoStopBurst" mapstructure:"autoStopBurst"`

	// JobTimeout is the configured job_timeout. It is loaded and carried here
	// only: neither the manager nor the job engine applies a timeout to jobs.
	JobTimeout time.Duration `yaml:"jobTimeout" mapstructure:"jobTimeout"`

	// SerializeStatePath is the path Manager.Serialize/Deserialize use by default
	// across a reload/reexec round-trip.
	SerializeStatePath string `yaml:"serializeStatePath" mapstructure:"serializeStatePath"`
}

func (p *defaultConfigProvider) SetConfig(c *Settings) {
	p.cfg = c
}

func (p *defaultConfigProvider) GetConfig() *Settings {
	return p.cfg
}

func (p *defaultConfigProvider) SetConfigFilePath(path string) {
	viper.SetConfigFile(path)
}

func (p *defaultConfigProvider) InitConfig() *Settings {
	p.cfg = initConfigInternal()
	return p.cfg
}

// SetConfig sets the engine configuration on the package-level default provider.
func SetConfig(c *Settings) {
	defaultProvider.SetConfig(c)
	cfg = c
}

// GetConfig returns the current engine configuration.
func GetConfig() *Settings {
	return defaultProvider.GetConfig()
}

// SetConfigFilePath sets the configuration file path.
func SetConfigFilePath(p string) {
	defaultProvider.SetConfigFilePath(p)
}

// InitConfig initializes the engine configuration.
func InitConfig() *Settings {
	cfg = defaultProvider.InitConfig()
	return cfg
}

// Defaults returns a Settings populated with the package defaults, useful for
// tests and for seeding viper before a config file is read.
func Defaults() *Settings {
	return &Settings{
		UserMode:           DefaultUserMode,
		Verbose:            DefaultVerbose,
		GCInterval:         DefaultGCInterval,
		GCMarkerStride:     DefaultGCMarkerStride,
		DefaultCollectMode: DefaultCollectMode,
		StartLimitBurst:    DefaultStartLimitBurst,
		StartLimitInterval: DefaultStartLimitInterval,
		AutoStopInterval:   DefaultAutoStopInterval,
		AutoStopBurst:      DefaultAutoStopBurst,
		JobTimeout:         DefaultJobTimeout,
		SerializeStatePath: DefaultSerializeStatePath,
	}
}

func initConfigInternal() *Settings {
	cfg := Defaults()

	viper.SetDefault("userMode", DefaultUserMode)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("gcInterval", DefaultGCInterval)
	viper.SetDefault("gcMarkerStride", DefaultGCMarkerStride)
	viper.SetDefault("defaultCollectMode", DefaultCollectMode)
	viper.SetDefault("startLimitBurst", DefaultStartLimitBurst)
	viper.SetDefault("startLimitInterval", DefaultStartLimitInterval)
	viper.SetDefault("autoStopInterval", DefaultAutoStopInterval)
	viper.SetDefault("autoStopBurst", DefaultAutoStopBurst)
	viper.SetDefault("jobTimeout", DefaultJobTimeout)
	viper.SetDefault("serializeStatePath", DefaultSerializeStatePath)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(os.ExpandEnv("$HOME/.config/unitengine"))
	viper.AddConfigPath("/etc/unitengine")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		panic(err)
	}

	return cfg
}

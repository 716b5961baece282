package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"

	// DefaultLogLevel defines a default log level as INFO.
	DefaultLogLevel = "info"
)

// NOTE: Most of the structs & relevant comments + the
// default configuration options were used to manually
// generate the config.toml. Please reflect any changes
// made here in the defaultConfigTemplate constant in
// config/toml.go
// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultAnomaDir  = ".anoma"
	DefaultConfigDir = "config"
	DefaultDataDir   = "data"

	DefaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(DefaultConfigDir, DefaultConfigFileName)
)

// Config defines the top level configuration for an anoma node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	Mempool         *MempoolConfig         `mapstructure:"mempool"`
	Executor        *ExecutorConfig        `mapstructure:"executor"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for an anoma node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Mempool:         DefaultMempoolConfig(),
		Executor:        DefaultExecutorConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Mempool:         TestMempoolConfig(),
		Executor:        TestExecutorConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Mempool.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [mempool] section: %w", err)
	}
	if err := cfg.Executor.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [executor] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for an anoma node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// The name of this node, used to scope events and committed state
	NodeID string `mapstructure:"node_id"`

	// Database backend: goleveldb | badgerdb | memdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// Round to start committing at when the commit store is empty
	InitialRound uint64 `mapstructure:"initial_round"`
}

// DefaultBaseConfig returns a default base configuration for an anoma node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		NodeID:       defaultNodeID,
		DBBackend:    "goleveldb",
		DBPath:       DefaultDataDir,
		LogLevel:     DefaultLogLevel,
		LogFormat:    LogFormatPlain,
		InitialRound: 0,
	}
}

// TestBaseConfig returns a base configuration for testing an anoma node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.NodeID = "test-node"
	cfg.DBBackend = "memdb"
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	if cfg.NodeID == "" {
		return errors.New("node_id can't be empty")
	}
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	return nil
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

//-----------------------------------------------------------------------------
// MempoolConfig

// MempoolConfig defines the configuration options for the transaction
// coordinator
type MempoolConfig struct {
	// Maximum number of queued coordinator messages. Submissions block once
	// the mailbox is full.
	MailboxCapacity int `mapstructure:"mailbox_capacity"`

	// Number of finalized transaction ids remembered to tell a late
	// duplicate completion apart from a completion for an id that was never
	// admitted.
	FinalizedCacheSize int `mapstructure:"finalized_cache_size"`
}

// DefaultMempoolConfig returns a default configuration for the transaction
// coordinator
func DefaultMempoolConfig() *MempoolConfig {
	return &MempoolConfig{
		MailboxCapacity:    1024,
		FinalizedCacheSize: 10000,
	}
}

// TestMempoolConfig returns a configuration for testing the transaction
// coordinator
func TestMempoolConfig() *MempoolConfig {
	cfg := DefaultMempoolConfig()
	cfg.MailboxCapacity = 64
	cfg.FinalizedCacheSize = 100
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *MempoolConfig) ValidateBasic() error {
	if cfg.MailboxCapacity <= 0 {
		return errors.New("mailbox_capacity must be positive")
	}
	if cfg.FinalizedCacheSize <= 0 {
		return errors.New("finalized_cache_size must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ExecutorConfig

// ExecutorConfig defines the configuration options for the execution engine
type ExecutorConfig struct {
	// Number of workers running transaction code concurrently
	Workers int `mapstructure:"workers"`
}

// DefaultExecutorConfig returns a default configuration for the execution
// engine
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		Workers: 4,
	}
}

// TestExecutorConfig returns a configuration for testing the execution engine
func TestExecutorConfig() *ExecutorConfig {
	cfg := DefaultExecutorConfig()
	cfg.Workers = 2
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ExecutorConfig) ValidateBasic() error {
	if cfg.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Maximum number of simultaneous connections.
	// If you want to accept a larger number than the default, make sure
	// you increase your OS limits.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`

	// PyroscopeURL is the pyroscope url used to establish a connection with a
	// pyroscope continuous profiling server.
	PyroscopeURL string `mapstructure:"pyroscope_url"`

	// PyroscopeTrace enables adding trace data to pyroscope profiling.
	PyroscopeTrace bool `mapstructure:"pyroscope_trace"`

	// PyroscopeProfileTypes is a list of profile types to be traced with
	// pyroscope. Requires tracing to be enabled.
	PyroscopeProfileTypes []string `mapstructure:"pyroscope_profile_types"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "anoma",
		PyroscopeURL:         "",
		PyroscopeTrace:       false,
		PyroscopeProfileTypes: []string{
			"cpu",
			"alloc_objects",
			"inuse_objects",
			"goroutines",
			"mutex_count",
			"mutex_duration",
			"block_count",
			"block_duration",
		},
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	if cfg.PyroscopeTrace && cfg.PyroscopeURL == "" {
		return errors.New("pyroscope_trace requires pyroscope_url")
	}
	return nil
}

func (cfg *InstrumentationConfig) IsPrometheusEnabled() bool {
	return cfg.Prometheus && cfg.PrometheusListenAddr != ""
}

func (cfg *InstrumentationConfig) IsPyroscopeEnabled() bool {
	return cfg.PyroscopeURL != ""
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// NodeID

var defaultNodeID = getDefaultNodeID()

// getDefaultNodeID returns a default node id, which is the host name. If
// runtime fails to get the host name, "anonymous" will be returned.
func getDefaultNodeID() string {
	id, err := os.Hostname()
	if err != nil {
		id = "anonymous"
	}
	return id
}

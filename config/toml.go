package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"

	cmtos "github.com/Mukzid/anoma/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := cmtos.EnsureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := cmtos.EnsureDir(filepath.Join(rootDir, DefaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := cmtos.EnsureDir(filepath.Join(rootDir, DefaultDataDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)

	// Write default config file if missing.
	if !cmtos.FileExists(configFilePath) {
		writeDefaultConfigFile(configFilePath)
	}
}

func writeDefaultConfigFile(configFilePath string) {
	WriteConfigFile(configFilePath, DefaultConfig())
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	cmtos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.anoma" by default, but could be changed via $ANOMAHOME env variable
# or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node, used to scope events and
# committed state
node_id = "{{ .BaseConfig.NodeID }}"

# Database backend: goleveldb | badgerdb | memdb
# * goleveldb (github.com/syndtr/goleveldb)
#   - stable
# * badgerdb (github.com/dgraph-io/badger)
#   - EXPERIMENTAL
# * memdb
#   - in-memory, for testing only
db_backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

# Round to start committing at when the commit store is empty
initial_round = {{ .BaseConfig.InitialRound }}

#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

#######################################################
###          Mempool Configuration Options          ###
#######################################################
[mempool]

# Maximum number of queued coordinator messages. Submissions block once the
# mailbox is full.
mailbox_capacity = {{ .Mempool.MailboxCapacity }}

# Number of finalized transaction ids remembered to tell a late duplicate
# completion apart from a completion for an id that was never admitted.
finalized_cache_size = {{ .Mempool.FinalizedCacheSize }}

#######################################################
###         Executor Configuration Options          ###
#######################################################
[executor]

# Number of workers running transaction code concurrently
workers = {{ .Executor.Workers }}

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus_listen_addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# If you want to accept a larger number than the default, make sure
# you increase your OS limits.
# 0 - unlimited.
max_open_connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"

# The URL of the pyroscope instance to use for continuous profiling.
# If empty, profiling is disabled.
pyroscope_url = "{{ .Instrumentation.PyroscopeURL }}"

# pyroscope_trace enables adding trace data to pyroscope profiling.
pyroscope_trace = {{ .Instrumentation.PyroscopeTrace }}

# pyroscope_profile_types is a list of profile types to be traced with
# pyroscope. Requires tracing to be enabled.
pyroscope_profile_types = ["{{ StringsJoin .Instrumentation.PyroscopeProfileTypes "\", \"" }}"]
`

package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukzid/anoma/config"
)

func ensureFiles(t *testing.T, rootDir string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(rootDir, f)
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestEnsureRoot(t *testing.T) {
	require := require.New(t)

	tmpDir := t.TempDir()

	// create root dir
	config.EnsureRoot(tmpDir)

	// make sure config is set properly
	data, err := os.ReadFile(filepath.Join(tmpDir, config.DefaultConfigDir, config.DefaultConfigFileName))
	require.NoError(err)

	assertValidConfig(t, string(data))

	ensureFiles(t, tmpDir, config.DefaultDataDir)
}

func TestEnsureRootKeepsExistingConfig(t *testing.T) {
	tmpDir := t.TempDir()

	config.EnsureRoot(tmpDir)

	path := filepath.Join(tmpDir, config.DefaultConfigDir, config.DefaultConfigFileName)
	custom := []byte("# edited by hand\n")
	require.NoError(t, os.WriteFile(path, custom, 0o644))

	config.EnsureRoot(tmpDir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, data)
}

func TestWrittenConfigIsParseable(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.NodeID = "toml-test"
	cfg.Mempool.MailboxCapacity = 42
	cfg.Instrumentation.PyroscopeProfileTypes = []string{"cpu", "goroutines"}

	path := filepath.Join(tmpDir, "config.toml")
	config.WriteConfigFile(path, cfg)

	var got map[string]interface{}
	_, err := toml.DecodeFile(path, &got)
	require.NoError(t, err)

	assert.Equal(t, "toml-test", got["node_id"])

	mp, ok := got["mempool"].(map[string]interface{})
	require.True(t, ok, "missing [mempool] table")
	assert.Equal(t, int64(42), mp["mailbox_capacity"])

	inst, ok := got["instrumentation"].(map[string]interface{})
	require.True(t, ok, "missing [instrumentation] table")
	assert.Equal(t, []interface{}{"cpu", "goroutines"}, inst["pyroscope_profile_types"])
}

func TestConfigTemplateReflectsChanges(t *testing.T) {
	// values must be templated and not hardcoded
	testCases := []struct {
		name    string
		mutate  func(cfg *config.Config)
		expLine string
	}{
		{"workers", func(cfg *config.Config) { cfg.Executor.Workers = 7 }, "workers = 7"},
		{"db backend", func(cfg *config.Config) { cfg.DBBackend = "badgerdb" }, `db_backend = "badgerdb"`},
		{"initial round", func(cfg *config.Config) { cfg.InitialRound = 99 }, "initial_round = 99"},
		{"prometheus", func(cfg *config.Config) { cfg.Instrumentation.Prometheus = true }, "prometheus = true"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)

			path := filepath.Join(t.TempDir(), fmt.Sprintf("config-%s.toml", tc.name))
			config.WriteConfigFile(path, cfg)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), tc.expLine)
		})
	}
}

func assertValidConfig(t *testing.T, configFile string) {
	t.Helper()
	// list of words we expect in the config
	var elems = []string{
		"node_id",
		"db_backend",
		"db_dir",
		"log_level",
		"log_format",
		"initial_round",
		"mailbox_capacity",
		"finalized_cache_size",
		"workers",
		"prometheus",
		"namespace",
		"pyroscope",
	}
	for _, e := range elems {
		assert.Contains(t, configFile, e)
	}
}

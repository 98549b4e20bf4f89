package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODELPLANE_HOST", "MODELPLANE_PORT", "MODELPLANE_MODELS_DIR",
		"MODELPLANE_CATALOG", "MODELPLANE_REGISTRY", "MODELPLANE_ENGINE_URL",
		"MODELPLANE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultEngineURL, cfg.Chat.EngineURL)
	assert.Equal(t, DefaultMaxActivePrompts, cfg.Chat.MaxActivePrompts)
	assert.Equal(t, DefaultWorkers, cfg.Chat.Workers)
	assert.Equal(t, DefaultPreamble, cfg.Chat.Preamble)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.Paths.ModelsDir)
	assert.NotEmpty(t, cfg.Paths.CatalogPath)
	assert.NotEmpty(t, cfg.Paths.RegistryPath)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 0.0.0.0
  port: 9001
paths:
  models_dir: /srv/models
chat:
  engine_url: http://localhost:9090
  max_active_prompts: 3
log_level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/srv/models", cfg.Paths.ModelsDir)
	assert.Equal(t, "http://localhost:9090", cfg.Chat.EngineURL)
	assert.Equal(t, 3, cfg.Chat.MaxActivePrompts)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Settings absent from the file keep their defaults.
	assert.Equal(t, DefaultWorkers, cfg.Chat.Workers)
	assert.Equal(t, DefaultPreamble, cfg.Chat.Preamble)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0644))

	t.Setenv("MODELPLANE_PORT", "7777")
	t.Setenv("MODELPLANE_HOST", "127.0.0.1")
	t.Setenv("MODELPLANE_ENGINE_URL", "http://localhost:1234")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "http://localhost:1234", cfg.Chat.EngineURL)
}

func TestLoad_BadPortEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODELPLANE_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoad_ClampsNonPositiveLimits(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chat:
  max_active_prompts: -1
  workers: 0
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxActivePrompts, cfg.Chat.MaxActivePrompts)
	assert.Equal(t, DefaultWorkers, cfg.Chat.Workers)
}

func TestListenAddrAndServerURL(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 8001}}
	assert.Equal(t, "localhost:8001", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:8001", cfg.ServerURL())
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		Paths: PathsConfig{
			ModelsDir:    filepath.Join(base, "models"),
			RegistryPath: filepath.Join(base, "config", "current_model.json"),
		},
	}

	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(filepath.Join(base, "config"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// The readonly models directory is left to its owner.
	_, err = os.Stat(cfg.Paths.ModelsDir)
	assert.True(t, os.IsNotExist(err))
}

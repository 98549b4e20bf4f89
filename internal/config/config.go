// Package config provides configuration management for modelplane.
//
// Configuration resolves in three layers: built-in defaults, an optional
// YAML config file, and MODELPLANE_* environment variable overrides. The
// hard-coded host paths of earlier deployments are deliberately absent;
// the model directory, catalog path, and registry path are all inputs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerHost is the default listen address. The daemon binds
	// to localhost by default so only local clients can reach it.
	DefaultServerHost = "localhost"

	// DefaultServerPort is the default listen port.
	DefaultServerPort = 8001

	// DefaultConfigDir is the per-user data directory name, created in
	// the user's home directory.
	DefaultConfigDir = ".modelplane"

	// DefaultMaxActivePrompts is the per-session ceiling on concurrent
	// generations.
	DefaultMaxActivePrompts = 5

	// DefaultWorkers is the size of the pool running blocking inference
	// calls.
	DefaultWorkers = 2

	// DefaultEngineURL is the llama.cpp-compatible inference server the
	// chat engine talks to.
	DefaultEngineURL = "http://localhost:8080"

	// DefaultPreamble anchors every chat session's history.
	DefaultPreamble = "You are a helpful, knowledgeable, and professional AI assistant. " +
		"Provide clear, accurate, and well-structured responses. " +
		"Always maintain a respectful and patient tone. " +
		"Adapt your communication style to match the user's language and level of expertise."
)

// Config is the complete daemon configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `yaml:"server"`

	// Paths holds filesystem locations the daemon depends on.
	Paths PathsConfig `yaml:"paths"`

	// Chat holds chat-engine settings.
	Chat ChatConfig `yaml:"chat"`

	// LogLevel is the minimum log level ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Host is the listen address ("localhost" or "0.0.0.0").
	Host string `yaml:"host"`

	// Port is the TCP port for the management, download, and chat surfaces.
	Port int `yaml:"port"`
}

// PathsConfig locates the daemon's on-disk collaborators.
type PathsConfig struct {
	// ModelsDir is the readonly directory the model loader reads from.
	// The switch endpoint resolves model names against this directory.
	ModelsDir string `yaml:"models_dir"`

	// CatalogPath is the model catalog JSON document.
	CatalogPath string `yaml:"catalog_path"`

	// RegistryPath is the active-model record location.
	RegistryPath string `yaml:"registry_path"`
}

// ChatConfig controls the chat session engine.
type ChatConfig struct {
	// EngineURL is the base URL of the inference server.
	EngineURL string `yaml:"engine_url"`

	// Preamble is the system entry anchoring each session's history.
	Preamble string `yaml:"preamble"`

	// MaxActivePrompts caps concurrent generations per session.
	MaxActivePrompts int `yaml:"max_active_prompts"`

	// Workers bounds concurrent blocking calls into the inference engine.
	Workers int `yaml:"workers"`
}

// NewDefaultConfig creates a Config with built-in defaults.
//
// Data lives under ~/.modelplane (falling back to /tmp when the home
// directory cannot be determined):
//
//	~/.modelplane/models                     readonly model directory
//	~/.modelplane/models.json                catalog
//	~/.modelplane/config/current_model.json  active-model registry
func NewDefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	dataDir := filepath.Join(homeDir, DefaultConfigDir)

	return &Config{
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		Paths: PathsConfig{
			ModelsDir:    filepath.Join(dataDir, "models"),
			CatalogPath:  filepath.Join(dataDir, "models.json"),
			RegistryPath: filepath.Join(dataDir, "config", "current_model.json"),
		},
		Chat: ChatConfig{
			EngineURL:        DefaultEngineURL,
			Preamble:         DefaultPreamble,
			MaxActivePrompts: DefaultMaxActivePrompts,
			Workers:          DefaultWorkers,
		},
		LogLevel: "info",
	}
}

// Load builds the effective configuration.
//
// path may be empty, in which case only defaults and environment overrides
// apply. A named config file that does not exist is an error; so is
// malformed YAML.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Chat.MaxActivePrompts <= 0 {
		cfg.Chat.MaxActivePrompts = DefaultMaxActivePrompts
	}
	if cfg.Chat.Workers <= 0 {
		cfg.Chat.Workers = DefaultWorkers
	}

	return cfg, nil
}

// applyEnv overlays MODELPLANE_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("MODELPLANE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MODELPLANE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MODELPLANE_MODELS_DIR"); v != "" {
		c.Paths.ModelsDir = v
	}
	if v := os.Getenv("MODELPLANE_CATALOG"); v != "" {
		c.Paths.CatalogPath = v
	}
	if v := os.Getenv("MODELPLANE_REGISTRY"); v != "" {
		c.Paths.RegistryPath = v
	}
	if v := os.Getenv("MODELPLANE_ENGINE_URL"); v != "" {
		c.Chat.EngineURL = v
	}
	if v := os.Getenv("MODELPLANE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// ListenAddr returns the host:port address for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerURL returns the base URL CLI clients use to reach the daemon.
func (c *Config) ServerURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// EnsureDirectories creates the directories the daemon owns.
//
// The readonly models directory is intentionally not created here; it
// belongs to the model loader's deployment.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.RegistryPath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

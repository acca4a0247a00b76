package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pcc.
type Config struct {
	ProjectID  string           `toml:"project_id"` // default project for CLI commands
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Stores     []StoreConfig    `toml:"stores"`
	Encryption EncryptionConfig `toml:"encryption"`
	Index      IndexConfig      `toml:"index"`
	Cache      CacheConfig      `toml:"cache"`
	Detect     DetectConfig     `toml:"detect"`
	Analyzer   AnalyzerConfig   `toml:"analyzer"`
}

// StoreConfig represents configuration for a blob store backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3", or "azure"
	Name string `toml:"name"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSStoreRoot string `toml:"fs_store_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Azure-specific fields (only used when Type == "azure")
	AzureContainer        string `toml:"azure_container,omitempty"`
	AzurePrefix           string `toml:"azure_prefix,omitempty"`
	AzureConnectionString string `toml:"azure_connection_string,omitempty"`
	AzureAccountURL       string `toml:"azure_account_url,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for at-rest content
// encryption. Type "none" disables encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age", or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// IndexConfig represents configuration for the local blob index.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type IndexConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory", or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CacheConfig holds the resolver and transfer tunables. Zero values select
// the built-in defaults.
type CacheConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"` // default 0.95
	HistoryWindow       int     `toml:"history_window"`       // default 10
	ScanBudgetSeconds   int     `toml:"scan_budget_seconds"`  // default 5
	Workers             int     `toml:"workers"`              // default 5
	WeightBySize        bool    `toml:"weight_by_size"`
}

// DetectConfig holds the change detector's file-pattern to module mapping.
// An empty mapping selects the built-in default rules.
type DetectConfig struct {
	ModuleMapping map[string][]string `toml:"module_mapping"`
	Ignore        []string            `toml:"ignore"` // patterns skipped when scanning trees
}

// AnalyzerConfig describes the external analyzer command run per affected
// module during an incremental update. The command receives the module name
// and workspace path via the PCC_MODULE and PCC_WORKSPACE environment
// variables and writes the module document to stdout.
type AnalyzerConfig struct {
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds"` // 0 means no per-module timeout
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(projectID, baseDir string) *Config {
	return &Config{
		ProjectID: projectID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Stores: []StoreConfig{
			{Type: "filesystem", Name: "local", FSStoreRoot: filepath.Join(baseDir, "store")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pcc.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pcc.key"),
		},
		Index: IndexConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "index"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

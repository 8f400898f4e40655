package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
)

// Config represents the process configuration for the fileshare server.
// It is read once at startup and handed to components by construction.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Blob       BlobConfig       `toml:"blob"`
	Encryption EncryptionConfig `toml:"encryption"`
	Log        LogConfig        `toml:"log"`
	Reconcile  ReconcileConfig  `toml:"reconcile"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int      `toml:"port" env:"PORT"`
	MaxUploadBytes  int64    `toml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig represents configuration for the metadata database.
type DatabaseConfig struct {
	URL      string `toml:"url" env:"DATABASE_URL"` // sqlite:<path>, sqlite://<path>, bare path, or :memory:
	MaxConns int    `toml:"max_conns" env:"DB_MAX_CONNS"`
}

// BlobConfig represents configuration for the blob store.
// This uses a tagged union pattern - the Backend field determines which other fields are relevant.
type BlobConfig struct {
	Backend string `toml:"backend" env:"BLOB_BACKEND"` // "filesystem", "s3", or "memory"

	// Filesystem-specific fields (only used when Backend == "filesystem")
	UploadDir string `toml:"upload_dir,omitempty" env:"UPLOAD_DIR"`

	// S3-specific fields (only used when Backend == "s3")
	S3 S3Config `toml:"s3"`
}

// S3Config holds the S3 bucket settings. Credentials fall back to the
// default AWS chain when the key pair is empty.
type S3Config struct {
	Bucket          string `toml:"bucket,omitempty" env:"S3_BUCKET"`
	Prefix          string `toml:"prefix,omitempty" env:"S3_PREFIX"`
	Region          string `toml:"region,omitempty" env:"S3_REGION"`
	Endpoint        string `toml:"endpoint,omitempty" env:"S3_ENDPOINT"`
	AccessKeyID     string `toml:"access_key_id,omitempty" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key,omitempty" env:"S3_SECRET_ACCESS_KEY"`
}

// EncryptionConfig holds paths to the age key pair used for blob encryption.
type EncryptionConfig struct {
	Type           string `toml:"type" env:"ENCRYPTION_TYPE"` // "none" (default) or "age"
	PublicKeyPath  string `toml:"public_key_path,omitempty" env:"ENCRYPTION_PUBLIC_KEY_PATH"`
	PrivateKeyPath string `toml:"private_key_path,omitempty" env:"ENCRYPTION_PRIVATE_KEY_PATH"`
	Passphrase     string `toml:"-" env:"ENCRYPTION_PASSPHRASE"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`                // debug, info, warn, error
	Format string `toml:"format,omitempty" env:"LOG_FORMAT"` // "text", "json", or empty to pick by terminal
}

// ReconcileConfig configures the background orphan-blob sweep.
type ReconcileConfig struct {
	Schedule    string   `toml:"schedule,omitempty" env:"RECONCILE_SCHEDULE"` // cron spec; empty disables
	GracePeriod Duration `toml:"grace_period" env:"RECONCILE_GRACE_PERIOD"`
	DryRun      bool     `toml:"dry_run" env:"RECONCILE_DRY_RUN"`
}

// Duration is a time.Duration that reads and writes as text such as "90s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			MaxUploadBytes:  100 << 20,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			URL:      "sqlite:./files.db",
			MaxConns: 5,
		},
		Blob: BlobConfig{
			Backend:   "filesystem",
			UploadDir: "./uploads",
		},
		Encryption: EncryptionConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
		Reconcile: ReconcileConfig{
			GracePeriod: Duration{time.Hour},
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path if
// path is non-empty, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		m := &Manager{}
		if err := m.decodeInto(f, cfg); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max conns must be at least 1, got %d", c.Database.MaxConns)
	}

	switch c.Blob.Backend {
	case "filesystem":
		if c.Blob.UploadDir == "" {
			return fmt.Errorf("upload dir is required for the filesystem backend")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown blob backend: %q", c.Blob.Backend)
	}

	switch c.Encryption.Type {
	case "", "none":
	case "age":
		if c.Encryption.PublicKeyPath == "" {
			return fmt.Errorf("public key path is required for age encryption")
		}
	default:
		return fmt.Errorf("unknown encryption type: %q", c.Encryption.Type)
	}

	if c.Reconcile.GracePeriod.Duration < 0 {
		return fmt.Errorf("reconcile grace period must not be negative")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("[::]:%d", c.Server.Port)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys absent from the
// input keep their default values.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := m.decodeInto(r, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) decodeInto(r io.Reader, cfg *Config) error {
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return nil
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

// Init writes cfg to a new config file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

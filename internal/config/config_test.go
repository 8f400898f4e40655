package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(104857600), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "sqlite:./files.db", cfg.Database.URL)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, "filesystem", cfg.Blob.Backend)
	assert.Equal(t, "./uploads", cfg.Blob.UploadDir)
	assert.Equal(t, "none", cfg.Encryption.Type)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Reconcile.Schedule)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "[::]:3000", cfg.Addr())
}

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := Default()
	original.Server.Port = 8080
	original.Server.ShutdownTimeout = Duration{30 * time.Second}
	original.Database.URL = "sqlite:///var/lib/fileshare/files.db"
	original.Blob = BlobConfig{
		Backend:   "s3",
		UploadDir: "/var/lib/fileshare/uploads",
		S3: S3Config{
			Bucket: "shared-files",
			Prefix: "prod/",
			Region: "eu-west-1",
		},
	}
	original.Encryption = EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  "/etc/fileshare/keys/fileshare.pub",
		PrivateKeyPath: "/etc/fileshare/keys/fileshare.key",
	}
	original.Reconcile = ReconcileConfig{
		Schedule:    "@every 6h",
		GracePeriod: Duration{2 * time.Hour},
	}

	var buf bytes.Buffer
	m := &Manager{}

	require.NoError(t, m.Write(&buf, original))

	got, err := m.Read(&buf)
	require.NoError(t, err)

	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Read_PartialKeepsDefaults(t *testing.T) {
	input := `
[server]
port = 9000

[log]
level = "debug"
`
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "./uploads", cfg.Blob.UploadDir)
	assert.Equal(t, 5, cfg.Database.MaxConns)
}

func TestManager_Read_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", "[server\nport = 1"},
		{"unknown key", "[server]\nhost = \"x\""},
		{"bad duration", "[reconcile]\ngrace_period = \"soon\""},
	}

	m := &Manager{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Read(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileshare.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n\n[blob]\nupload_dir = \"/srv/files\"\n"), 0600))

	t.Setenv("PORT", "4000")
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("RECONCILE_GRACE_PERIOD", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "/srv/files", cfg.Blob.UploadDir, "file wins over default")
	assert.Equal(t, "sqlite::memory:", cfg.Database.URL)
	assert.Equal(t, 15*time.Minute, cfg.Reconcile.GracePeriod.Duration)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "/data/uploads")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/uploads", cfg.Blob.UploadDir)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }, true},
		{"empty database url", func(c *Config) { c.Database.URL = "" }, true},
		{"zero max conns", func(c *Config) { c.Database.MaxConns = 0 }, true},
		{"unknown backend", func(c *Config) { c.Blob.Backend = "tape" }, true},
		{"filesystem without dir", func(c *Config) { c.Blob.UploadDir = "" }, true},
		{"s3 without bucket", func(c *Config) { c.Blob.Backend = "s3" }, true},
		{"s3 with bucket", func(c *Config) {
			c.Blob.Backend = "s3"
			c.Blob.S3.Bucket = "b"
		}, false},
		{"memory backend", func(c *Config) { c.Blob.Backend = "memory" }, false},
		{"age without key", func(c *Config) { c.Encryption.Type = "age" }, true},
		{"unknown encryption", func(c *Config) { c.Encryption.Type = "rot13" }, true},
		{"negative grace", func(c *Config) { c.Reconcile.GracePeriod = Duration{-time.Second} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fileshare.toml")

	require.NoError(t, Init(path, Default()))

	got, err := ReadFromFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("ReadFromFile() mismatch (-want +got):\n%s", diff)
	}

	err = Init(path, Default())
	assert.ErrorContains(t, err, "already exists")
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}

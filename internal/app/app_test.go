package app

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileshare/internal/config"
	"fileshare/internal/encryption"
	"fileshare/internal/fileshare"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.URL = ":memory:"
	cfg.Blob.Backend = "filesystem"
	cfg.Blob.UploadDir = t.TempDir()
	cfg.Server.ShutdownTimeout = config.Duration{Duration: 2 * time.Second}
	cfg.Log.Format = "text"
	cfg.Log.Level = "debug"
	return cfg
}

// lockedBuffer is a bytes.Buffer safe for the server's concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *lockedBuffer) {
	t.Helper()
	logs := &lockedBuffer{}
	a, err := NewApp(context.Background(), cfg, "test", logs)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, logs
}

func TestNewApp(t *testing.T) {
	a, logs := newTestApp(t, testConfig(t))

	version, err := a.MigrationVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.Contains(t, logs.String(), "storage ready")

	f, err := a.Service().SaveFile(context.Background(), fileshare.SaveFileParams{
		OriginalFilename: "a.txt",
		Content:          strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(f.StoragePath), filepath.Clean(a.cfg.Blob.UploadDir))
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Log.Level = "loud"
		_, err := NewApp(context.Background(), cfg, "test", io.Discard)
		assert.ErrorContains(t, err, "creating logger")
	})

	t.Run("bad database url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.URL = "postgres://localhost/db"
		_, err := NewApp(context.Background(), cfg, "test", io.Discard)
		assert.ErrorContains(t, err, "opening database")
	})

	t.Run("encryption without keys", func(t *testing.T) {
		cfg := testConfig(t)
		dir := t.TempDir()
		cfg.Encryption = config.EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(dir, "public.age"),
			PrivateKeyPath: filepath.Join(dir, "private.age"),
		}
		_, err := NewApp(context.Background(), cfg, "test", io.Discard)
		assert.ErrorContains(t, err, "keygen")
	})
}

func TestNewApp_Encryption(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Encryption = config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "public.age"),
		PrivateKeyPath: filepath.Join(dir, "private.age"),
		Passphrase:     "correct horse",
	}
	require.NoError(t, encryption.NewAgeEncryptor(cfg.Encryption).Setup("correct horse"))

	a, _ := newTestApp(t, cfg)
	ctx := context.Background()

	f, err := a.Service().SaveFile(ctx, fileshare.SaveFileParams{
		OriginalFilename: "secret.txt",
		Content:          strings.NewReader("plaintext"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, len("plaintext"), f.FileSize)

	_, rc, err := a.Service().OpenFile(ctx, f.ID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "plaintext", string(got))

	t.Run("wrong passphrase", func(t *testing.T) {
		bad := *cfg
		bad.Encryption.Passphrase = "wrong"
		_, err := NewApp(ctx, &bad, "test", io.Discard)
		assert.ErrorContains(t, err, "unlocking private key")
		assert.ErrorIs(t, err, encryption.ErrWrongPassphrase)
	})
}

func TestApp_ServeListener(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconcile.Schedule = "@every 1h"
	a, logs := newTestApp(t, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","service":"file-transfer-api"}`, string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `go_sql_max_open_connections{db_name="fileshare"}`)
	assert.Contains(t, string(body), "fileshare_reconcile_runs_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, logs.String(), "reconciler scheduled")
	assert.Contains(t, logs.String(), "shutting down")
}

func TestApp_Serve_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	a, _ := newTestApp(t, cfg)

	err = a.Serve(context.Background())
	assert.ErrorContains(t, err, "binding")
}

func TestApp_Reconcile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconcile.GracePeriod = config.Duration{}
	a, _ := newTestApp(t, cfg)
	ctx := context.Background()

	missing := "missing"
	_, err := a.Service().SaveFile(ctx, fileshare.SaveFileParams{
		OriginalFilename:  "orphan.txt",
		Content:           strings.NewReader("x"),
		ParentDirectoryID: &missing,
	})
	require.Error(t, err)

	report, err := a.Reconcile(ctx, true)
	require.NoError(t, err)
	assert.Len(t, report.Orphans, 1)
	assert.Zero(t, report.Removed)

	report, err = a.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
}

func TestReconciler(t *testing.T) {
	a, _ := newTestApp(t, testConfig(t))

	t.Run("invalid schedule", func(t *testing.T) {
		_, err := NewReconciler(a.service, "every tuesday", fileshare.ReconcileOptions{}, a.logger, nil)
		assert.ErrorContains(t, err, "invalid reconcile schedule")
	})

	t.Run("run records metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		r, err := NewReconciler(a.service, "@daily", fileshare.ReconcileOptions{}, a.logger, reg)
		require.NoError(t, err)

		r.run()

		assert.Equal(t, 1.0, promtestutil.ToFloat64(r.runs.WithLabelValues("success")))
		assert.Equal(t, 0.0, promtestutil.ToFloat64(r.removed))
	})
}

func TestApp_Finish(t *testing.T) {
	a, logs := newTestApp(t, testConfig(t))

	a.Finish(nil)

	assert.Equal(t, "success", a.op.Status)
	assert.Contains(t, logs.String(), "operation finished")
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/retry"
	"sieforeagent/internal/scraper"
	"sieforeagent/pkg/contracts/domain"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	root := t.TempDir()
	cfgFile := filepath.Join(root, "siefore.yaml")
	yaml := fmt.Sprintf(`
paths:
  root: %q
retry:
  max_attempts: 3
  base_delay: 1ms
telemetry:
  service_name: siefore-test
  metrics_enabled: true
`, root)
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0644))

	a, err := New(context.Background(), "test", Options{
		ConfigFile: cfgFile,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return a
}

func TestNewResolvesPaths(t *testing.T) {
	a := newTestApp(t)
	root := a.Paths.Root

	assert.Equal(t, filepath.Join(root, "consar_siefores_with_usd.json"), a.Store.Path())
	assert.Equal(t, filepath.Join(root, "reports", "siefore_pipeline.prom"), a.Paths.MetricsFile)
	for _, dir := range []string{a.Paths.DownloadsDir, a.Paths.BackupsDir, a.Paths.ReportsDir, a.Paths.LogsDir} {
		assert.DirExists(t, dir)
	}
	assert.NotNil(t, a.Approvals)
	assert.NotNil(t, a.Verifier)
}

func TestNewInvalidConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "siefore.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("retry:\n  max_attempts: 0\n"), 0644))

	_, err := New(context.Background(), "test", Options{
		ConfigFile: cfgFile,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.Error(t, err)
}

func TestPolicyCountsRetries(t *testing.T) {
	a := newTestApp(t)

	calls := 0
	err := a.Policy("probe").Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	require.NoError(t, a.Close(context.Background()))
	data, err := os.ReadFile(a.Paths.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "siefore_retry_attempts_total")
	assert.Contains(t, string(data), `operation="probe"`)
}

func TestPolicyPermanent(t *testing.T) {
	a := newTestApp(t)
	defer a.Close(context.Background())

	calls := 0
	err := a.Policy("probe").Do(context.Background(), func(context.Context) error {
		calls++
		return retry.Permanent(errors.New("rejected"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestServeListener(t *testing.T) {
	a := newTestApp(t)
	defer a.Close(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestTargetPeriod(t *testing.T) {
	a := newTestApp(t)
	defer a.Close(context.Background())

	p, err := a.TargetPeriod("2025-09")
	require.NoError(t, err)
	assert.Equal(t, domain.Period{Year: "2025", Month: "09"}, p)

	_, err = a.TargetPeriod("2025-13")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = a.TargetPeriod("")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	oct := domain.Period{Year: "2024", Month: "10"}
	require.NoError(t, scraper.WriteMetadata(a.Paths.MetadataFile, oct, time.Now()))
	p, err = a.TargetPeriod("")
	require.NoError(t, err)
	assert.Equal(t, oct, p)
}

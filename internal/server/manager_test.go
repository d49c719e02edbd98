package server

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func startManager(t *testing.T, m *Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	select {
	case <-m.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("servers not ready")
	}
	return cancel, errCh
}

func get(t *testing.T, addr string) string {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// --- DefaultConfig ---

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

// --- Run lifecycle ---

func TestManager_RunServesAllAndShutsDown(t *testing.T) {
	m := NewManager(DefaultConfig(), zap.NewNop())
	m.Handle("api", "127.0.0.1:0", okHandler("api"))
	m.Handle("metrics", "127.0.0.1:0", okHandler("metrics"))

	assert.Empty(t, m.Addr("api"))
	cancel, errCh := startManager(t, m)

	assert.Equal(t, "api", get(t, m.Addr("api")))
	assert.Equal(t, "metrics", get(t, m.Addr("metrics")))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err := http.Get("http://" + m.Addr("api") + "/")
	assert.Error(t, err, "server should be closed")
}

func TestManager_RunTwice(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	m.Handle("api", "127.0.0.1:0", okHandler("ok"))

	cancel, errCh := startManager(t, m)
	defer func() {
		cancel()
		<-errCh
	}()

	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyStarted)
}

func TestManager_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	m := NewManager(DefaultConfig(), zap.NewNop())
	m.Handle("api", "127.0.0.1:0", okHandler("ok"))
	m.Handle("metrics", ln.Addr().String(), okHandler("busy"))

	err = m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics")
}

func TestManager_AlreadyCancelledContext(t *testing.T) {
	m := NewManager(DefaultConfig(), zap.NewNop())
	m.Handle("api", "127.0.0.1:0", okHandler("ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

// --- TLS ---

func TestManager_HandleTLS(t *testing.T) {
	// 借用 httptest 的自签名证书，其客户端信任该证书
	ref := httptest.NewTLSServer(okHandler("ref"))
	defer ref.Close()

	m := NewManager(DefaultConfig(), zap.NewNop())
	m.HandleTLS("api", "127.0.0.1:0", okHandler("secure"), &tls.Config{Certificates: ref.TLS.Certificates})
	cancel, errCh := startManager(t, m)
	defer func() {
		cancel()
		<-errCh
	}()

	resp, err := ref.Client().Get("https://" + m.Addr("api") + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "secure", string(body))
	assert.NotNil(t, resp.TLS)
}

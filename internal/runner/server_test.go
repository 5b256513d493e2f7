// internal/runner/server_test.go
package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

func TestWaitReadyImmediate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := WaitReady(context.Background(), srv.URL, 2*time.Second, 50*time.Millisecond, zaptest.NewLogger(t))
	assert.NoError(t, err)
}

func TestWaitReadyNonServerErrorCountsAsReady(t *testing.T) {
	// A 404 means the server is up and routing; only 5xx keeps us polling.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := WaitReady(context.Background(), srv.URL, 2*time.Second, 50*time.Millisecond, zaptest.NewLogger(t))
	assert.NoError(t, err)
}

func TestWaitReadyRecoversFrom5xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := WaitReady(context.Background(), srv.URL, 5*time.Second, 20*time.Millisecond, zaptest.NewLogger(t))
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestWaitReadyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := WaitReady(context.Background(), srv.URL, 150*time.Millisecond, 25*time.Millisecond, zaptest.NewLogger(t))
	require.Error(t, err)

	var startupErr *schemas.ServerStartupTimeoutError
	require.True(t, errors.As(err, &startupErr))
	assert.Equal(t, srv.URL, startupErr.URL)
}

func TestWaitReadyContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nothing is listening; the probe fails and cancellation ends the loop.
	err := WaitReady(ctx, "http://127.0.0.1:1", 10*time.Second, 10*time.Millisecond, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartServerAndTerminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}

	sp, err := StartServer(context.Background(), "sleep 30", t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, sp.Terminate(2*time.Second))

	select {
	case <-sp.done:
	default:
		t.Fatal("process still running after Terminate returned")
	}

	// Idempotent.
	assert.NoError(t, sp.Terminate(2*time.Second))
}

func TestStartServerBadCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}

	// The shell itself starts fine and exits non-zero; Terminate after the
	// process is already dead must not error.
	sp, err := StartServer(context.Background(), "definitely-not-a-real-binary-xyz", t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	select {
	case <-sp.done:
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	assert.NoError(t, sp.Terminate(time.Second))
}

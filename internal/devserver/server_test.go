package devserver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.js"), []byte("console.log(1)"), 0o600))

	index := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("index page"))
	})

	return New(Config{Dir: dir, Origins: []string{"https://app.example.com"}}, NewHub(), index, zerolog.Nop()), dir
}

func TestServer_Handler(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{
			name:     "index page",
			path:     "/",
			status:   http.StatusOK,
			contains: "index page",
		},
		{
			name:     "bundle file",
			path:     "/bundle.js",
			status:   http.StatusOK,
			contains: "console.log(1)",
		},
		{
			name:   "missing file",
			path:   "/missing.js",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)

			handler.ServeHTTP(w, r)

			require.Equal(t, tt.status, w.Code)
			if tt.contains != "" {
				require.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/bundle.js", nil)
	r.Header.Set("Origin", "https://app.example.com")
	handler.ServeHTTP(w, r)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/bundle.js", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	handler.ServeHTTP(w, r)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	srv, _ := newTestServer(t)
	srv.config.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/bundle.js")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

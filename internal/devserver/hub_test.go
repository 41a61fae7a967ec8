package devserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(ReloadEvent)

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 4 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimSpace(line))
	}

	require.Contains(t, lines, "event: reload")
	require.Contains(t, lines, "data: reload")

	cancel()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() { hub.Broadcast(ReloadEvent) })
	require.Zero(t, hub.Clients())
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(ReloadEvent)
		hub.Broadcast(ReloadEvent)
		hub.Broadcast(ReloadEvent)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	require.Equal(t, ReloadEvent, <-ch)
}

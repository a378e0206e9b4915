package sse

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

func newTestServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogrusLogger(logger.NewDiscardConfig())
	h := hub.New(log)
	require.NoError(t, h.Start(context.Background()))

	router := gin.New()
	InitSSERouter(log, h, router.Group(""))
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
		srv.Close()
	})
	return h, srv
}

// openStream connects and consumes the hello frame.
func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	r := bufio.NewReader(resp.Body)
	hello := readFrame(t, r)
	assert.Contains(t, hello, "event:connected")
	assert.Contains(t, hello, "retry:3000")
	return resp, r
}

// readFrame returns the lines of the next frame, without the terminating blank line.
func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()

	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func waitForConnections(t *testing.T, h *hub.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ConnectionCount() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnect_DeliversOnlySubscribedTopics(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openStream(t, ctx, srv.URL+"/events?topics=orders")
	waitForConnections(t, h, 1)

	_, err := h.Broadcast("users", map[string]int{"id": 9})
	require.NoError(t, err)
	_, err = h.Broadcast("orders", map[string]int{"id": 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"event: orders",
		"id: 2",
		`data: {"id":1}`,
	}, readFrame(t, r))
}

func TestConnect_WildcardReceivesEverything(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openStream(t, ctx, srv.URL+"/events")
	waitForConnections(t, h, 1)

	_, err := h.Broadcast("users", "a")
	require.NoError(t, err)
	_, err = h.Broadcast("orders", "b")
	require.NoError(t, err)

	assert.Equal(t, "event: users", readFrame(t, r)[0])
	assert.Equal(t, "event: orders", readFrame(t, r)[0])
}

func TestConnect_HeartbeatOnWire(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openStream(t, ctx, srv.URL+"/events?topics=orders")
	waitForConnections(t, h, 1)

	require.Equal(t, 1, h.Beat())
	assert.Equal(t, []string{": keep-alive"}, readFrame(t, r))
}

func TestConnect_InvalidTopic(t *testing.T) {
	h, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/events?topics=orders,bad%20topic")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, h.ConnectionCount())
}

func TestConnect_HubStopped(t *testing.T) {
	h, srv := newTestServer(t)
	require.NoError(t, h.Stop(context.Background()))

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConnect_ClientDisconnectUnregisters(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	openStream(t, ctx, srv.URL+"/events?topics=orders")
	waitForConnections(t, h, 1)

	cancel()
	waitForConnections(t, h, 0)

	_, err := h.Broadcast("orders", "after")
	assert.NoError(t, err)
}

func TestConnect_HubStopEndsStream(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openStream(t, ctx, srv.URL+"/events")
	waitForConnections(t, h, 1)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, h.Stop(stopCtx))

	_, err := r.ReadString('\n')
	assert.Error(t, err)
}

func TestGetConnections(t *testing.T) {
	h, srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openStream(t, ctx, srv.URL+"/events?topics=orders,users")
	waitForConnections(t, h, 1)

	resp, err := http.Get(srv.URL + "/api/v1/events/connections")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `"total_connections":1`)
	assert.Contains(t, body, `"topics":["orders","users"]`)
	assert.Contains(t, body, `"state":"active"`)
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/port/inbound"
)

type stubBroadcaster struct {
	seq uint64
}

func (b *stubBroadcaster) Broadcast(topic string, payload any) (hub.Event, error) {
	event, err := hub.NewEvent(topic, payload, time.Time{})
	if err != nil {
		return hub.Event{}, err
	}
	b.seq++
	event.ID = b.seq
	return event, nil
}

func (b *stubBroadcaster) ConnectionCount() int { return 3 }

type change struct {
	resource string
	action   inbound.ChangeAction
	id       string
	data     any
}

type recordingUseCase struct {
	mu      sync.Mutex
	changes []change
}

func (u *recordingUseCase) Publish(topic string, payload any) {}

func (u *recordingUseCase) ResourceChanged(resource string, action inbound.ChangeAction, id string, data any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.changes = append(u.changes, change{resource, action, id, data})
}

func newTestRouter() (*gin.Engine, *recordingUseCase) {
	gin.SetMode(gin.TestMode)

	events := &recordingUseCase{}
	h := NewEventHandler(&stubBroadcaster{}, events, logger.NewLogrusLogger(logger.NewDiscardConfig()))

	router := gin.New()
	InitEventRouter(h, router.Group(""))
	return router, events
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPublishEvent(t *testing.T) {
	router, _ := newTestRouter()

	w := post(router, "/api/v1/events", `{"topic":"orders","payload":{"id":1}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "orders", resp["topic"])
	assert.EqualValues(t, 1, resp["id"])
	assert.EqualValues(t, 3, resp["connections"])
}

func TestPublishEvent_Rejected(t *testing.T) {
	router, _ := newTestRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing topic", `{"payload":{"id":1}}`},
		{"invalid topic", `{"topic":"bad topic"}`},
		{"malformed json", `{"topic":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/api/v1/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestResourceChanged(t *testing.T) {
	router, events := newTestRouter()

	w := post(router, "/api/v1/resources/orders/changes", `{"action":"updated","id":"42","data":{"total":10}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Len(t, events.changes, 1)
	got := events.changes[0]
	assert.Equal(t, "orders", got.resource)
	assert.Equal(t, inbound.ChangeUpdated, got.action)
	assert.Equal(t, "42", got.id)
	assert.JSONEq(t, `{"total":10}`, string(got.data.(json.RawMessage)))
}

func TestResourceChanged_Rejected(t *testing.T) {
	router, events := newTestRouter()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown action", "/api/v1/resources/orders/changes", `{"action":"archived","id":"1"}`},
		{"missing id", "/api/v1/resources/orders/changes", `{"action":"created"}`},
		{"invalid resource", "/api/v1/resources/-orders/changes", `{"action":"created","id":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, events.changes)
}

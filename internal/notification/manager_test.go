package notification

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, inbound chan Message) (*Manager, *httptest.Server) {
	t.Helper()
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), func(msg Message) { inbound <- msg })
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := m.HandleConnection(w, r, r.URL.Query().Get("ws"))
		assert.NoError(t, err)
	}))
	t.Cleanup(func() {
		m.Close()
		ts.Close()
	})
	return m, ts
}

func dial(t *testing.T, ts *httptest.Server, workspace string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?ws=" + workspace
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, m *Manager, workspace string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Count(workspace) == n }, 2*time.Second, 5*time.Millisecond)
}

func TestManager_PublishReachesOnlyItsWorkspace(t *testing.T) {
	m, ts := newTestServer(t, make(chan Message, 1))
	a := dial(t, ts, "field-a")
	dial(t, ts, "field-b")
	waitForCount(t, m, "field-a", 1)
	waitForCount(t, m, "field-b", 1)

	msg, err := NewMessage("field-a", MessageAreaChanged, map[string]float64{"area_hectares": 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Publish(msg))

	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Message
	require.NoError(t, a.ReadJSON(&got))
	assert.Equal(t, MessageAreaChanged, got.Type)

	var data map[string]float64
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, 1.5, data["area_hectares"])
}

func TestManager_InboundMessagesCarryWorkspace(t *testing.T) {
	inbound := make(chan Message, 1)
	m, ts := newTestServer(t, inbound)
	conn := dial(t, ts, "field-c")
	waitForCount(t, m, "field-c", 1)

	require.NoError(t, conn.WriteJSON(Message{
		Type:        MessagePositionReport,
		WorkspaceID: "spoofed",
		Data:        json.RawMessage(`{"lat":23.0,"lon":72.5,"accuracy":12}`),
	}))

	select {
	case got := <-inbound:
		assert.Equal(t, MessagePositionReport, got.Type)
		assert.Equal(t, "field-c", got.WorkspaceID)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}
}

func TestManager_DisconnectRemovesConnection(t *testing.T) {
	m, ts := newTestServer(t, make(chan Message, 1))
	conn := dial(t, ts, "field-d")
	waitForCount(t, m, "field-d", 1)

	conn.Close()

	waitForCount(t, m, "field-d", 0)
	msg, _ := NewMessage("field-d", MessageContextChanged, nil)
	assert.Equal(t, 0, m.Publish(msg))
}

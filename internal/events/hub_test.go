package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testFund = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func newServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("fund"))
	}))
}

func readEvent(t *testing.T, conn *websocket.Conn) model.ChangeEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt model.ChangeEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHub_PublishAndFilter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	srv := newServer(hub)
	defer srv.Close()

	all := dial(t, srv, "")
	defer all.Close()
	other := dial(t, srv, "?fund=0x1111111111111111111111111111111111111111")
	defer other.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(model.ChangeEvent{Type: model.EventCreated, FundAddress: testFund, Revision: 1, At: time.Now()})

	evt := readEvent(t, all)
	assert.Equal(t, model.EventCreated, evt.Type)
	assert.Equal(t, int64(1), evt.Revision)

	// other subscribed to a different fund.
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	_, _, err = all.ReadMessage()
	assert.Error(t, err)
}

func TestHub_FundFilterIsCaseInsensitive(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	srv := newServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?fund="+strings.ToLower(testFund))
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(model.ChangeEvent{Type: model.EventUpdated, FundAddress: testFund, Revision: 2})
	evt := readEvent(t, conn)
	assert.Equal(t, model.EventUpdated, evt.Type)
	assert.Equal(t, testFund, evt.FundAddress)

	hub.Close()
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	srv := newServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()

	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/stream", nil), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

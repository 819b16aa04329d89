package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	t.Setenv("CHATWIRE_LOG_DIR", t.TempDir())
	log, _ := logging.NewLogger("webhook-test")
	t.Cleanup(func() { log.Close() })
	return log
}

// capture collects webhook requests received by a test server.
type capture struct {
	mu       sync.Mutex
	requests []Event
	headers  []http.Header
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)

		c.mu.Lock()
		c.requests = append(c.requests, ev)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()

		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func TestSendDeliversEnvelope(t *testing.T) {
	hooks := &capture{}
	srv := httptest.NewServer(hooks.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher("hook-secret", 5*time.Second, testLogger(t))
	err := d.Send(context.Background(), srv.URL, Event{
		SessionID: "4",
		DataType:  "qr",
		Data:      map[string]any{"qr": "2@abc"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, hooks.count())
	got := hooks.requests[0]
	assert.Equal(t, "4", got.SessionID)
	assert.Equal(t, "qr", got.DataType)
	assert.Equal(t, map[string]any{"qr": "2@abc"}, got.Data)
	assert.Equal(t, "hook-secret", hooks.headers[0].Get("x-api-key"))
	assert.Equal(t, "application/json", hooks.headers[0].Get("Content-Type"))
}

func TestSendOmitsEmptyAPIKey(t *testing.T) {
	hooks := &capture{}
	srv := httptest.NewServer(hooks.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher("", 5*time.Second, testLogger(t))
	require.NoError(t, d.Send(context.Background(), srv.URL, Event{SessionID: "1", DataType: "ready"}))

	_, present := hooks.headers[0]["X-Api-Key"]
	assert.False(t, present)
}

func TestSendReportsHTTPFailure(t *testing.T) {
	hooks := &capture{}
	srv := httptest.NewServer(hooks.handler(http.StatusInternalServerError))
	defer srv.Close()

	d := NewDispatcher("k", 5*time.Second, testLogger(t))
	err := d.Send(context.Background(), srv.URL, Event{SessionID: "1", DataType: "message"})
	assert.ErrorContains(t, err, "status 500")
}

func TestDispatchFireAndForget(t *testing.T) {
	hooks := &capture{}
	srv := httptest.NewServer(hooks.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher("k", 5*time.Second, testLogger(t))
	d.Dispatch(srv.URL, "7", "message", map[string]any{"message": map[string]any{"body": "hi"}})

	assert.Eventually(t, func() bool { return hooks.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "message", hooks.requests[0].DataType)
}

func TestDispatchWithoutURLDropsQuietly(t *testing.T) {
	d := NewDispatcher("k", 5*time.Second, testLogger(t))

	// Must not panic or block; the drop is logged.
	d.Dispatch("", "7", "message", nil)
}

func TestDispatchSwallowsDeliveryFailure(t *testing.T) {
	d := NewDispatcher("k", 100*time.Millisecond, testLogger(t))

	// Unreachable destination; failure must stay internal.
	d.Dispatch("http://127.0.0.1:1/hook", "7", "message", nil)
	time.Sleep(200 * time.Millisecond)
}

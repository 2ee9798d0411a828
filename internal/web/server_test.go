package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeController records control calls.
type fakeController struct {
	mu        sync.Mutex
	cfg       logic.Config
	updates   []logic.Config
	resets    int
	updateErr error
}

func (f *fakeController) Tunables() logic.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeController) UpdateTunables(cfg logic.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.cfg = cfg
	f.updates = append(f.updates, cfg)
	return nil
}

func (f *fakeController) ResetCounters() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeController) recorded() ([]logic.Config, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Config(nil), f.updates...), f.resets
}

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *fakeController) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Source:       "replay",
		PollMs:       100,
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8080",
		SettingsPath: "/tmp/Settings.ini",
	}
	tr := status.NewTracker(start, cfg)
	ctrl := &fakeController{cfg: logic.DefaultConfig()}
	srv := New(":0", tr, ctrl, 20*time.Millisecond)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return ts, tr, ctrl
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.Snapshot{
		TotalEvents:      5,
		BlockedEvents:    2,
		CurrentDirection: logic.DirectionDown,
		Status:           logic.Status{Code: logic.StatusSameDirection},
	}, logic.DefaultConfig())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.CurrentDirection != "DOWN" {
		t.Errorf("CurrentDirection: got %q, want DOWN", sj.Status.CurrentDirection)
	}
	if sj.Status.Message != "Same direction scrolling" {
		t.Errorf("Message: got %q", sj.Status.Message)
	}
	if sj.Status.TotalEvents != 5 || sj.Status.BlockedEvents != 2 {
		t.Errorf("counts: got %d/%d, want 5/2", sj.Status.TotalEvents, sj.Status.BlockedEvents)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Config.Source != "replay" {
		t.Errorf("Config.Source: got %q, want replay", sj.Status.Config.Source)
	}
}

func TestJSONWaitingBeforeFirstEvent(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getStatus(t, ts.URL)
	if sj.Status.Code != "WAITING" {
		t.Errorf("Code: got %q, want WAITING", sj.Status.Code)
	}
	if sj.Status.CurrentDirection != "NONE" {
		t.Errorf("CurrentDirection: got %q, want NONE", sj.Status.CurrentDirection)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(logic.Snapshot{
		TotalEvents:      3,
		BlockedEvents:    1,
		CurrentDirection: logic.DirectionUp,
		Status:           logic.Status{Code: logic.StatusBlocked, Count: 1, Threshold: 3},
	}, logic.DefaultConfig())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "Blocked (consecutive 1/3 times)") {
		t.Error("page should render the status message")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestGetConfig(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/config")
	if err != nil {
		t.Fatalf("GET /api/config: %v", err)
	}
	defer resp.Body.Close()

	var got status.TunablesJSON
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := status.TunablesJSON{BlockIntervalMs: 500, DirectionChangeThreshold: 3, Enabled: true}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func putConfig(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url+"/api/config", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/config: %v", err)
	}
	return resp
}

func TestPutConfigPartialUpdate(t *testing.T) {
	ts, _, ctrl := newTestServer(t)

	resp := putConfig(t, ts.URL, `{"block_interval_ms": 300}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	updates, _ := ctrl.recorded()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	want := logic.Config{TimeThreshold: 300 * time.Millisecond, DirectionChangeCount: 3, Enabled: true}
	if updates[0] != want {
		t.Errorf("update: got %+v, want %+v", updates[0], want)
	}
}

func TestPutConfigDisable(t *testing.T) {
	ts, _, ctrl := newTestServer(t)

	resp := putConfig(t, ts.URL, `{"enabled": false, "direction_change_threshold": 5}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	got := ctrl.Tunables()
	if got.Enabled || got.DirectionChangeCount != 5 {
		t.Errorf("got %+v", got)
	}
}

func TestPutConfigRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"enabled": `},
		{"interval too short", `{"block_interval_ms": 10}`},
		{"interval too long", `{"block_interval_ms": 5000}`},
		{"interval wraps to default", `{"block_interval_ms": 288230376151712244}`},
		{"interval negative", `{"block_interval_ms": -500}`},
		{"threshold zero", `{"direction_change_threshold": 0}`},
		{"threshold too high", `{"direction_change_threshold": 11}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _, ctrl := newTestServer(t)
			resp := putConfig(t, ts.URL, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
			if updates, _ := ctrl.recorded(); len(updates) != 0 {
				t.Error("rejected config must not be applied")
			}
		})
	}
}

func TestPutConfigSaveFailure(t *testing.T) {
	ts, _, ctrl := newTestServer(t)
	ctrl.mu.Lock()
	ctrl.updateErr = errors.New("disk full")
	ctrl.mu.Unlock()

	resp := putConfig(t, ts.URL, `{"enabled": false}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestResetCounters(t *testing.T) {
	ts, _, ctrl := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/reset: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if _, resets := ctrl.recorded(); resets != 1 {
		t.Errorf("resets: got %d, want 1", resets)
	}
}

func TestWebsocketPushesStatus(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first status.StatusJSON
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Status.Code != "WAITING" {
		t.Errorf("first push Code: got %q, want WAITING", first.Status.Code)
	}

	tr.Update(logic.Snapshot{TotalEvents: 9, CurrentDirection: logic.DirectionUp, Status: logic.Status{Code: logic.StatusSameDirection}}, logic.DefaultConfig())

	// Later pushes pick up the update.
	for {
		var next status.StatusJSON
		if err := conn.ReadJSON(&next); err != nil {
			t.Fatalf("read: %v", err)
		}
		if next.Status.TotalEvents == 9 {
			break
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	sj1 := getStatus(t, ts.URL)
	if sj1.Status.TotalEvents != 0 {
		t.Error("expected no events initially")
	}

	tr.Update(logic.Snapshot{TotalEvents: 4, BlockedEvents: 1, CurrentDirection: logic.DirectionUp}, logic.DefaultConfig())
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts.URL)
	if sj2.Status.TotalEvents != 4 {
		t.Errorf("TotalEvents: got %d, want 4", sj2.Status.TotalEvents)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

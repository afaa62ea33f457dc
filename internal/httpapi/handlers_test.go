package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wristbeacon/internal/beacon"
	"wristbeacon/internal/payload"
	"wristbeacon/internal/radio"
	"wristbeacon/internal/store"
)

type fakeBeacon struct {
	mu     sync.Mutex
	status *beacon.Status
	posted []beacon.Event
	accept bool
}

func (f *fakeBeacon) Status() *beacon.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeBeacon) Post(ev beacon.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept {
		return false
	}
	f.posted = append(f.posted, ev)
	return true
}

// store.Memory stands in for the sqlite store wherever persistence is not
// under test.
var _ beacon.Store = (*store.Memory)(nil)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeHistory struct {
	items []store.HistoryEntry
	limit int
}

func (h *fakeHistory) History(_ context.Context, limit int) ([]store.HistoryEntry, error) {
	h.limit = limit
	return h.items, nil
}

func sampleStatus() *beacon.Status {
	p := payload.New(payload.DefaultMfgID)
	p.Update(true, 0x30)
	return &beacon.Status{
		State:        beacon.StateAdvNormal,
		Variant:      beacon.VariantWristband,
		Mode:         "Alarm",
		AlarmCounter: 42,
		Battery:      0x30,
		Payload:      p,
		Ticks:        7,
		Role:         radio.RoleAdvertising,
		UpdatedAt:    time.Now(),
	}
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()

	srv := NewServer(":0", NewMux(deps), nil)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustDecode[T any](t *testing.T, resp *http.Response, out *T) {
	t.Helper()
	t.Cleanup(func() { _ = resp.Body.Close() })
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func postButton(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+"/api/button", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		deps   Deps
		status int
	}{
		{name: "ok", deps: Deps{Store: &store.Memory{}, Beacon: &fakeBeacon{status: sampleStatus()}}, status: http.StatusOK},
		{name: "store down", deps: Deps{Store: fakePinger{err: errors.New("closed")}, Beacon: &fakeBeacon{status: sampleStatus()}}, status: http.StatusInternalServerError},
		{name: "not initialized", deps: Deps{Store: &store.Memory{}, Beacon: &fakeBeacon{}}, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.deps)
			resp, err := ts.Client().Get(ts.URL + "/healthz")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestState(t *testing.T) {
	ts := newTestServer(t, Deps{Beacon: &fakeBeacon{status: sampleStatus()}})

	resp, err := ts.Client().Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var st State
	mustDecode(t, resp, &st)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if st.State != "adv_normal" || st.Mode != "Alarm" || st.AlarmCounter != 42 {
		t.Fatalf("state=%+v", st)
	}
	if st.Payload != "02010604FF41B001" {
		t.Errorf("payload=%q", st.Payload)
	}
	if !st.Alarm || st.Counter != 1 {
		t.Errorf("alarm=%t counter=%d", st.Alarm, st.Counter)
	}
	if st.Battery.Code != "0x30" || st.Battery.Volts != 3.0 {
		t.Errorf("battery=%+v", st.Battery)
	}
	if st.Radio != radio.RoleAdvertising.String() {
		t.Errorf("radio=%q", st.Radio)
	}
}

func TestState_NotInitialized(t *testing.T) {
	ts := newTestServer(t, Deps{Beacon: &fakeBeacon{}})

	resp, err := ts.Client().Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestButton(t *testing.T) {
	fb := &fakeBeacon{status: sampleStatus(), accept: true}
	ts := newTestServer(t, Deps{Beacon: fb})

	resp := postButton(t, ts, `{"pressed":true}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusAccepted)
	}
	resp = postButton(t, ts, `{"pressed":false}`)
	_ = resp.Body.Close()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	want := []beacon.Event{beacon.KeyEvent{Pressed: true}, beacon.KeyEvent{Pressed: false}}
	if len(fb.posted) != len(want) {
		t.Fatalf("posted=%v want=%v", fb.posted, want)
	}
	for i := range want {
		if fb.posted[i] != want[i] {
			t.Errorf("posted[%d]=%v want=%v", i, fb.posted[i], want[i])
		}
	}
}

func TestButton_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		accept bool
		body   string
		status int
	}{
		{name: "bad json", accept: true, body: `{`, status: http.StatusBadRequest},
		{name: "missing field", accept: true, body: `{}`, status: http.StatusBadRequest},
		{name: "unknown field", accept: true, body: `{"pressed":true,"x":1}`, status: http.StatusBadRequest},
		{name: "queue full", accept: false, body: `{"pressed":true}`, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Deps{Beacon: &fakeBeacon{status: sampleStatus(), accept: tt.accept}})

			var body map[string]any
			resp := postButton(t, ts, tt.body)
			mustDecode(t, resp, &body)

			if resp.StatusCode != tt.status {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.status)
			}
			if _, ok := body["message"]; !ok {
				t.Fatalf("expected message field, got %v", body)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	h := &fakeHistory{items: []store.HistoryEntry{{Value: 0x00}, {Value: 0x01}}}
	ts := newTestServer(t, Deps{Beacon: &fakeBeacon{}, History: h})

	resp, err := ts.Client().Get(ts.URL + "/api/nv/history?limit=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Limit int                  `json:"limit"`
		Items []store.HistoryEntry `json:"items"`
	}
	mustDecode(t, resp, &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if h.limit != 5 || body.Limit != 5 || len(body.Items) != 2 {
		t.Fatalf("limit=%d body=%+v", h.limit, body)
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	ts := newTestServer(t, Deps{Beacon: &fakeBeacon{}, History: &fakeHistory{}})

	for _, q := range []string{"abc", "0", "501"} {
		resp, err := ts.Client().Get(ts.URL + "/api/nv/history?limit=" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s status=%d want=%d", q, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestRouting_WrongMethod(t *testing.T) {
	ts := newTestServer(t, Deps{Beacon: &fakeBeacon{}})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/state", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

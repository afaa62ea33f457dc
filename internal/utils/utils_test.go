package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content-type and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

		if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusAccepted, map[string]string{"state": "warehouse"})

		var got map[string]string
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["state"] != "warehouse" {
			t.Errorf("body[state] = %q; want warehouse", got["state"])
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusServiceUnavailable, "event queue full")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusServiceUnavailable)
	}

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("error = %q", got["error"])
	}
	if got["message"] != "event queue full" {
		t.Errorf("message = %q", got["message"])
	}
}

func TestHex(t *testing.T) {
	if got := Hex2(0x0A); got != "0A" {
		t.Errorf("Hex2(0x0A) = %q", got)
	}
	if got := Hex4(0xBEEF); got != "BEEF" {
		t.Errorf("Hex4(0xBEEF) = %q", got)
	}
	if got := BytesToHex([]byte{0x02, 0x01, 0x06, 0xFF}); got != "020106FF" {
		t.Errorf("BytesToHex = %q", got)
	}
	if got := BytesToHex(nil); got != "" {
		t.Errorf("BytesToHex(nil) = %q", got)
	}
}

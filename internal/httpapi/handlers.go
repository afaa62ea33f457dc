package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wristbeacon/internal/beacon"
	"wristbeacon/internal/payload"
	"wristbeacon/internal/store"
	"wristbeacon/internal/utils"
)

// Beacon is the controller surface exposed over HTTP.
type Beacon interface {
	Status() *beacon.Status
	Post(ev beacon.Event) bool
}

// Historian lists past writes of the persisted configuration byte.
type Historian interface {
	History(ctx context.Context, limit int) ([]store.HistoryEntry, error)
}

type Battery struct {
	Code  string  `json:"code"`
	Volts float64 `json:"volts"`
}

type State struct {
	State        string    `json:"state"`
	Variant      string    `json:"variant"`
	Mode         string    `json:"mode"`
	AlarmCounter int       `json:"alarm_counter"`
	Battery      Battery   `json:"battery"`
	Payload      string    `json:"payload"`
	Alarm        bool      `json:"alarm"`
	Counter      int       `json:"counter"`
	Ticks        uint64    `json:"ticks"`
	Dropped      uint64    `json:"dropped_events"`
	Radio        string    `json:"radio"`
	RadioError   string    `json:"radio_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ButtonRequest struct {
	Pressed *bool `json:"pressed"`
}

type beaconAPIImpl struct {
	beacon  Beacon
	history Historian
}

type BeaconAPI interface {
	HandleState(w http.ResponseWriter, r *http.Request)
	HandleButton(w http.ResponseWriter, r *http.Request)
	HandleHistory(w http.ResponseWriter, r *http.Request)
}

func NewBeaconAPI(b Beacon, history Historian) BeaconAPI {
	return &beaconAPIImpl{beacon: b, history: history}
}

func (api *beaconAPIImpl) HandleState(w http.ResponseWriter, r *http.Request) {
	st := api.beacon.Status()
	if st == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "controller not initialized")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stateView(*st))
}

func (api *beaconAPIImpl) HandleButton(w http.ResponseWriter, r *http.Request) {
	var req ButtonRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Pressed == nil {
		utils.WriteError(w, http.StatusBadRequest, "missing 'pressed'")
		return
	}

	if !api.beacon.Post(beacon.KeyEvent{Pressed: *req.Pressed}) {
		utils.WriteError(w, http.StatusServiceUnavailable, "event queue full")
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, map[string]bool{"pressed": *req.Pressed})
}

func (api *beaconAPIImpl) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if api.history == nil {
		utils.WriteError(w, http.StatusNotFound, "history not available for this store")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := api.history.History(r.Context(), limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if items == nil {
		items = []store.HistoryEntry{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"limit": limit,
		"items": items,
	})
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 20, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > 500 {
		return 0, errors.New("'limit' must be <= 500")
	}
	return n, nil
}

func stateView(st beacon.Status) State {
	frame, _ := payload.Decode(st.Payload[:])
	return State{
		State:        st.State.String(),
		Variant:      st.Variant.String(),
		Mode:         st.Mode,
		AlarmCounter: int(st.AlarmCounter),
		Battery: Battery{
			Code:  "0x" + utils.Hex2(st.Battery),
			Volts: payload.Frame{Battery: st.Battery}.Volts(),
		},
		Payload:    utils.BytesToHex(st.Payload[:]),
		Alarm:      frame.Alarm,
		Counter:    int(frame.Counter),
		Ticks:      st.Ticks,
		Dropped:    st.Dropped,
		Radio:      st.Role.String(),
		RadioError: st.LastRadioError,
		UpdatedAt:  st.UpdatedAt,
	}
}

package httpapi

import "net/http"

type Deps struct {
	Beacon  Beacon
	Store   Pinger
	History Historian
}

func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps.Store, deps.Beacon)

	api := NewBeaconAPI(deps.Beacon, deps.History)
	mux.HandleFunc("GET /api/state", api.HandleState)
	mux.HandleFunc("POST /api/button", api.HandleButton)
	mux.HandleFunc("GET /api/nv/history", api.HandleHistory)
	return mux
}

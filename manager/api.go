package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gatewaydemo/breaker"
	"gatewaydemo/logger"
	"gatewaydemo/router"
	"gatewaydemo/store"
)

// ManagementAPI exposes the route table and breaker state on the admin port.
type ManagementAPI struct {
	Store    store.Store
	Router   *router.Router
	Breakers map[string]*breaker.Breaker
}

type RouteStatus struct {
	ID        string `json:"id"`
	Predicate string `json:"predicate"`
}

type BreakerStatus struct {
	Name string `json:"name"`
	Open bool   `json:"open"`
}

type Status struct {
	Status      string          `json:"status"`
	Routes      []RouteStatus   `json:"routes"`
	Breakers    []BreakerStatus `json:"breakers"`
	TrippedKeys []string        `json:"tripped_keys"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewManagementAPI(s store.Store, rt *router.Router, breakers ...*breaker.Breaker) *ManagementAPI {
	byName := make(map[string]*breaker.Breaker, len(breakers))
	for _, b := range breakers {
		byName[b.Name()] = b
	}
	return &ManagementAPI{Store: s, Router: rt, Breakers: byName}
}

func (api *ManagementAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", api.handleStatus)
	mux.HandleFunc("/api/breaker", api.handleBreaker)
}

func (api *ManagementAPI) status(ctx context.Context) (Status, error) {
	st := Status{Status: "active", Timestamp: time.Now().UTC()}

	for _, r := range api.Router.Routes() {
		st.Routes = append(st.Routes, RouteStatus{ID: r.ID, Predicate: r.Predicate.String()})
	}
	for name, b := range api.Breakers {
		st.Breakers = append(st.Breakers, BreakerStatus{Name: name, Open: b.IsOpen(ctx)})
	}

	keys, err := api.Store.ListTripped(ctx)
	if err != nil {
		return st, err
	}
	st.TrippedKeys = keys
	if st.TrippedKeys == nil {
		st.TrippedKeys = []string{}
	}
	return st, nil
}

func (api *ManagementAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Use GET", http.StatusMethodNotAllowed)
		return
	}

	st, err := api.status(r.Context())
	if err != nil {
		logger.Error("Failed to list tripped breakers", "err", err)
		http.Error(w, "Failed to list tripped breakers", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (api *ManagementAPI) handleBreaker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Use DELETE", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	b, ok := api.Breakers[name]
	if !ok {
		http.Error(w, "unknown breaker", http.StatusNotFound)
		return
	}
	if err := b.Reset(r.Context()); err != nil {
		logger.Error("Breaker reset failed", "command", name, "err", err)
		http.Error(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	logger.Info("Manual breaker reset", "command", name)
	w.WriteHeader(http.StatusNoContent)
}

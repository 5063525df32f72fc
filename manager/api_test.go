package manager

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatewaydemo/breaker"
	"gatewaydemo/router"
	"gatewaydemo/store"
)

func testAPI(t *testing.T) (*http.ServeMux, *breaker.Breaker, store.Store) {
	t.Helper()
	st := store.NewLocalStore()
	b := breaker.New(breaker.Config{Name: "mycmd"}, st)
	rt := router.New(
		&router.Route{ID: "login", Predicate: router.Path("/login"), Handler: http.NotFoundHandler()},
		&router.Route{ID: "hystrix_route", Predicate: router.Host("*.hystrix.com"), Handler: http.NotFoundHandler()},
	)

	mux := http.NewServeMux()
	NewManagementAPI(st, rt, b).Register(mux)
	return mux, b, st
}

func TestStatusListsRoutesAndBreakers(t *testing.T) {
	mux, _, st := testAPI(t)
	st.Trip(context.Background(), breaker.KeyPrefix+"mycmd", time.Minute)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var got Status
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Routes) != 2 || got.Routes[0].ID != "login" || got.Routes[1].Predicate != "Host=*.hystrix.com" {
		t.Fatalf("unexpected routes %+v", got.Routes)
	}
	if len(got.Breakers) != 1 || !got.Breakers[0].Open {
		t.Fatalf("expected mycmd open, got %+v", got.Breakers)
	}
	if len(got.TrippedKeys) != 1 || got.TrippedKeys[0] != "hystrix:mycmd" {
		t.Fatalf("unexpected tripped keys %v", got.TrippedKeys)
	}
}

func TestBreakerReset(t *testing.T) {
	mux, b, st := testAPI(t)
	st.Trip(context.Background(), breaker.KeyPrefix+"mycmd", time.Minute)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/breaker?name=mycmd", nil))
	if rr.Code != http.StatusNoContent {
		body, _ := io.ReadAll(rr.Body)
		t.Fatalf("expected 204, got %d %s", rr.Code, body)
	}
	if b.IsOpen(context.Background()) {
		t.Fatal("expected breaker closed after reset")
	}
}

func TestBreakerResetErrors(t *testing.T) {
	mux, _, _ := testAPI(t)

	cases := []struct {
		method, target string
		code           int
	}{
		{http.MethodDelete, "/api/breaker", http.StatusBadRequest},
		{http.MethodDelete, "/api/breaker?name=other", http.StatusNotFound},
		{http.MethodPost, "/api/breaker?name=mycmd", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.target, nil))
		if rr.Code != tc.code {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.code, rr.Code)
		}
	}
}

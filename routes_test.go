package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gatewaydemo/filter"
	"gatewaydemo/service"
)

// echoUpstream answers with the path and the Hello header it received.
func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"path":  r.URL.Path,
			"hello": r.Header.Get("Hello"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testGateway(t *testing.T, upstream string, deps GatewayDeps) http.Handler {
	t.Helper()
	cfg, err := LoadConfig("", func(c *Config) {
		c.Httpbin = upstream
		c.Hystrix.Timeout = 200 * time.Millisecond
	})
	if err != nil {
		t.Fatal(err)
	}
	gw, err := NewGateway(cfg, deps)
	if err != nil {
		t.Fatal(err)
	}
	return gw.Router
}

func do(h http.Handler, method, target, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if host != "" {
		req.Host = host
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGetRouteAddsHelloHeader(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/get", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["path"] != "/get" || got["hello"] != "World" {
		t.Fatalf("expected /get with Hello: World, got %v", got)
	}
}

func TestHostRouteProxiesWhenHealthy(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/delay/0", "www.hystrix.com")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"/delay/0"`) {
		t.Fatalf("expected proxied response, got %d %q", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), `"hello":"World"`) {
		t.Fatal("host route must not add the Hello header")
	}
}

func TestHostRouteFallsBack(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	gw := testGateway(t, dead.URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/delay/3", "www.hystrix.com")
	if rr.Code != http.StatusOK || rr.Body.String() != "fallback" {
		t.Fatalf("expected fallback, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestHostRouteTimeoutFallsBack(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	gw := testGateway(t, slow.URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/delay/3", "api.hystrix.com:8080")
	if rr.Body.String() != "fallback" {
		t.Fatalf("expected fallback after timeout, got %q", rr.Body.String())
	}
}

func TestGetFailureIsBadGateway(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	gw := testGateway(t, dead.URL, GatewayDeps{})

	if rr := do(gw, http.MethodGet, "/get", ""); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on /get without breaker, got %d", rr.Code)
	}
}

func TestLocalEndpointsWinOverHostRoute(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/login", "www.hystrix.com")
	if !strings.Contains(rr.Body.String(), "<form") {
		t.Fatalf("expected login form, got %q", rr.Body.String())
	}
	rr = do(gw, http.MethodGet, "/fallback", "")
	if rr.Body.String() != "fallback" {
		t.Fatalf("expected fallback body, got %q", rr.Body.String())
	}
}

func TestWelcomeThroughGateway(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})

	rr := do(gw, http.MethodGet, "/welcome?username=Bob", "")
	if !strings.Contains(rr.Body.String(), "Welcome") || !strings.Contains(rr.Body.String(), "Bob") {
		t.Fatalf("expected greeting, got %q", rr.Body.String())
	}
}

func TestProbeThroughGateway(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})
	q := func(e, n, srid string) string {
		return service.ProbePath + "?Easting=" + e + "&Northing=" + n + "&SpatialReferenceSystemIdentifier=" + srid
	}

	rr := do(gw, http.MethodGet, q("0", "0", "5"), "")
	if !strings.Contains(rr.Body.String(), "errorMessage") {
		t.Fatalf("expected errorMessage, got %q", rr.Body.String())
	}
	rr = do(gw, http.MethodGet, q("5", "5", "5"), "")
	if !strings.Contains(rr.Body.String(), `"objectFound":"true"`) {
		t.Fatalf("expected objectFound true, got %q", rr.Body.String())
	}
	rr = do(gw, http.MethodGet, q("50", "50", "5"), "")
	if !strings.Contains(rr.Body.String(), `"objectFound":"false"`) {
		t.Fatalf("expected objectFound false, got %q", rr.Body.String())
	}
	if rr = do(gw, http.MethodGet, q("5", "5", "0"), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = do(gw, http.MethodGet, q("5", "5", "1"), "")
	if rr.Code != http.StatusInternalServerError || rr.Header()[service.MessageIDHeader][0] != "44625" {
		t.Fatalf("expected 500 with POMESSAGEID, got %d %v", rr.Code, rr.Header())
	}
	if rr = do(gw, http.MethodGet, service.ProbePath+"?Easting=5", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{})
	if rr := do(gw, http.MethodGet, "/nowhere", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRateLimitAppliesToUpstreamRoutesOnly(t *testing.T) {
	gw := testGateway(t, echoUpstream(t).URL, GatewayDeps{Limiter: filter.NewRateLimiter(0.001, 1)})

	if rr := do(gw, http.MethodGet, "/get", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rr.Code)
	}
	if rr := do(gw, http.MethodGet, "/get", ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(gw, http.MethodGet, "/login", ""); rr.Code != http.StatusOK {
		t.Fatalf("local endpoints are not rate limited, got %d", rr.Code)
	}
}

func TestRouteOrder(t *testing.T) {
	cfg, _ := LoadConfig("")
	gw, err := NewGateway(cfg, GatewayDeps{})
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, r := range gw.Router.Routes() {
		ids = append(ids, r.ID)
	}
	want := "fallback,login,welcome,probe,path_route,hystrix_route"
	if got := strings.Join(ids, ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

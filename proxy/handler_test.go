package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewReverseProxyRejectsRelativeTarget(t *testing.T) {
	for _, target := range []string{"httpbin.org", "/get", ""} {
		if _, err := NewReverseProxy(target); err == nil {
			t.Fatalf("expected error for %q", target)
		}
	}
}

func TestForwardsPathQueryAndHost(t *testing.T) {
	var gotPath, gotQuery, gotHost, gotXFF string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHost = r.Host
		gotXFF = r.Header.Get("X-Forwarded-For")
		io.WriteString(w, "upstream")
	}))
	defer upstream.Close()

	p, err := NewReverseProxy(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "http://www.hystrix.com/get?a=1", nil)
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "upstream" {
		t.Fatalf("expected upstream 200, got %d %q", rr.Code, rr.Body.String())
	}
	if gotPath != "/get" || gotQuery != "a=1" {
		t.Fatalf("expected /get?a=1, got %s?%s", gotPath, gotQuery)
	}
	u, _ := url.Parse(upstream.URL)
	if gotHost != u.Host {
		t.Fatalf("expected Host %s, got %s", u.Host, gotHost)
	}
	if gotXFF == "" {
		t.Fatal("expected X-Forwarded-For to be set")
	}
}

func TestUnreachableUpstreamReturnsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	p, err := NewReverseProxy(target)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/get", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestErrorHookReplacesBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	p, err := NewReverseProxy(target)
	if err != nil {
		t.Fatal(err)
	}

	var hookErr error
	hook := func(w http.ResponseWriter, r *http.Request, err error) {
		hookErr = err
		io.WriteString(w, "recovered")
	}

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req = req.WithContext(WithErrorHook(context.Background(), hook))
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, req)

	if hookErr == nil {
		t.Fatal("expected hook to receive the transport error")
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "recovered" {
		t.Fatalf("expected hook response, got %d %q", rr.Code, rr.Body.String())
	}
}

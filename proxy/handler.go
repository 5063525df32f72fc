package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"gatewaydemo/logger"
)

var errInvalidTarget = errors.New("upstream must be an absolute URL with scheme and host")

// ErrorHook handles an upstream failure in place of the default 502 answer.
type ErrorHook func(w http.ResponseWriter, r *http.Request, err error)

type errorHookKey struct{}

// WithErrorHook attaches hook to ctx. Requests proxied with the returned
// context report transport errors and timeouts to hook.
func WithErrorHook(ctx context.Context, hook ErrorHook) context.Context {
	return context.WithValue(ctx, errorHookKey{}, hook)
}

func errorHookFrom(ctx context.Context) (ErrorHook, bool) {
	hook, ok := ctx.Value(errorHookKey{}).(ErrorHook)
	return hook, ok && hook != nil
}

// ReverseProxy forwards requests to a single upstream, keeping the request
// path and query and rewriting Host to the upstream's.
type ReverseProxy struct {
	Proxy  *httputil.ReverseProxy
	Target *url.URL
}

func NewReverseProxy(target string) (*ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: target, Err: errInvalidTarget}
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
	}

	proxy.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if hook, ok := errorHookFrom(r.Context()); ok {
			hook(w, r, err)
			return
		}
		logger.Error("Proxy error", "err", err, "path", r.URL.Path, "upstream", u.Host)
		w.WriteHeader(http.StatusBadGateway)
	}

	return &ReverseProxy{Proxy: proxy, Target: u}, nil
}

func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.Proxy.ServeHTTP(w, r)
}

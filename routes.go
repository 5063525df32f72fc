package main

import (
	"fmt"
	"net/http"

	"gatewaydemo/breaker"
	"gatewaydemo/filter"
	"gatewaydemo/proxy"
	"gatewaydemo/router"
	"gatewaydemo/service"
	"gatewaydemo/store"
)

// Gateway is the assembled route table and the components it shares.
type Gateway struct {
	Router  *router.Router
	Breaker *breaker.Breaker
}

// GatewayDeps are the optional components a route table is built with.
// Nil Limiter disables rate limiting; nil GeoIP disables country tagging.
type GatewayDeps struct {
	Store   store.Store
	Limiter *filter.RateLimiter
	GeoIP   *filter.GeoIP
	OnTrip  breaker.TripFunc
}

// NewGateway builds the route table. Local endpoints come first so the
// internal /fallback forward can never re-enter a proxied route.
func NewGateway(cfg Config, deps GatewayDeps) (*Gateway, error) {
	upstream, err := proxy.NewReverseProxy(cfg.Httpbin)
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", cfg.Httpbin, err)
	}

	st := deps.Store
	if st == nil {
		st = store.NewLocalStore()
	}
	cmd := breaker.New(breaker.Config{
		Name:             cfg.Hystrix.Name,
		Timeout:          cfg.Hystrix.Timeout,
		FailureThreshold: cfg.Hystrix.FailureThreshold,
		Window:           cfg.Hystrix.Window,
		SleepWindow:      cfg.Hystrix.SleepWindow,
	}, st)
	if deps.OnTrip != nil {
		cmd.OnTrip(deps.OnTrip)
	}

	var upstreamFilters []filter.Filter
	if deps.Limiter != nil {
		upstreamFilters = append(upstreamFilters, deps.Limiter.Filter)
	}
	if deps.GeoIP != nil {
		upstreamFilters = append(upstreamFilters, deps.GeoIP.Filter)
	}

	rt := router.New()
	rt.Add(&router.Route{ID: "fallback", Predicate: router.Path("/fallback"), Handler: http.HandlerFunc(service.Fallback)})
	rt.Add(&router.Route{ID: "login", Predicate: router.Path("/login"), Handler: http.HandlerFunc(service.Login)})
	rt.Add(&router.Route{ID: "welcome", Predicate: router.Path("/welcome"), Handler: http.HandlerFunc(service.Welcome)})
	rt.Add(&router.Route{ID: "probe", Predicate: router.Path(service.ProbePath), Handler: http.HandlerFunc(service.Probe)})
	rt.Add(&router.Route{
		ID:        "path_route",
		Predicate: router.Path("/get"),
		Filters:   append(clone(upstreamFilters), filter.AddRequestHeader("Hello", "World")),
		Handler:   upstream,
	})
	rt.Add(&router.Route{
		ID:        "hystrix_route",
		Predicate: router.Host("*.hystrix.com"),
		Filters:   append(clone(upstreamFilters), cmd.Filter(rt.Forward("/fallback"))),
		Handler:   upstream,
	})

	return &Gateway{Router: rt, Breaker: cmd}, nil
}

func clone(fs []filter.Filter) []filter.Filter {
	return append([]filter.Filter(nil), fs...)
}

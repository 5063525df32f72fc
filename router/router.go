// Package router dispatches requests through an ordered route table.
// Routes are evaluated top-down and the first match handles the request.
package router

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gatewaydemo/filter"
	"gatewaydemo/logger"
	"gatewaydemo/service"

	"github.com/go-chi/chi/v5/middleware"
)

// maxForwards bounds internal forwards per request.
const maxForwards = 4

// Route pairs a predicate with the handler it selects. Filters run in
// order before the handler.
type Route struct {
	ID        string
	Predicate Predicate
	Filters   []filter.Filter
	Handler   http.Handler

	chain http.Handler
}

type Router struct {
	routes   []*Route
	notFound http.Handler
}

func New(routes ...*Route) *Router {
	rt := &Router{notFound: http.HandlerFunc(service.NotFound)}
	for _, r := range routes {
		rt.Add(r)
	}
	return rt
}

// Add appends a route at the lowest precedence.
func (rt *Router) Add(r *Route) {
	r.chain = filter.Chain(r.Handler, r.Filters...)
	rt.routes = append(rt.routes, r)
}

// Routes returns the table in evaluation order.
func (rt *Router) Routes() []*Route {
	out := make([]*Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// Match returns the first route whose predicate accepts r.
func (rt *Router) Match(r *http.Request) (*Route, bool) {
	for _, route := range rt.routes {
		if route.Predicate.Match(r) {
			return route, true
		}
	}
	return nil, false
}

// ServeHTTP dispatches r and records it under the route that first matched.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := rt.Match(r)
	id := "none"
	if ok {
		id = route.ID
	}

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	start := time.Now()
	defer func() {
		filter.RequestLatency.WithLabelValues(id).Observe(time.Since(start).Seconds())
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		filter.RoutedRequests.WithLabelValues(id, strconv.Itoa(status)).Inc()
	}()

	rt.dispatch(ww, r, route)
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request, route *Route) {
	if route == nil {
		rt.notFound.ServeHTTP(w, r)
		return
	}
	logger.Debug("Route matched", "route", route.ID, "path", r.URL.Path, "host", r.Host)
	route.chain.ServeHTTP(w, r)
}

type forwardDepthKey struct{}

// Forward returns a handler that re-dispatches the request through the
// table under path, keeping method, headers and query. Forwarded requests
// are not counted again; the metrics stay with the client's route.
func (rt *Router) Forward(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		depth, _ := r.Context().Value(forwardDepthKey{}).(int)
		if depth >= maxForwards {
			logger.Error("Forward loop detected", "path", path, "depth", depth)
			service.WriteError(w, r, http.StatusInternalServerError, "forward loop")
			return
		}

		ctx := context.WithValue(r.Context(), forwardDepthKey{}, depth+1)
		fr := r.Clone(ctx)
		fr.URL.Path = path
		fr.URL.RawPath = ""
		fr.RequestURI = ""
		route, _ := rt.Match(fr)
		rt.dispatch(w, fr, route)
	})
}

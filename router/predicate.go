package router

import (
	"net"
	"net/http"
	"path"
	"strings"
)

// Predicate decides whether a route applies to a request.
type Predicate interface {
	Match(r *http.Request) bool
	String() string
}

type pathPredicate string

// Path matches the request path exactly.
func Path(p string) Predicate { return pathPredicate(p) }

func (p pathPredicate) Match(r *http.Request) bool { return r.URL.Path == string(p) }
func (p pathPredicate) String() string             { return "Path=" + string(p) }

type hostPredicate struct {
	pattern  string
	segments []string
}

// Host matches the request host, port ignored, against a dotted pattern.
// Each '*' stays within one label, so "*.hystrix.com" matches
// "www.hystrix.com" but not "a.b.hystrix.com".
func Host(pattern string) Predicate {
	pattern = strings.ToLower(pattern)
	return hostPredicate{pattern: pattern, segments: strings.Split(pattern, ".")}
}

func (h hostPredicate) Match(r *http.Request) bool {
	host := r.Host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		host = hostOnly
	}
	labels := strings.Split(strings.TrimSuffix(strings.ToLower(host), "."), ".")
	if len(labels) != len(h.segments) {
		return false
	}
	for i, seg := range h.segments {
		ok, err := path.Match(seg, labels[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func (h hostPredicate) String() string { return "Host=" + h.pattern }

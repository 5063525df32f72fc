package filter

import (
	"net"
	"net/http"

	"gatewaydemo/logger"

	"github.com/oschwald/geoip2-golang"
)

// CountryHeader carries the client's ISO country code to the upstream.
const CountryHeader = "X-Client-Country"

type countryLookup interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// GeoIP tags forwarded requests with the client's country. Without a
// database it passes requests through untouched.
type GeoIP struct {
	db     countryLookup
	closer func() error
}

func NewGeoIP(dbPath string) *GeoIP {
	if dbPath == "" {
		return &GeoIP{}
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		logger.Warn("GeoIP tagging bypassed: database could not be opened", "path", dbPath, "err", err)
		return &GeoIP{}
	}

	logger.Info("GeoIP tagging enabled", "path", dbPath)
	return &GeoIP{db: db, closer: db.Close}
}

func (g *GeoIP) Enabled() bool { return g.db != nil }

func (g *GeoIP) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

func (g *GeoIP) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.db == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := net.ParseIP(clientIP(r))
		if ip != nil {
			record, err := g.db.Country(ip)
			if err == nil && record.Country.IsoCode != "" {
				r = r.Clone(r.Context())
				r.Header.Set(CountryHeader, record.Country.IsoCode)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. RealIP middleware may already
// have replaced it with the forwarded client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

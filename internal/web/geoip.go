// internal/web/geoip.go
//
// Optional client-position fallback via MaxMind GeoLite2.
//
// Context
// -------
// A search request that names no geoPosition can still be ranked around the
// caller: when the operator configures a GeoLite2-City database, the client
// IP resolves to an approximate position that seeds the position filter.
// The feature is entirely optional; without a configured database the
// resolver is nil and searches simply skip the fallback.
//
// Notes
// -----
// • X-Forwarded-For's first hop wins over RemoteAddr, matching the reverse
//   proxy deployment this service runs behind.
// • A lookup miss (private range, unknown IP) yields nil, not an error.
package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/yanizio/depot/internal/geo"
)

// GeoResolver maps request source addresses to coarse positions.  Safe for
// concurrent use; the underlying reader is read-only.
type GeoResolver struct {
	reader *geoip2.Reader
}

// NewGeoResolver opens the GeoLite2-City database at path.
func NewGeoResolver(path string) (*GeoResolver, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoResolver{reader: r}, nil
}

// Close releases the database handle.
func (g *GeoResolver) Close() error { return g.reader.Close() }

// Position resolves the request's client IP to a point, or nil when the IP
// is unparseable or unknown to the database.
func (g *GeoResolver) Position(r *http.Request) *geo.Point {
	ip := clientIP(r)
	if ip == nil {
		return nil
	}

	city, err := g.reader.City(ip)
	if err != nil || city == nil {
		return nil
	}
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return nil
	}
	return &geo.Point{
		Latitude:  city.Location.Latitude,
		Longitude: city.Location.Longitude,
	}
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

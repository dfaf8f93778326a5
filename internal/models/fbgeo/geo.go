package fbgeo

import (
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
	"github.com/rs/zerolog/log"
)

// Resolver looks up visitor countries in a MaxMind database.
type Resolver struct {
	reader *geoip2.Reader
}

// Open returns a nil Resolver when no path is configured. A nil Resolver
// resolves nothing.
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip database %s: %w", path, err)
	}
	return &Resolver{reader: reader}, nil
}

// Country returns the ISO code of ip, or "" when unknown.
func (r *Resolver) Country(ip string) string {
	if r == nil || r.reader == nil {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.IsLoopback() || addr.IsPrivate() {
		return ""
	}
	rec, err := r.reader.Country(addr)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("geoip lookup")
		return ""
	}
	return rec.Country.ISOCode
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

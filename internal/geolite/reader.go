package geolite

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"proxyfinder/internal/domain"
	"proxyfinder/internal/support"

	"github.com/oschwald/geoip2-golang"
)

// Reader resolves proxy IPs against a local GeoLite2 Country or City database.
type Reader struct {
	mu     sync.RWMutex
	db     *geoip2.Reader
	isCity bool
}

// Open loads the database at path. The file is memory mapped until Close.
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}

	return &Reader{
		db:     db,
		isCity: strings.Contains(db.Metadata().DatabaseType, "City"),
	}, nil
}

// Lookup returns the location of the host part of address (ip or ip:port), shaped like the
// probe endpoint payloads. Unknown or invalid addresses yield nil.
func (r *Reader) Lookup(address string) domain.Document {
	if r == nil {
		return nil
	}

	host := support.ProxyHost(address)
	if host == "" {
		host = address
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil
	}

	if r.isCity {
		record, err := r.db.City(ip)
		if err != nil || record.Country.IsoCode == "" {
			return nil
		}
		doc := domain.Document{
			"query":       ip.String(),
			"country":     record.Country.Names["en"],
			"countryCode": record.Country.IsoCode,
			"source":      "geolite",
		}
		if city := record.City.Names["en"]; city != "" {
			doc["city"] = city
		}
		if record.Location.TimeZone != "" {
			doc["timezone"] = record.Location.TimeZone
		}
		return doc
	}

	record, err := r.db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}
	return domain.Document{
		"query":       ip.String(),
		"country":     record.Country.Names["en"],
		"countryCode": record.Country.IsoCode,
		"source":      "geolite",
	}
}

func (r *Reader) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

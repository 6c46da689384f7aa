// Package geoip resolves visitor IPs to a city and country for event enrichment.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

const Unknown = "Unknown"

// Location is the geo fill stored on every tracking event.
type Location struct {
	City        string
	Country     string
	CountryCode string
}

var unknownLocation = Location{City: Unknown, Country: Unknown}

// Resolver wraps an optional GeoLite2-City reader. A Resolver without a reader
// resolves everything to Unknown.
type Resolver struct {
	mu        sync.RWMutex
	reader    *geoip2.Reader
	path      string
	countries *gountries.Query
	logger    *slog.Logger
}

// Open loads the database at path. A missing file is not an error: geo data is optional.
func Open(path string, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{path: path, countries: gountries.New(), logger: logger}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) load() error {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - geo enrichment disabled")
		return nil
	}
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - geo enrichment disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	}

	reader, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database", slog.String("path", r.path), slog.Any("error", err))
		return err
	}

	r.mu.Lock()
	old := r.reader
	r.reader = reader
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}

	r.logger.Info("GeoLite2 database initialized", slog.String("path", r.path))
	return nil
}

// Reload reopens the database file, e.g. after a GeoLite update.
func (r *Resolver) Reload() error {
	return r.load()
}

// Path is the database file the resolver reads.
func (r *Resolver) Path() string {
	return r.path
}

func (r *Resolver) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reader != nil
}

// Lookup resolves ip. Failures degrade to Unknown and are logged at debug level.
func (r *Resolver) Lookup(ipAddress string) Location {
	if r == nil {
		return unknownLocation
	}
	r.mu.RLock()
	reader := r.reader
	r.mu.RUnlock()
	if reader == nil {
		return unknownLocation
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		r.logger.Debug("Failed to parse IP address", slog.String("ip_address", ipAddress))
		return unknownLocation
	}

	record, err := reader.City(ip)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.String("ip_address", ipAddress), slog.Any("error", err))
		return unknownLocation
	}

	loc := unknownLocation
	if name := record.City.Names["en"]; name != "" {
		loc.City = name
	}
	if code := record.Country.IsoCode; code != "" && code != "--" {
		loc.CountryCode = strings.ToLower(code)
		loc.Country = r.CountryName(code)
	}
	return loc
}

// CountryName maps an ISO alpha-2/alpha-3 code to its common English name.
func (r *Resolver) CountryName(code string) string {
	countries := r.countries
	if countries == nil {
		countries = gountries.New()
	}
	c, err := countries.FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return strings.ToUpper(code)
	}
	return c.Name.Common
}

func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
}

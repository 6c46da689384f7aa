// Package sites holds the tenant container every event, goal and conversion belongs to.
package sites

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// SiteNotFoundError is returned when a site lookup misses.
type SiteNotFoundError struct {
	Key string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("site not found: %s", e.Key)
}

// Site is a rented website. Rows are created by the client-facing CRUD flow.
type Site struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain    string    `gorm:"uniqueIndex;not null" json:"domain"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// GetSite loads a site by id.
func GetSite(db *gorm.DB, id uint) (*Site, error) {
	var site Site
	if err := db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &SiteNotFoundError{Key: fmt.Sprintf("id=%d", id)}
		}
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}
	return &site, nil
}

// GetSiteByDomain loads a site by its base domain.
func GetSiteByDomain(db *gorm.DB, domain string) (*Site, error) {
	var site Site
	if err := db.Where("domain = ?", BaseDomainForHost(domain)).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &SiteNotFoundError{Key: domain}
		}
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}
	return &site, nil
}

// ListSites returns all sites ordered by id.
func ListSites(db *gorm.DB) ([]Site, error) {
	var out []Site
	if err := db.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return out, nil
}

// CreateSite normalizes the domain and stores the site.
func CreateSite(db *gorm.DB, site *Site) error {
	site.Domain = BaseDomainForHost(site.Domain)
	if site.Domain == "" {
		return errors.New("domain is required")
	}
	site.CreatedAt = time.Now().UTC()
	return db.Create(site).Error
}

// twoPartTLDs need three labels to form a registrable domain.
var twoPartTLDs = map[string]bool{
	"com.br": true, "net.br": true, "org.br": true,
	"co.uk": true, "org.uk": true,
	"com.au": true, "co.nz": true, "co.za": true,
	"com.mx": true, "com.ar": true, "com.pt": true,
}

// BaseDomainForHost collapses subdomains (www.example.com.br -> example.com.br).
func BaseDomainForHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	if parts[len(parts)-1] == "localhost" {
		return "localhost"
	}
	n := 2
	if len(parts) > 2 && twoPartTLDs[parts[len(parts)-2]+"."+parts[len(parts)-1]] {
		n = 3
	}
	return strings.Join(parts[len(parts)-n:], ".")
}

// Directory is a read-through cache of sites keyed by id.
type Directory struct {
	cache *cache.Cache[uint, *Site]
}

// NewDirectory builds a Directory backed by db.
func NewDirectory(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *Directory {
	fetch := func(id uint) (*Site, error) {
		return GetSite(db, id)
	}
	return &Directory{cache: cache.NewCache[uint, *Site](logger, ttl, fetch)}
}

func (d *Directory) Get(id uint) (*Site, error) {
	return d.cache.Get(id)
}

// Invalidate drops every cached site.
func (d *Directory) Invalidate() {
	d.cache.Clear()
}

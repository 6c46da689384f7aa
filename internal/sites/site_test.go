package sites_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/sites"
	"rankrent/internal/testsupport"
)

func TestBaseDomainForHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"WWW.Encanador-SP.com.br", "encanador-sp.com.br"},
		{"blog.shop.co.uk", "shop.co.uk"},
		{"app.localhost", "localhost"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, sites.BaseDomainForHost(tt.host))
		})
	}
}

func TestSiteLookups(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	site := &sites.Site{Domain: "www.desentupidora.com.br", Name: "Desentupidora"}
	require.NoError(t, sites.CreateSite(db, site))
	assert.Equal(t, "desentupidora.com.br", site.Domain)

	t.Run("by id", func(t *testing.T) {
		got, err := sites.GetSite(db, site.ID)
		require.NoError(t, err)
		assert.Equal(t, "Desentupidora", got.Name)
	})

	t.Run("by host", func(t *testing.T) {
		got, err := sites.GetSiteByDomain(db, "m.desentupidora.com.br")
		require.NoError(t, err)
		assert.Equal(t, site.ID, got.ID)
	})

	t.Run("missing site is typed", func(t *testing.T) {
		_, err := sites.GetSite(db, 9999)
		var notFound *sites.SiteNotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("directory reads through", func(t *testing.T) {
		dir := sites.NewDirectory(db, testsupport.GetLogger(), time.Minute)
		got, err := dir.Get(site.ID)
		require.NoError(t, err)
		assert.Equal(t, site.Domain, got.Domain)
	})
}

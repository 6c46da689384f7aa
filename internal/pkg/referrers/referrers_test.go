package referrers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rankrent/internal/pkg/referrers"
)

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com.br", "Google"},
		{"www.google.com.br", "Google"},
		{"GOOGLE.COM", "Google"},
		{"maps.google.com", "Google Maps"},
		{"m.facebook.com", "Facebook"},
		{"l.instagram.com", "Instagram"},
		{"wa.me", "WhatsApp"},
		{"mobile.twitter.com", "X/Twitter"},
		{"encanador.com.br", "Encanador.com.br"},
		{"www.encanador.com.br", "Encanador.com.br"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, referrers.FriendlyName(tt.hostname))
		})
	}
}

func TestSource(t *testing.T) {
	tests := []struct {
		name      string
		referrer  string
		paidClick string
		expected  string
	}{
		{"no referrer", "", "", referrers.Direct},
		{"organic search", "https://www.google.com.br/", "", "Google"},
		{"google ads click", "https://www.google.com.br/", "google", referrers.GoogleAds},
		{"meta ads click", "https://l.facebook.com/l.php?u=x", "meta", referrers.MetaAds},
		{"maps listing", "https://maps.google.com/?cid=123", "", "Google Maps"},
		{"bare host", "bing.com", "", "Bing"},
		{"unknown site", "https://guia-local.com.br/servicos", "", "Guia-local.com.br"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, referrers.Source(tt.referrer, tt.paidClick))
		})
	}
}

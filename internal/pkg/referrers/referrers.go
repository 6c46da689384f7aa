// Package referrers labels where a session came from.
package referrers

import (
	"net/url"
	"strings"
)

const (
	Direct    = "Direct"
	GoogleAds = "Google Ads"
	MetaAds   = "Meta Ads"
)

// Hostnames mapped to display names. Local businesses get most traffic from
// search and maps, so those are listed per country domain.
var knownReferrers = map[string]string{
	// Search engines
	"google.com":       "Google",
	"google.com.br":    "Google",
	"google.com.pt":    "Google",
	"google.pt":        "Google",
	"google.co.uk":     "Google",
	"google.com.mx":    "Google",
	"google.com.ar":    "Google",
	"google.es":        "Google",
	"google.de":        "Google",
	"google.fr":        "Google",
	"bing.com":         "Bing",
	"duckduckgo.com":   "DuckDuckGo",
	"yahoo.com":        "Yahoo",
	"search.yahoo.com": "Yahoo",
	"ecosia.org":       "Ecosia",
	"yandex.ru":        "Yandex",

	// Maps and listings
	"maps.google.com":     "Google Maps",
	"maps.app.goo.gl":     "Google Maps",
	"business.google.com": "Google Business Profile",
	"g.page":              "Google Business Profile",
	"waze.com":            "Waze",
	"apontador.com.br":    "Apontador",
	"yelp.com":            "Yelp",

	// Social
	"facebook.com":    "Facebook",
	"fb.com":          "Facebook",
	"l.facebook.com":  "Facebook",
	"lm.facebook.com": "Facebook",
	"instagram.com":   "Instagram",
	"l.instagram.com": "Instagram",
	"x.com":           "X/Twitter",
	"twitter.com":     "X/Twitter",
	"t.co":            "X/Twitter",
	"linkedin.com":    "LinkedIn",
	"lnkd.in":         "LinkedIn",
	"tiktok.com":      "TikTok",
	"pinterest.com":   "Pinterest",
	"reddit.com":      "Reddit",
	"youtube.com":     "YouTube",
	"youtu.be":        "YouTube",

	// Messaging
	"whatsapp.com":     "WhatsApp",
	"wa.me":            "WhatsApp",
	"web.whatsapp.com": "WhatsApp",
	"telegram.org":     "Telegram",
	"t.me":             "Telegram",

	// Email
	"mail.google.com":    "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",
	"mail.yahoo.com":     "Yahoo Mail",

	// Link shorteners
	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
}

// FriendlyName returns a display name for a referrer hostname. Unknown hosts
// are returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")

	if name, ok := knownReferrers[hostname]; ok {
		return name
	}
	if withoutWWW, ok := strings.CutPrefix(hostname, "www."); ok {
		if name, ok := knownReferrers[withoutWWW]; ok {
			return name
		}
		hostname = withoutWWW
	}

	// Longest known suffix wins, so the result does not depend on map order.
	best := ""
	for domain := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) && len(domain) > len(best) {
			best = domain
		}
	}
	if best != "" {
		return knownReferrers[best]
	}
	return capitalizeFirst(hostname)
}

// Source labels a session by its landing referrer. A paid click id wins over
// the referrer; "google" and "meta" are the networks the collector records.
func Source(referrer, paidClick string) string {
	switch paidClick {
	case "google":
		return GoogleAds
	case "meta":
		return MetaAds
	}

	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return Direct
	}
	host := referrer
	if u, err := url.Parse(referrer); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	} else if u, err := url.Parse("//" + referrer); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return FriendlyName(host)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

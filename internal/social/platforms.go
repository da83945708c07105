package social

import (
	"net/url"
	"strings"
)

// platformDomains maps registrable social domains to platform names
var platformDomains = map[string]string{
	"instagram.com": "instagram",
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"youtube.com":   "youtube",
	"youtu.be":      "youtube",
	"tiktok.com":    "tiktok",
	"linkedin.com":  "linkedin",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"pinterest.com": "pinterest",
	"pin.it":        "pinterest",
	"kwai.com":      "kwai",
}

// Platform returns the social platform of rawURL, or "" when it is not on one
func Platform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for {
		if p, ok := platformDomains[host]; ok {
			return p
		}
		_, rest, found := strings.Cut(host, ".")
		if !found {
			return ""
		}
		host = rest
	}
}

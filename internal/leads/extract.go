// Package leads derives contact leads from search result items and stores
// them per session.
package leads

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

// Lead is a contact or opportunity found in a search result
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Instagram   string    `json:"instagram,omitempty"`
	Website     string    `json:"website,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Source      string    `json:"source"`
	SourceURL   string    `json:"source_url"`
	Snippet     string    `json:"snippet,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Query       string    `json:"query,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)

	// Brazilian numbers: optional +55, two digit area code, 8 or 9 digit subscriber
	phonePattern = regexp.MustCompile(`(?:\+?55[\s.-]?)?\(?\d{2}\)?[\s.-]?9?\d{4}[\s.-]?\d{4}`)

	instagramURL    = regexp.MustCompile(`(?i)instagram\.com/([A-Za-z0-9_.]{2,30})`)
	instagramHandle = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_.]{3,30})`)
	titleSeparators = []string{" | ", " - ", " – ", " — ", " :: "}
	reservedIGPaths = map[string]bool{"p": true, "reel": true, "reels": true, "explore": true, "stories": true, "accounts": true}
)

// Extract derives leads from one item. It is pure apart from ID and
// timestamp generation: one lead per distinct e-mail address, or a single
// lead when an item with a website only carries a phone or Instagram
// handle, or nothing.
func Extract(item internetsearch.Item, sourceURL string) []Lead {
	if sourceURL == "" {
		sourceURL = item.URL
	}
	text := norm.NFC.String(item.Title + " " + item.Snippet)

	emails := uniqueLower(emailPattern.FindAllString(text, -1))
	withoutEmails := emailPattern.ReplaceAllString(text, " ")

	phone := firstPhone(withoutEmails)
	handle := instagramFrom(sourceURL, withoutEmails)

	if len(emails) == 0 && phone == "" && handle == "" {
		return nil
	}

	base := Lead{
		Name:        leadName(item.Title),
		Phone:       phone,
		Instagram:   handle,
		Source:      item.Source,
		SourceURL:   sourceURL,
		Snippet:     item.Snippet,
		ExtractedAt: time.Now().UTC(),
	}
	base.Website, base.Domain = website(sourceURL)

	if len(emails) == 0 {
		if base.Website == "" {
			return nil
		}
		base.ID = uuid.NewString()
		return []Lead{base}
	}

	leads := make([]Lead, 0, len(emails))
	for _, email := range emails {
		l := base
		l.ID = uuid.NewString()
		l.Email = email
		leads = append(leads, l)
	}
	return leads
}

func uniqueLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.Trim(v, "."))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstPhone(text string) string {
	for _, match := range phonePattern.FindAllString(text, -1) {
		digits := onlyDigits(match)
		// 10 or 11 digits without country code, 12 or 13 with it
		if n := len(digits); n >= 10 && n <= 13 {
			return digits
		}
	}
	return ""
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func instagramFrom(sourceURL, text string) string {
	for _, candidate := range []string{sourceURL, text} {
		if m := instagramURL.FindStringSubmatch(candidate); m != nil && !reservedIGPaths[strings.ToLower(m[1])] {
			return strings.ToLower(strings.TrimRight(m[1], "."))
		}
	}
	if m := instagramHandle.FindStringSubmatch(text); m != nil {
		return strings.ToLower(strings.TrimRight(m[1], "."))
	}
	return ""
}

func leadName(title string) string {
	name := strings.TrimSpace(norm.NFC.String(title))
	for _, sep := range titleSeparators {
		if i := strings.Index(name, sep); i > 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}

func website(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ""
	}
	host := strings.ToLower(u.Hostname())
	site := u.Scheme + "://" + host

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	return site, domain
}

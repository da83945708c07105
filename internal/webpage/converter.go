package webpage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Digest is the readable part of a page
type Digest struct {
	Title    string
	Excerpt  string
	Markdown string
	Links    []string
}

// MarkdownConverter turns HTML into compact markdown
type MarkdownConverter struct {
	converter *converter.Converter
}

// NewMarkdownConverter creates a converter that drops page chrome
func NewMarkdownConverter() *MarkdownConverter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)

	// script, style, noscript and iframe are already removed by the base plugin
	tagsToRemove := []string{
		"embed", "object", "nav", "header", "footer", "aside",
		"form", "button", "select", "canvas", "svg", "video", "audio",
	}
	for _, tag := range tagsToRemove {
		conv.Register.TagType(tag, converter.TagTypeRemove, converter.PriorityStandard)
	}

	return &MarkdownConverter{converter: conv}
}

// Convert converts HTML to markdown with blank-line runs collapsed
func (c *MarkdownConverter) Convert(html string) (string, error) {
	if html == "" {
		return "", nil
	}
	markdown, err := c.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return cleanMarkdown(markdown), nil
}

func cleanMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if len(cleaned) > 0 && cleaned[len(cleaned)-1] != "" {
				cleaned = append(cleaned, "")
			}
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// Digest extracts the main content of a page with readability, converts it
// to markdown cut to markdownLimit runes, and lists same-host links.
func (c *MarkdownConverter) Digest(page *Page, markdownLimit int) (*Digest, error) {
	location := page.FinalURL
	if location == "" {
		location = page.URL
	}
	pageURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	digest := &Digest{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: SameHostLinks(doc, pageURL),
	}

	content := page.HTML
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(page.HTML), pageURL)
	if err == nil {
		if article.Content != "" {
			content = article.Content
		}
		if t := strings.TrimSpace(article.Title); t != "" && digest.Title == "" {
			digest.Title = t
		}
		digest.Excerpt = strings.Join(strings.Fields(article.Excerpt), " ")
	}

	markdown, err := c.Convert(content)
	if err != nil {
		return nil, err
	}
	digest.Markdown = truncateRunes(markdown, markdownLimit)
	return digest, nil
}

// SameHostLinks returns the distinct http(s) links of doc on pageURL's host,
// resolved and without fragments, in document order
func SameHostLinks(doc *goquery.Document, pageURL *url.URL) []string {
	seen := map[string]struct{}{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := Resolve(pageURL, href)
		if !ok || !strings.EqualFold(abs.Hostname(), pageURL.Hostname()) {
			return
		}
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// Resolve resolves ref against base, keeping only http(s) targets
func Resolve(base *url.URL, ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil, false
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// PageMetadata is what a portal dataset page yields for the name backfill.
type PageMetadata struct {
	Title       string
	Description string
}

// DatasetPage recovers a display title and description from a dataset
// page. Structured hints (og tags, the page h1) are read first; the
// readability pass supplies fallbacks when the markup carries none.
func DatasetPage(html, pageURL string) PageMetadata {
	var meta PageMetadata

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		meta.Title = firstNonEmpty(
			attrOf(doc, `meta[property="og:title"]`, "content"),
			textOf(doc, "h1"),
			textOf(doc, "title"),
		)
		meta.Description = firstNonEmpty(
			attrOf(doc, `meta[property="og:description"]`, "content"),
			attrOf(doc, `meta[name="description"]`, "content"),
		)
	}

	if meta.Title != "" && meta.Description != "" {
		return meta
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return meta
	}
	if article, err := readability.FromReader(strings.NewReader(html), parsed); err == nil {
		if meta.Title == "" {
			meta.Title = strings.TrimSpace(article.Title)
		}
		if meta.Description == "" {
			meta.Description = strings.TrimSpace(article.Excerpt)
		}
	}
	return meta
}

func textOf(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	value, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// Package extract pulls readable article content out of a page's markup.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultExcerptLength bounds Content.Excerpt in characters.
const DefaultExcerptLength = 300

// Content types reported in Content.Type.
const (
	TypeArticle = "article"
	TypeWebpage = "webpage"
	TypeText    = "text"
)

// ErrNoContent is returned when a page has no readable text.
var ErrNoContent = errors.New("no readable content")

// Page is the input to an extractor.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// Content is the readable form of a page. Content holds sanitized HTML;
// TextContent the same content as plain text.
type Content struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	TextContent string `json:"textContent,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	Byline      string `json:"byline,omitempty"`
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	WordCount   int    `json:"wordCount"`
}

// Extractor turns a page into readable content.
type Extractor interface {
	Extract(ctx context.Context, p Page) (*Content, error)
}

// Readability is the default Extractor. It strips page chrome, picks the
// main content container heuristically and sanitizes what remains.
type Readability struct {
	policy     *bluemonday.Policy
	maxExcerpt int
}

// Compile-time check that Readability implements Extractor.
var _ Extractor = (*Readability)(nil)

// New returns a Readability extractor using bluemonday's UGC policy.
func New() *Readability {
	return &Readability{
		policy:     bluemonday.UGCPolicy(),
		maxExcerpt: DefaultExcerptLength,
	}
}

// noise is removed before the main container is chosen.
const noise = "script, style, noscript, template, nav, header, footer, aside, iframe, form, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, [aria-hidden='true']"

// mainCandidates are tried in order; body is the last resort.
var mainCandidates = []string{
	"article",
	"main",
	"[role='main'], [role='article']",
	"#content, #main, .content, .main, .article, .post",
}

func (r *Readability) Extract(ctx context.Context, p Page) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.HTML) == "" {
		return nil, ErrNoContent
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &Content{
		Title:  pageTitle(doc, p.Title),
		Byline: byline(doc),
		Type:   TypeWebpage,
		URL:    p.URL,
	}
	if og := metaContent(doc, "meta[property='og:type']"); og != "" {
		out.Type = og
	} else if doc.Find("article").Length() > 0 {
		out.Type = TypeArticle
	}
	description := metaContent(doc, "meta[name='description'], meta[property='og:description']")

	doc.Find(noise).Remove()
	main := mainSelection(doc)

	text := NormalizeWhitespace(main.Text())
	if text == "" {
		return nil, ErrNoContent
	}
	html, err := main.Html()
	if err != nil {
		return nil, fmt.Errorf("render content: %w", err)
	}

	out.Content = strings.TrimSpace(r.policy.Sanitize(html))
	out.TextContent = text
	out.WordCount = len(strings.Fields(text))

	excerpt := description
	if excerpt == "" {
		excerpt = NormalizeWhitespace(main.Find("p").First().Text())
	}
	if excerpt == "" {
		excerpt = text
	}
	out.Excerpt = Truncate(excerpt, r.maxExcerpt)
	return out, nil
}

func mainSelection(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainCandidates {
		if s := doc.Find(sel).First(); s.Length() > 0 && strings.TrimSpace(s.Text()) != "" {
			return s
		}
	}
	return doc.Find("body")
}

func pageTitle(doc *goquery.Document, fallback string) string {
	for _, t := range []string{
		metaContent(doc, "meta[property='og:title']"),
		strings.TrimSpace(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	} {
		if t != "" {
			return NormalizeWhitespace(t)
		}
	}
	return fallback
}

func byline(doc *goquery.Document) string {
	if a := metaContent(doc, "meta[name='author'], meta[property='article:author']"); a != "" {
		return a
	}
	for _, sel := range []string{"[rel='author']", ".byline", ".author", "[itemprop='author']"} {
		if s := NormalizeWhitespace(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// WithFallback runs e and degrades to the page's raw text when extraction
// fails. It never returns nil.
func WithFallback(ctx context.Context, e Extractor, p Page) *Content {
	if e != nil {
		if c, err := e.Extract(ctx, p); err == nil && c != nil {
			return c
		}
	}
	title := p.Title
	if title == "" {
		title = p.URL
	}
	text := RawText(p.HTML)
	return &Content{
		Title:       title,
		Content:     text,
		TextContent: text,
		Type:        TypeText,
		URL:         p.URL,
		WordCount:   len(strings.Fields(text)),
	}
}

var strict = bluemonday.StrictPolicy()

// RawText dumps the visible text of html, ignoring structure.
func RawText(html string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style, noscript, template").Remove()
		if text := NormalizeWhitespace(doc.Text()); text != "" {
			return text
		}
	}
	return NormalizeWhitespace(strict.Sanitize(html))
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace to one space.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most n runes, cutting at a word boundary and
// appending an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

// Package analyzer extracts SEO fields and links from fetched HTML.
package analyzer

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/scope"
	"github.com/user/seo-crawler/pkg/utils"
)

var (
	wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

	textTags = []string{"p", "div", "span", "article", "section", "main"}

	skipPrefixes = []string{"#", "mailto:", "tel:", "javascript:", "data:"}
)

// ParseError is returned when a document could not be fully analyzed. The
// record returned alongside it holds whatever was extracted.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Scope classifies canonical links as internal or external.
type Scope interface {
	InScope(canonical string) bool
}

type Analyzer struct {
	scope Scope
	now   func() time.Time
}

func New(s Scope) *Analyzer {
	return &Analyzer{scope: s, now: time.Now}
}

// Analyze builds the page record for res. The record is never nil; on a
// *ParseError it is partially filled.
func (a *Analyzer) Analyze(res *entity.FetchResult, depth int) (rec *entity.PageRecord, err error) {
	rec = &entity.PageRecord{
		URL:           res.URL,
		FinalURL:      res.FinalURL,
		StatusCode:    res.StatusCode,
		ContentType:   res.ContentType,
		ContentLength: len(res.Body),
		ResponseTime:  res.Latency,
		Depth:         depth,
		CrawledAt:     a.now(),
		OpenGraph:     map[string]string{},
		TwitterCards:  map[string]string{},
		Hreflang:      map[string]string{},
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{URL: res.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	baseRaw := res.FinalURL
	if baseRaw == "" {
		baseRaw = res.URL
	}
	base, err := url.Parse(baseRaw)
	if err != nil {
		return rec, &ParseError{URL: res.URL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return rec, &ParseError{URL: res.URL, Err: err}
	}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	extractMeta(doc, rec)
	extractLinkTags(doc, rec)

	rec.H1 = texts(doc.Find("h1"))
	rec.H2 = texts(doc.Find("h2"))

	content := structuralText(doc)
	rec.WordCount = len(wordRe.FindAllString(content, -1))
	sum := md5.Sum([]byte(content))
	rec.ContentHash = hex.EncodeToString(sum[:])

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		if abs, err := utils.ToAbsoluteURL(base, src); err == nil {
			src = abs
		}
		rec.Images = append(rec.Images, entity.ImageInfo{
			Src:   src,
			Alt:   s.AttrOr("alt", ""),
			Title: s.AttrOr("title", ""),
		})
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if block := strings.TrimSpace(s.Text()); block != "" {
			rec.StructuredData = append(rec.StructuredData, block)
		}
	})

	rec.InternalLinks, rec.ExternalLinks = a.links(doc, base)
	return rec, nil
}

func extractMeta(doc *goquery.Document, rec *entity.PageRecord) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := s.AttrOr("content", "")
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		property := strings.TrimSpace(s.AttrOr("property", ""))

		switch {
		case name == "description" && rec.MetaDescription == "":
			rec.MetaDescription = strings.TrimSpace(content)
		case name == "robots" && rec.RobotsMeta == "":
			rec.RobotsMeta = strings.TrimSpace(content)
		case strings.HasPrefix(name, "twitter:"):
			rec.TwitterCards[s.AttrOr("name", "")] = content
		}
		if strings.HasPrefix(property, "og:") {
			rec.OpenGraph[property] = content
		}
	})
}

func extractLinkTags(doc *goquery.Document, rec *entity.PageRecord) {
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rels := strings.Fields(strings.ToLower(s.AttrOr("rel", "")))
		for _, rel := range rels {
			switch rel {
			case "canonical":
				if rec.Canonical == "" {
					rec.Canonical = strings.TrimSpace(s.AttrOr("href", ""))
				}
			case "alternate":
				if lang, ok := s.Attr("hreflang"); ok {
					rec.Hreflang[lang] = s.AttrOr("href", "")
				}
			}
		}
	})
}

func texts(sel *goquery.Selection) []string {
	res := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		res = append(res, strings.TrimSpace(s.Text()))
	})
	return res
}

// structuralText concatenates the text of the content-bearing elements,
// grouped per tag in document order. Nested elements contribute their text
// once per enclosing tag.
func structuralText(doc *goquery.Document) string {
	var parts []string
	for _, tag := range textTags {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(s.Text()))
		})
	}
	return strings.Join(parts, " ")
}

func (a *Analyzer) links(doc *goquery.Document, base *url.URL) (internal, external []string) {
	seen := make(map[string]struct{})
	doc.Find("a[href], link[href], area[href], base[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || hasSkipPrefix(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		canonical, err := scope.Normalize(base.ResolveReference(ref).String())
		if err != nil {
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}
		if a.scope.InScope(canonical) {
			internal = append(internal, canonical)
		} else {
			external = append(external, canonical)
		}
	})
	return internal, external
}

func hasSkipPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

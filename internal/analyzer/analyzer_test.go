package analyzer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/seo-crawler/internal/entity"
	"github.com/user/seo-crawler/internal/scope"
)

const page = `<!doctype html>
<html><head>
<title>  Blue Widgets | Example  </title>
<meta name="Description" content=" Widgets in every shade of blue. ">
<meta name="robots" content="index,follow">
<meta property="og:title" content="Blue Widgets">
<meta property="og:type" content="product">
<meta name="twitter:card" content="summary">
<link rel="canonical" href="https://example.com/widgets">
<link rel="alternate" hreflang="de" href="https://example.com/de/widgets">
<link rel="stylesheet" href="/static/site.css">
<script type="application/ld+json">{"@type":"Product"}</script>
<script type="application/ld+json">   </script>
</head>
<body>
<h1> Blue widgets </h1>
<h2>Sizes</h2><h2>Colors</h2>
<p>Our widgets are blue.</p>
<div>Shipped worldwide</div>
<img src="/img/w.png" alt="A widget" title="Widget">
<img src="img/x.png">
<img alt="no source">
<a href="/about/">About</a>
<a href="about">About again</a>
<a href="https://www.example.com/about">Same page</a>
<a href="#top">Top</a>
<a href="mailto:sales@example.com">Mail</a>
<a href="tel:+1000">Call</a>
<a href="JavaScript:void(0)">JS</a>
<a href="data:text/plain,hi">Data</a>
<a href="https://blog.example.com/post">Blog</a>
<a href="https://other.org/">Other</a>
<area href="/map" alt="map">
</body></html>`

func analyze(t *testing.T, body string) (*entity.PageRecord, error) {
	t.Helper()
	f, err := scope.NewFilter("https://example.com/", true, nil)
	require.NoError(t, err)
	a := New(f)
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a.Analyze(&entity.FetchResult{
		URL:         "https://example.com/widgets",
		FinalURL:    "https://example.com/widgets/",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
		Latency:     120 * time.Millisecond,
	}, 2)
}

func TestAnalyzeFields(t *testing.T) {
	rec, err := analyze(t, page)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/widgets", rec.URL)
	assert.Equal(t, "Blue Widgets | Example", rec.Title)
	assert.Equal(t, "Widgets in every shade of blue.", rec.MetaDescription)
	assert.Equal(t, "index,follow", rec.RobotsMeta)
	assert.Equal(t, "https://example.com/widgets", rec.Canonical)
	assert.Equal(t, []string{"Blue widgets"}, rec.H1)
	assert.Equal(t, []string{"Sizes", "Colors"}, rec.H2)
	assert.Equal(t, map[string]string{"og:title": "Blue Widgets", "og:type": "product"}, rec.OpenGraph)
	assert.Equal(t, map[string]string{"twitter:card": "summary"}, rec.TwitterCards)
	assert.Equal(t, map[string]string{"de": "https://example.com/de/widgets"}, rec.Hreflang)
	assert.Equal(t, []string{`{"@type":"Product"}`}, rec.StructuredData)
	assert.Equal(t, len(page), rec.ContentLength)
	assert.Equal(t, 120*time.Millisecond, rec.ResponseTime)
	assert.Equal(t, 2, rec.Depth)
	assert.Equal(t, 200, rec.StatusCode)
	assert.Len(t, rec.ContentHash, 32)
}

func TestAnalyzeImages(t *testing.T) {
	rec, err := analyze(t, page)
	require.NoError(t, err)

	require.Len(t, rec.Images, 2)
	assert.Equal(t, entity.ImageInfo{Src: "https://example.com/img/w.png", Alt: "A widget", Title: "Widget"}, rec.Images[0])
	assert.Equal(t, "https://example.com/widgets/img/x.png", rec.Images[1].Src, "resolved against the final URL")
	assert.Equal(t, 1, rec.ImagesWithoutAlt())
}

func TestAnalyzeLinks(t *testing.T) {
	rec, err := analyze(t, page)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/widgets",
		"https://example.com/de/widgets",
		"https://example.com/static/site.css",
		"https://example.com/about",
		"https://example.com/widgets/about",
		"https://example.com/map",
	}, rec.InternalLinks)
	assert.Equal(t, []string{"https://blog.example.com/post", "https://other.org/"}, rec.ExternalLinks)
}

func TestWordCountAndFingerprint(t *testing.T) {
	a, err := analyze(t, `<html><body><p>one two, three_3 четыре</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, 4, a.WordCount)

	b, err := analyze(t, `<html><head><title>Other</title></head><body><p>one two, three_3 четыре</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash, "title does not affect the fingerprint")

	c, err := analyze(t, `<html><body><p>one two three</p></body></html>`)
	require.NoError(t, err)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
}

func TestNestedTextCountsPerTag(t *testing.T) {
	rec, err := analyze(t, `<div><p>alpha beta</p></div>`)
	require.NoError(t, err)
	// "alpha beta" once for <p>, once for the enclosing <div>.
	assert.Equal(t, 4, rec.WordCount)
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	rec, err := analyze(t, "")
	require.NoError(t, err)
	assert.Empty(t, rec.Title)
	assert.Empty(t, rec.H1)
	assert.Zero(t, rec.WordCount)
	assert.Empty(t, rec.InternalLinks)
}

func TestAnalyzeBadBase(t *testing.T) {
	f, err := scope.NewFilter("https://example.com/", true, nil)
	require.NoError(t, err)
	rec, err := New(f).Analyze(&entity.FetchResult{URL: "https://example.com/x", FinalURL: "http://[::1", Body: []byte("<p>x</p>")}, 0)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "https://example.com/x", pe.URL)
	require.NotNil(t, rec)
	assert.Equal(t, "https://example.com/x", rec.URL)
}

type panicScope struct{}

func (panicScope) InScope(string) bool { panic("boom") }

func TestAnalyzeRecoversPanic(t *testing.T) {
	a := New(panicScope{})
	rec, err := a.Analyze(&entity.FetchResult{
		URL:  "https://example.com/",
		Body: []byte(`<title>Kept</title><a href="/x">x</a>`),
	}, 0)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.True(t, strings.Contains(pe.Error(), "boom"))
	assert.Equal(t, "Kept", rec.Title, "partial record survives")
}

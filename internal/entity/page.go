package entity

import "time"

// ImageInfo represents an image referenced by a page.
type ImageInfo struct {
	Src   string `json:"src"`
	Alt   string `json:"alt"`
	Title string `json:"title,omitempty"`
}

// PageRecord is the analyzed view of one canonical URL.
type PageRecord struct {
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url,omitempty"`
	StatusCode      int               `json:"status_code"`
	ContentType     string            `json:"content_type"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	H1              []string          `json:"h1"`
	H2              []string          `json:"h2"`
	Canonical       string            `json:"canonical,omitempty"`
	RobotsMeta      string            `json:"robots_meta,omitempty"`
	WordCount       int               `json:"word_count"`
	ContentLength   int               `json:"content_length"`
	ResponseTime    time.Duration     `json:"response_time"`
	ContentHash     string            `json:"content_hash"`
	Duplicate       bool              `json:"duplicate"`
	PageRank        float64           `json:"pagerank"`
	InboundLinks    int               `json:"inbound_links"`
	InternalLinks   []string          `json:"internal_links"`
	ExternalLinks   []string          `json:"external_links"`
	Images          []ImageInfo       `json:"images"`
	StructuredData  []string          `json:"structured_data,omitempty"`
	OpenGraph       map[string]string `json:"open_graph,omitempty"`
	TwitterCards    map[string]string `json:"twitter_cards,omitempty"`
	Hreflang        map[string]string `json:"hreflang,omitempty"`
	Depth           int               `json:"depth"`
	CrawledAt       time.Time         `json:"crawled_at"`
}

// ImagesWithoutAlt counts images with an empty alt attribute.
func (p *PageRecord) ImagesWithoutAlt() int {
	n := 0
	for _, img := range p.Images {
		if img.Alt == "" {
			n++
		}
	}
	return n
}

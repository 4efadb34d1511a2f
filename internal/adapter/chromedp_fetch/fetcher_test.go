package chromedp_fetch

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestDocumentTracksMainFrame(t *testing.T) {
	d := &document{}
	d.listen(&network.EventRequestWillBeSent{RequestID: "1", Type: network.ResourceTypeDocument})
	d.listen(&network.EventRequestWillBeSent{
		RequestID:        "1",
		Type:             network.ResourceTypeDocument,
		RedirectResponse: &network.Response{URL: "https://example.com/old", Status: 301},
	})
	d.listen(&network.EventRequestWillBeSent{RequestID: "2", Type: network.ResourceTypeScript})
	d.listen(&network.EventResponseReceived{RequestID: "2", Type: network.ResourceTypeScript,
		Response: &network.Response{URL: "https://example.com/app.js", Status: 200}})
	d.listen(&network.EventResponseReceived{RequestID: "1", Type: network.ResourceTypeDocument,
		Response: &network.Response{URL: "https://example.com/new", Status: 200, MimeType: "text/html"}})

	assert.Equal(t, "https://example.com/new", d.final.URL)
	assert.Len(t, d.hops, 1)
	assert.Equal(t, 301, d.hops[0].StatusCode)
}

func TestToHeader(t *testing.T) {
	h := toHeader(network.Headers{"content-type": "text/html", "x-count": 3})
	assert.Equal(t, "text/html", h.Get("Content-Type"))
	assert.Equal(t, "3", h.Get("X-Count"))
}

package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const robotsBody = `User-agent: *
Disallow: /private
Disallow: /*?session=

User-agent: SEOFrog
Disallow: /frog-only
`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadWildcardGroup(t *testing.T) {
	srv := serve(t, http.StatusOK, robotsBody)
	p := Load(context.Background(), srv.Client(), srv.URL+"/", "OtherBot/1.0", zap.NewNop())

	assert.True(t, p.CanFetch(srv.URL+"/"))
	assert.True(t, p.CanFetch(srv.URL+"/public/page"))
	assert.False(t, p.CanFetch(srv.URL+"/private/page"))
	assert.False(t, p.CanFetch(srv.URL+"/list?session=42"))
	assert.True(t, p.CanFetch(srv.URL+"/frog-only"))
}

func TestLoadSpecificAgent(t *testing.T) {
	srv := serve(t, http.StatusOK, robotsBody)
	p := Load(context.Background(), srv.Client(), srv.URL, "SEOFrog/1.0 (+https://example.com/bot)", zap.NewNop())

	assert.False(t, p.CanFetch(srv.URL+"/frog-only"))
	assert.True(t, p.CanFetch(srv.URL+"/private"))
}

func TestLoadFailuresAllowAll(t *testing.T) {
	for name, status := range map[string]int{"not found": http.StatusNotFound, "server error": http.StatusInternalServerError} {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, status, "User-agent: *\nDisallow: /\n")
			p := Load(context.Background(), srv.Client(), srv.URL, "SEOFrog", zap.NewNop())
			assert.True(t, p.CanFetch(srv.URL+"/anything"))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		p := Load(context.Background(), http.DefaultClient, "http://127.0.0.1:1/", "SEOFrog", zap.NewNop())
		assert.True(t, p.CanFetch("http://127.0.0.1:1/x"))
	})
}

func TestNilPolicyAllows(t *testing.T) {
	var p *Policy
	assert.True(t, p.CanFetch("https://example.com/private"))
	assert.True(t, AllowAll().CanFetch("https://example.com/private"))
}

// Package robots loads the robots.txt of the crawled site.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 512 << 10

// Policy answers robots.txt permission queries for one user agent.
// A zero or nil Policy allows everything.
type Policy struct {
	group *robotstxt.Group
}

// AllowAll returns a policy that permits every URL.
func AllowAll() *Policy { return &Policy{} }

// Load fetches <scheme>://<host>/robots.txt of seed. Any failure to obtain a
// usable file degrades to allow-all and is only logged.
func Load(ctx context.Context, client *http.Client, seed, userAgent string, logger *zap.Logger) *Policy {
	u, err := url.Parse(seed)
	if err != nil || u.Host == "" {
		logger.Warn("robots.txt skipped, bad seed", zap.String("seed", seed))
		return AllowAll()
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	body, err := fetch(ctx, client, robotsURL, userAgent)
	if err != nil {
		logger.Warn("robots.txt unavailable, allowing all", zap.String("url", robotsURL), zap.Error(err))
		return AllowAll()
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Warn("robots.txt unparsable, allowing all", zap.String("url", robotsURL), zap.Error(err))
		return AllowAll()
	}
	logger.Info("robots.txt loaded", zap.String("url", robotsURL))
	return &Policy{group: data.FindGroup(userAgent)}
}

func fetch(ctx context.Context, client *http.Client, robotsURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
}

// CanFetch reports whether the path and query of rawURL may be crawled.
func (p *Policy) CanFetch(rawURL string) bool {
	if p == nil || p.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.group.Test(path)
}

package httpfetch

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// proxyRotator hands out configured proxies round-robin.
type proxyRotator struct {
	mu      sync.Mutex
	proxies []*url.URL
	next    int
}

func newProxyRotator(raw []string) (*proxyRotator, error) {
	r := &proxyRotator{}
	for _, p := range raw {
		if p == "" {
			continue
		}
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", p)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// Proxy satisfies http.Transport.Proxy. No proxies means a direct
// connection.
func (r *proxyRotator) Proxy(*http.Request) (*url.URL, error) {
	if len(r.proxies) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.next]
	r.next = (r.next + 1) % len(r.proxies)
	return p, nil
}

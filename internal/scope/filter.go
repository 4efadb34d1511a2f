package scope

import (
	"fmt"
	"net/url"
	"strings"
)

// Filter decides whether a canonical URL belongs to the crawled site.
type Filter struct {
	apex           string
	apexLabels     int
	mainDomainOnly bool
	apexOf         ApexFunc
}

// NewFilter builds a filter for the site of seed. A nil apexOf selects
// ApexDomain.
func NewFilter(seed string, mainDomainOnly bool, apexOf ApexFunc) (*Filter, error) {
	if apexOf == nil {
		apexOf = ApexDomain
	}
	canonical, err := Normalize(seed)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	apex := apexOf(Host(canonical))
	return &Filter{
		apex:           apex,
		apexLabels:     labelCount(apex),
		mainDomainOnly: mainDomainOnly,
		apexOf:         apexOf,
	}, nil
}

// Apex returns the registrable domain of the seed.
func (f *Filter) Apex() string { return f.apex }

// InScope reports whether canonical is on the seed's apex domain and, in
// main-domain-only mode, not on a subdomain of it.
func (f *Filter) InScope(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" || f.apexOf(host) != f.apex {
		return false
	}
	if !f.mainDomainOnly {
		return true
	}
	return labelCount(host) <= f.apexLabels
}

package scope

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// genericSecondLevel are labels that act as part of the suffix when they
// sit right before the TLD, as in example.com.ru.
var genericSecondLevel = map[string]bool{
	"com": true,
	"net": true,
	"org": true,
	"edu": true,
	"gov": true,
}

// ApexFunc maps a host to its registrable domain.
type ApexFunc func(host string) string

// ApexDomain is the label heuristic: the last two labels, or the last three
// when the second-to-last label is a generic one. IP literals and
// single-label hosts are their own apex.
func ApexDomain(host string) string {
	h := trimWWW(strings.ToLower(strings.TrimSuffix(host, ".")))
	if net.ParseIP(h) != nil || !strings.Contains(h, ".") {
		return h
	}
	labels := strings.Split(h, ".")
	n := len(labels)
	if n >= 3 && genericSecondLevel[labels[n-2]] {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// PublicSuffixApex uses the public suffix list and falls back to the
// heuristic for hosts the list cannot answer.
func PublicSuffixApex(host string) string {
	h := trimWWW(strings.ToLower(strings.TrimSuffix(host, ".")))
	if net.ParseIP(h) != nil || !strings.Contains(h, ".") {
		return h
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return ApexDomain(h)
	}
	return apex
}

func labelCount(host string) int {
	if host == "" {
		return 0
	}
	if net.ParseIP(host) != nil {
		return 1
	}
	return strings.Count(host, ".") + 1
}

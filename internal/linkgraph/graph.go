// Package linkgraph holds the crawl-time indexes over discovered pages: the
// internal link graph and the content fingerprint index.
//
// Neither type is safe for concurrent use; the scheduler serializes access.
package linkgraph

import "sort"

type idSet struct {
	order []int
	seen  map[int]struct{}
}

func (s *idSet) add(id int) bool {
	if s.seen == nil {
		s.seen = make(map[int]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Graph is a directed graph of canonical URLs. Nodes live in an arena and
// are addressed by integer id; forward and reverse adjacency are kept in
// step so inbound queries never scan the whole graph.
type Graph struct {
	ids    map[string]int
	urls   []string
	out    []idSet
	in     []idSet
	isPage []bool
	pages  int
}

func NewGraph() *Graph {
	return &Graph{ids: make(map[string]int)}
}

func (g *Graph) intern(url string) int {
	if id, ok := g.ids[url]; ok {
		return id
	}
	id := len(g.urls)
	g.ids[url] = id
	g.urls = append(g.urls, url)
	g.out = append(g.out, idSet{})
	g.in = append(g.in, idSet{})
	g.isPage = append(g.isPage, false)
	return id
}

// MarkPage records url as a successfully analyzed page.
func (g *Graph) MarkPage(url string) {
	id := g.intern(url)
	if !g.isPage[id] {
		g.isPage[id] = true
		g.pages++
	}
}

// IsPage reports whether url was marked as a page.
func (g *Graph) IsPage(url string) bool {
	id, ok := g.ids[url]
	return ok && g.isPage[id]
}

// AddEdges adds src -> t for every t in targets. Duplicate edges and
// self-loops are ignored. Cost is proportional to len(targets).
func (g *Graph) AddEdges(src string, targets []string) {
	from := g.intern(src)
	for _, t := range targets {
		to := g.intern(t)
		if to == from {
			continue
		}
		if g.out[from].add(to) {
			g.in[to].add(from)
		}
	}
}

// InboundCount is the number of distinct pages linking to url.
func (g *Graph) InboundCount(url string) int {
	id, ok := g.ids[url]
	if !ok {
		return 0
	}
	n := 0
	for _, src := range g.in[id].order {
		if g.isPage[src] {
			n++
		}
	}
	return n
}

// Sources returns the pages linking to url in insertion order.
func (g *Graph) Sources(url string) []string {
	id, ok := g.ids[url]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(g.in[id].order))
	for _, src := range g.in[id].order {
		if g.isPage[src] {
			res = append(res, g.urls[src])
		}
	}
	return res
}

// Outlinks returns the distinct targets of url in insertion order.
func (g *Graph) Outlinks(url string) []string {
	id, ok := g.ids[url]
	if !ok {
		return nil
	}
	res := make([]string, len(g.out[id].order))
	for i, to := range g.out[id].order {
		res[i] = g.urls[to]
	}
	return res
}

// PageCount returns the number of nodes marked as pages.
func (g *Graph) PageCount() int { return g.pages }

// NodeCount returns the number of interned URLs.
func (g *Graph) NodeCount() int { return len(g.urls) }

// Pages returns all pages sorted lexically.
func (g *Graph) Pages() []string {
	res := make([]string, 0, g.pages)
	for id, ok := range g.isPage {
		if ok {
			res = append(res, g.urls[id])
		}
	}
	sort.Strings(res)
	return res
}

// Edges returns the page-to-page edges keyed by source.
func (g *Graph) Edges() map[string][]string {
	res := make(map[string][]string, g.pages)
	for id, ok := range g.isPage {
		if !ok {
			continue
		}
		var targets []string
		for _, to := range g.out[id].order {
			if g.isPage[to] {
				targets = append(targets, g.urls[to])
			}
		}
		if len(targets) > 0 {
			res[g.urls[id]] = targets
		}
	}
	return res
}

// PageSubgraph renumbers the pages densely and returns their URLs (sorted)
// with adjacency restricted to edges whose endpoints are both pages.
func (g *Graph) PageSubgraph() ([]string, [][]int) {
	urls := g.Pages()
	local := make(map[int]int, len(urls))
	for i, u := range urls {
		local[g.ids[u]] = i
	}
	adj := make([][]int, len(urls))
	for i, u := range urls {
		for _, to := range g.out[g.ids[u]].order {
			if j, ok := local[to]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return urls, adj
}

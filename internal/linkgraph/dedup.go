package linkgraph

import "github.com/user/seo-crawler/internal/entity"

// DedupIndex groups URLs by content fingerprint in discovery order. The
// first URL of a group is canonical, later ones are duplicates.
type DedupIndex struct {
	groups map[string][]string
	order  []string
	dup    map[string]bool
}

func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		groups: make(map[string][]string),
		dup:    make(map[string]bool),
	}
}

// Add files url under hash and reports whether it duplicates an earlier
// URL. Re-adding a URL already in the group is a no-op.
func (d *DedupIndex) Add(hash, url string) bool {
	members, ok := d.groups[hash]
	if !ok {
		d.order = append(d.order, hash)
	}
	for _, m := range members {
		if m == url {
			return d.dup[url]
		}
	}
	d.groups[hash] = append(members, url)
	isDup := len(members) > 0
	if isDup {
		d.dup[url] = true
	}
	return isDup
}

// IsDuplicate reports whether url was flagged as a duplicate.
func (d *DedupIndex) IsDuplicate(url string) bool { return d.dup[url] }

// Group returns the URLs sharing hash.
func (d *DedupIndex) Group(hash string) []string {
	return append([]string(nil), d.groups[hash]...)
}

// Groups returns every fingerprint shared by more than one URL.
func (d *DedupIndex) Groups() []entity.DuplicateGroup {
	var res []entity.DuplicateGroup
	for _, h := range d.order {
		if urls := d.groups[h]; len(urls) > 1 {
			res = append(res, entity.DuplicateGroup{Hash: h, URLs: append([]string(nil), urls...)})
		}
	}
	return res
}

// Package memory holds in-process implementations of the repositories.
package memory

import (
	"context"
	"sync"
)

// VisitedSet is a mutex-guarded visited set for single-process crawls.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

func (s *VisitedSet) TryVisit(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[url]; ok {
		return false, nil
	}
	s.urls[url] = struct{}{}
	return true, nil
}

func (s *VisitedSet) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.urls)), nil
}

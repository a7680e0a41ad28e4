package isr

import (
	"context"
	"sync"
)

// MemoryStore keeps pages in process memory. Pages are copied on the way in
// and on the way out.
type MemoryStore struct {
	mu    sync.RWMutex
	pages map[string]Page
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages: make(map[string]Page),
	}
}

func (s *MemoryStore) Get(ctx context.Context, route string) (Page, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[route]
	if !ok {
		return Page{}, false, nil
	}
	return page.clone(), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, route string, page Page) error {
	page = page.clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[route] = page
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, route)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// CLAUDE:SUMMARY Cache administration: stats and full clear.
package archiviste

import "context"

// GetCacheStats reports the persisted cache's location and entry count.
func (s *Service) GetCacheStats(_ context.Context) (*CacheStats, error) {
	n, err := s.cache.Len()
	if err != nil {
		return nil, err
	}
	return &CacheStats{Path: s.cache.Path(), Entries: n}, nil
}

// ClearCache drops every cached entry and persists the empty store.
func (s *Service) ClearCache(_ context.Context) (*CacheStats, error) {
	if err := s.cache.Clear(); err != nil {
		return nil, err
	}
	return &CacheStats{Path: s.cache.Path(), Entries: 0}, nil
}

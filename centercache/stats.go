package centercache

import "github.com/puzpuzpuz/xsync/v3"

// Stats are the request counters of one center.
type Stats struct {
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	CacheHitRate  float64 `json:"cacheHitRate"`
}

type counters struct {
	requests *xsync.Counter
	hits     *xsync.Counter
	misses   *xsync.Counter
}

func (s *Service) counters(center string) *counters {
	c, _ := s.stats.LoadOrCompute(center, func() *counters {
		return &counters{
			requests: xsync.NewCounter(),
			hits:     xsync.NewCounter(),
			misses:   xsync.NewCounter(),
		}
	})
	return c
}

func (c *counters) snapshot() Stats {
	st := Stats{
		TotalRequests: c.requests.Value(),
		CacheHits:     c.hits.Value(),
		CacheMisses:   c.misses.Value(),
	}
	if st.TotalRequests > 0 {
		st.CacheHitRate = float64(st.CacheHits) / float64(st.TotalRequests) * 100
	}
	return st
}

// Stats returns the counters of one center. An unseen center reports zeros.
func (s *Service) Stats(center string) Stats {
	c, ok := s.stats.Load(canonicalCenter(center))
	if !ok {
		return Stats{}
	}
	return c.snapshot()
}

// AllStats returns the counters of every center seen so far.
func (s *Service) AllStats() map[string]Stats {
	out := make(map[string]Stats, s.stats.Size())
	s.stats.Range(func(center string, c *counters) bool {
		out[center] = c.snapshot()
		return true
	})
	return out
}

// ResetStats zeroes every counter.
func (s *Service) ResetStats() {
	s.stats.Clear()
}

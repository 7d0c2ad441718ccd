package core

// recentKeys remembers the last N event keys in insertion order.
type recentKeys struct {
	ring  []string
	next  int
	index map[string]struct{}
}

func newRecentKeys(capacity int) *recentKeys {
	capacity = max(capacity, 1)
	return &recentKeys{
		ring:  make([]string, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

func (r *recentKeys) Contains(key string) bool {
	_, ok := r.index[key]
	return ok
}

func (r *recentKeys) Add(key string) {
	if r.Contains(key) {
		return
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.index, old)
	}
	r.ring[r.next] = key
	r.index[key] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
}

func (r *recentKeys) Len() int {
	return len(r.index)
}

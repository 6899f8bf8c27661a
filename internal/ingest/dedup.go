package ingest

// dedupSet is an insertion-ordered set of event keys. When the set exceeds
// its soft cap the oldest half is evicted in one pass, which keeps the
// amortized cost of membership checks constant at ingestion rates.
type dedupSet struct {
	cap   int
	seen  map[string]struct{}
	order []string
}

func newDedupSet(cap int) *dedupSet {
	return &dedupSet{
		cap:   cap,
		seen:  make(map[string]struct{}, cap),
		order: make([]string, 0, cap),
	}
}

// Seen records key and reports whether it was already present.
func (d *dedupSet) Seen(key string) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	if len(d.order) > d.cap {
		d.evictOldestHalf()
	}
	return false
}

func (d *dedupSet) evictOldestHalf() {
	half := len(d.order) / 2
	for _, key := range d.order[:half] {
		delete(d.seen, key)
	}
	remaining := make([]string, len(d.order)-half, d.cap)
	copy(remaining, d.order[half:])
	d.order = remaining
}

// Size returns the current number of tracked keys.
func (d *dedupSet) Size() int {
	return len(d.order)
}

package resolver

import (
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/veldtnet/rrdns/dnsmsg"
)

// RecordCache is a concurrent store of resource records keyed by owner
// name. Records expire individually at timestamp+ttl: expired records are
// lazily removed on lookup and eagerly by Prune. The cache is shared by all
// concurrently running resolutions and handlers; a single mutex guards the
// whole map and critical sections never do I/O.
type RecordCache struct {
	mu      sync.Mutex
	records map[string][]*dnsmsg.ResourceRecord

	// ttlOverride caps cache residency independent of the TTL advertised by
	// the origin server. Zero defers to the record's own TTL.
	ttlOverride uint32

	dirty *abool.AtomicBool
}

// NewRecordCache returns an empty cache. If ttlOverride is greater than
// zero, it replaces the TTL of every record added.
func NewRecordCache(ttlOverride uint32) *RecordCache {
	return &RecordCache{
		records:     make(map[string][]*dnsmsg.ResourceRecord),
		ttlOverride: ttlOverride,
		dirty:       abool.New(),
	}
}

// Lookup returns the currently valid records matching owner name, type and
// class. Expired records of that owner are removed on the way, and the
// owner entry is dropped entirely once its set is empty. Returns an empty
// slice when nothing matches.
func (c *RecordCache) Lookup(name string, t dnsmsg.Type, class dnsmsg.Class) []*dnsmsg.ResourceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.records[name]
	if !ok {
		return nil
	}

	now := time.Now()
	valid := set[:0]
	for _, rr := range set {
		if rr.IsValid(now) {
			valid = append(valid, rr)
		}
	}
	if len(valid) == 0 {
		delete(c.records, name)
		return nil
	}
	c.records[name] = valid

	var matches []*dnsmsg.ResourceRecord
	for _, rr := range valid {
		if rr.Type == t && rr.Class == class {
			matches = append(matches, rr)
		}
	}
	return matches
}

// Add inserts a record, applying the cache's TTL override if configured.
// An existing record of the same owner with identical rdata is replaced,
// as the newly added data is assumed to be authoritative. Records with
// different rdata accumulate.
func (c *RecordCache) Add(rr *dnsmsg.ResourceRecord) {
	if c.ttlOverride > 0 {
		clone := *rr
		clone.TTL = c.ttlOverride
		rr = &clone
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name := rr.Name.String()
	set := c.records[name]
	kept := set[:0]
	for _, existing := range set {
		if !existing.SameData(rr) {
			kept = append(kept, existing)
		}
	}
	c.records[name] = append(kept, rr)
	c.dirty.Set()
}

// Prune removes all expired records and drops owners left without any.
// Lookup self-heals, so this is hygiene, not correctness.
func (c *RecordCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for name, set := range c.records {
		valid := set[:0]
		for _, rr := range set {
			if rr.IsValid(now) {
				valid = append(valid, rr)
			}
		}
		if len(valid) == 0 {
			delete(c.records, name)
		} else {
			c.records[name] = valid
		}
	}
}

// Clear drops all entries.
func (c *RecordCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string][]*dnsmsg.ResourceRecord)
	c.dirty.Set()
}

// Len returns the total number of cached records.
func (c *RecordCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, set := range c.records {
		n += len(set)
	}
	return n
}

// Dirty reports whether the cache changed since the last snapshot save.
func (c *RecordCache) Dirty() bool {
	return c.dirty.IsSet()
}

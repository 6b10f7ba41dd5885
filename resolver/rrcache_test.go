package resolver

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtnet/rrdns/dnsmsg"
)

func aRecord(name, addr string, ttl uint32) *dnsmsg.ResourceRecord {
	return dnsmsg.NewRecord(
		dnsmsg.ParseName(name),
		dnsmsg.TypeA, dnsmsg.ClassIN, ttl,
		dnsmsg.AData{Addr: netip.MustParseAddr(addr)},
	)
}

func TestCacheLookup(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)
	c.Add(aRecord("host.example.com.", "192.0.2.1", 60))
	c.Add(dnsmsg.NewRecord(
		dnsmsg.ParseName("www.example.com."),
		dnsmsg.TypeCNAME, dnsmsg.ClassIN, 60,
		dnsmsg.CNAMEData{Target: dnsmsg.ParseName("host.example.com.")},
	))

	set := c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN)
	require.Len(t, set, 1)
	assert.Equal(t, "192.0.2.1", set[0].Data.String())

	// Type and class must match.
	assert.Empty(t, c.Lookup("host.example.com.", dnsmsg.TypeCNAME, dnsmsg.ClassIN))
	assert.Empty(t, c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassCH))
	assert.Empty(t, c.Lookup("other.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN))

	require.Len(t, c.Lookup("www.example.com.", dnsmsg.TypeCNAME, dnsmsg.ClassIN), 1)
	assert.Equal(t, 2, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)

	expired := aRecord("host.example.com.", "192.0.2.1", 60)
	expired.Timestamp = time.Now().Add(-61 * time.Second)
	c.Add(expired)
	c.Add(aRecord("host.example.com.", "192.0.2.2", 60))

	// Only the fresh record survives the lookup.
	set := c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN)
	require.Len(t, set, 1)
	assert.Equal(t, "192.0.2.2", set[0].Data.String())
	assert.Equal(t, 1, c.Len())

	// An owner whose records all expired disappears entirely.
	gone := aRecord("gone.example.com.", "192.0.2.3", 30)
	gone.Timestamp = time.Now().Add(-time.Hour)
	c.Add(gone)
	assert.Empty(t, c.Lookup("gone.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN))
	assert.Equal(t, 1, c.Len())
}

func TestCacheAddDedup(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)
	c.Add(aRecord("host.example.com.", "192.0.2.1", 60))
	c.Add(aRecord("host.example.com.", "192.0.2.2", 60))
	assert.Equal(t, 2, c.Len())

	// Re-adding identical rdata replaces the old record instead of piling up.
	newer := aRecord("host.example.com.", "192.0.2.1", 120)
	c.Add(newer)
	assert.Equal(t, 2, c.Len())

	set := c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN)
	require.Len(t, set, 2)
	for _, rr := range set {
		if rr.Data.String() == "192.0.2.1" {
			assert.Equal(t, uint32(120), rr.TTL)
		}
	}
}

func TestCachePrune(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)
	c.Add(aRecord("fresh.example.com.", "192.0.2.1", 3600))
	stale := aRecord("stale.example.com.", "192.0.2.2", 30)
	stale.Timestamp = time.Now().Add(-time.Minute)
	c.Add(stale)

	c.Prune()
	assert.Equal(t, 1, c.Len())

	// Idempotent.
	c.Prune()
	assert.Equal(t, 1, c.Len())
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)
	c.Add(aRecord("host.example.com.", "192.0.2.1", 60))
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN))
}

func TestCacheTTLOverride(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(7)
	original := aRecord("host.example.com.", "192.0.2.1", 3600)
	c.Add(original)

	set := c.Lookup("host.example.com.", dnsmsg.TypeA, dnsmsg.ClassIN)
	require.Len(t, set, 1)
	assert.Equal(t, uint32(7), set[0].TTL)
	// The caller's record is left untouched.
	assert.Equal(t, uint32(3600), original.TTL)
}

func TestCacheDirty(t *testing.T) {
	t.Parallel()

	c := NewRecordCache(0)
	assert.False(t, c.Dirty())
	c.Add(aRecord("host.example.com.", "192.0.2.1", 60))
	assert.True(t, c.Dirty())
}

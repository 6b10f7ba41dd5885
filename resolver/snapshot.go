package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/veldtnet/rrdns/dnsmsg"
)

// The snapshot is a JSON list of record dicts carrying name, type, class,
// ttl and rdata. Timestamps do not round-trip: loaded records are treated
// as freshly received, so the snapshot carries TTLs, not absolute expiries.
//
// The cache never persists itself. The owning process saves the snapshot
// explicitly (on shutdown and periodically), which keeps partial writes out
// of the data structure's teardown path.

// Save writes a snapshot of all records.
func (c *RecordCache) Save(w io.Writer) error {
	c.mu.Lock()
	names := make([]string, 0, len(c.records))
	for name := range c.records {
		names = append(names, name)
	}
	sort.Strings(names)

	dicts := make([]dnsmsg.RecordDict, 0, len(names))
	for _, name := range names {
		for _, rr := range c.records[name] {
			dicts = append(dicts, rr.Dict())
		}
	}
	c.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dicts); err != nil {
		return err
	}
	c.dirty.UnSet()
	return nil
}

// Load replaces the cache contents with the records of a snapshot. Entries
// that fail to parse are skipped with a warning, so one stale entry does
// not invalidate the whole snapshot.
func (c *RecordCache) Load(r io.Reader) error {
	var dicts []dnsmsg.RecordDict
	if err := json.NewDecoder(r).Decode(&dicts); err != nil {
		return fmt.Errorf("decoding cache snapshot: %w", err)
	}

	records := make(map[string][]*dnsmsg.ResourceRecord)
	for _, d := range dicts {
		rr, err := dnsmsg.RecordFromDict(d)
		if err != nil {
			slog.Warn("resolver: skipping broken cache snapshot entry", "name", d.Name, "err", err)
			continue
		}
		name := rr.Name.String()
		records[name] = append(records[name], rr)
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	c.dirty.UnSet()
	return nil
}

// LoadFile loads a snapshot from disk. A missing or corrupt snapshot is not
// an error: the cache simply starts empty.
func (c *RecordCache) LoadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("resolver: failed to open cache snapshot", "path", path, "err", err)
		}
		return
	}
	defer func() { _ = f.Close() }()

	if err := c.Load(f); err != nil {
		slog.Warn("resolver: ignoring corrupt cache snapshot", "path", path, "err", err)
	}
}

// SaveFile writes a snapshot to disk via a temporary file and rename, so a
// failed write never leaves a truncated snapshot behind.
func (c *RecordCache) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rrdns-cache-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := c.Save(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

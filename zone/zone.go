// Package zone holds authoritative record sets loaded from master files
// (RFC 1035 §5, restricted to `name ttl TYPE data` lines). A zone is
// immutable after loading and safe for concurrent readers.
package zone

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/veldtnet/rrdns/dnsmsg"
)

// Zone maps canonical owner names to their record sets.
type Zone struct {
	records map[string][]*dnsmsg.ResourceRecord
}

// Lookup returns the records of the given type for a domain name. The
// returned slice is shared and must not be modified.
func (z *Zone) Lookup(name string, t dnsmsg.Type) []*dnsmsg.ResourceRecord {
	var matches []*dnsmsg.ResourceRecord
	for _, rr := range z.records[name] {
		if rr.Type == t {
			matches = append(matches, rr)
		}
	}
	return matches
}

// Names returns the number of owner names in the zone.
func (z *Zone) Names() int {
	return len(z.records)
}

// Parse reads a zone from master file text. Lines hold `name ttl TYPE data`,
// a `;` starts a comment, blank lines are skipped. Broken lines are
// collected into a single aggregated error; the returned zone holds all
// lines that did parse.
func Parse(r io.Reader) (*Zone, error) {
	z := &Zone{records: make(map[string][]*dnsmsg.ResourceRecord)}
	var result *multierror.Error

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, _, _ := strings.Cut(scanner.Text(), ";")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		rr, err := parseLine(fields)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		name := rr.Name.String()
		z.records[name] = append(z.records[name], rr)
	}
	if err := scanner.Err(); err != nil {
		result = multierror.Append(result, err)
	}
	return z, result.ErrorOrNil()
}

func parseLine(fields []string) (*dnsmsg.ResourceRecord, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("expected `name ttl TYPE data`, got %d fields", len(fields))
	}
	ttl, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad ttl %q: %w", fields[1], err)
	}
	t, err := dnsmsg.ParseType(fields[2])
	if err != nil {
		return nil, err
	}
	switch t {
	case dnsmsg.TypeA, dnsmsg.TypeCNAME, dnsmsg.TypeNS:
	default:
		return nil, fmt.Errorf("unsupported record type %s", t)
	}
	data, err := dnsmsg.ParseRData(t, fields[3])
	if err != nil {
		return nil, fmt.Errorf("bad %s data %q: %w", t, fields[3], err)
	}
	return dnsmsg.NewRecord(dnsmsg.ParseName(fields[0]), t, dnsmsg.ClassIN, uint32(ttl), data), nil
}

// LoadFile reads a zone from a master file on disk.
func LoadFile(path string) (*Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	z, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return z, nil
}

// RootHints extracts the bootstrap name-server addresses from a root hints
// zone: the A records of every server the root NS records point at.
func RootHints(z *Zone) []string {
	var hints []string
	for _, ns := range z.Lookup(".", dnsmsg.TypeNS) {
		for _, a := range z.Lookup(ns.Data.String(), dnsmsg.TypeA) {
			hints = append(hints, a.Data.String())
		}
	}
	return hints
}

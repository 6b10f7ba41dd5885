package dnsmsg

import (
	"encoding/binary"
	"fmt"
	"time"
)

// ResourceRecord is a single DNS resource record together with the time it
// was created or received. Timestamp plus TTL is the absolute expiry
// instant.
type ResourceRecord struct {
	Name  Name
	Type  Type
	Class Class
	TTL   uint32
	Data  RData

	Timestamp time.Time
}

// NewRecord returns a record with the timestamp set to now.
func NewRecord(name Name, t Type, class Class, ttl uint32, data RData) *ResourceRecord {
	return &ResourceRecord{
		Name:      name,
		Type:      t,
		Class:     class,
		TTL:       ttl,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ExpiresAt returns the absolute expiry instant.
func (rr *ResourceRecord) ExpiresAt() time.Time {
	return rr.Timestamp.Add(time.Duration(rr.TTL) * time.Second)
}

// IsValid reports whether the record has not yet expired at the given time.
func (rr *ResourceRecord) IsValid(now time.Time) bool {
	return now.Before(rr.ExpiresAt())
}

// Equal reports whether both records carry the same name, type, class and
// rdata. TTL and timestamp are ignored, matching the deduplication rule of
// the record cache.
func (rr *ResourceRecord) Equal(other *ResourceRecord) bool {
	return rr.Type == other.Type &&
		rr.Class == other.Class &&
		rr.Name.Equal(other.Name) &&
		rr.Data.equal(other.Data)
}

// SameData reports whether both records carry identical rdata, regardless
// of owner, type, class, TTL or timestamp.
func (rr *ResourceRecord) SameData(other *ResourceRecord) bool {
	return rr.Data.equal(other.Data)
}

// String returns the record in zone master file form.
func (rr *ResourceRecord) String() string {
	return fmt.Sprintf("%s %d %s %s %s", rr.Name, rr.TTL, rr.Class, rr.Type, rr.Data)
}

func (rr *ResourceRecord) appendWire(msg []byte, compress map[string]int) ([]byte, error) {
	msg, err := rr.Name.appendWire(msg, compress)
	if err != nil {
		return nil, err
	}
	msg = binary.BigEndian.AppendUint16(msg, uint16(rr.Type))
	msg = binary.BigEndian.AppendUint16(msg, uint16(rr.Class))
	msg = binary.BigEndian.AppendUint32(msg, rr.TTL)

	// Reserve the length prefix, then encode the rdata in place so that any
	// name compression offsets it registers are final.
	msg = append(msg, 0, 0)
	start := len(msg)
	msg, err = rr.Data.appendWire(msg, compress)
	if err != nil {
		return nil, err
	}
	rdlen := len(msg) - start
	if rdlen > 0xFFFF {
		return nil, decodeErrf("rdata of %s exceeds 65535 bytes", rr.Name)
	}
	binary.BigEndian.PutUint16(msg[start-2:], uint16(rdlen))
	return msg, nil
}

func decodeResourceRecord(buf []byte, off int) (*ResourceRecord, int, error) {
	name, off, err := decodeName(buf, off)
	if err != nil {
		return nil, 0, err
	}
	if off+10 > len(buf) {
		return nil, 0, decodeErrf("record for %s: truncated", name)
	}
	t := Type(binary.BigEndian.Uint16(buf[off:]))
	class := Class(binary.BigEndian.Uint16(buf[off+2:]))
	ttl := binary.BigEndian.Uint32(buf[off+4:])
	rdlen := int(binary.BigEndian.Uint16(buf[off+8:]))
	off += 10

	data, err := decodeRData(t, buf, off, rdlen)
	if err != nil {
		return nil, 0, err
	}
	return NewRecord(name, t, class, ttl, data), off + rdlen, nil
}

// RecordDict is the snapshot form of a resource record, the exchange format
// of the cache persistence boundary. The timestamp is deliberately not part
// of it: loaded records are treated as freshly received.
type RecordDict struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Class string `json:"class"`
	TTL   uint32 `json:"ttl"`
	Data  string `json:"rdata"`
}

// Dict returns the snapshot form of the record.
func (rr *ResourceRecord) Dict() RecordDict {
	return RecordDict{
		Name:  rr.Name.String(),
		Type:  rr.Type.String(),
		Class: rr.Class.String(),
		TTL:   rr.TTL,
		Data:  rr.Data.String(),
	}
}

// RecordFromDict rebuilds a record from its snapshot form, with a fresh
// timestamp.
func RecordFromDict(d RecordDict) (*ResourceRecord, error) {
	t, err := ParseType(d.Type)
	if err != nil {
		return nil, err
	}
	class, err := ParseClass(d.Class)
	if err != nil {
		return nil, err
	}
	data, err := ParseRData(t, d.Data)
	if err != nil {
		return nil, err
	}
	return NewRecord(ParseName(d.Name), t, class, d.TTL, data), nil
}

package dnsmsg

import (
	"bytes"
	"encoding/hex"
	"net/netip"
)

// RData is the type-specific payload of a resource record. It is a closed
// set: AData, CNAMEData, NSData and RawData for everything else.
type RData interface {
	// String returns the presentation form of the data, as used in zone
	// master files and cache snapshots.
	String() string

	appendWire(msg []byte, compress map[string]int) ([]byte, error)
	equal(other RData) bool
}

// AData is the rdata of an A record: a single IPv4 address.
type AData struct {
	Addr netip.Addr
}

func (a AData) String() string {
	return a.Addr.String()
}

func (a AData) appendWire(msg []byte, _ map[string]int) ([]byte, error) {
	if !a.Addr.Is4() {
		return nil, decodeErrf("A record data %s is not an IPv4 address", a.Addr)
	}
	b := a.Addr.As4()
	return append(msg, b[:]...), nil
}

func (a AData) equal(other RData) bool {
	o, ok := other.(AData)
	return ok && a.Addr == o.Addr
}

// CNAMEData is the rdata of a CNAME record: the canonical name of an alias.
type CNAMEData struct {
	Target Name
}

func (c CNAMEData) String() string {
	return c.Target.String()
}

func (c CNAMEData) appendWire(msg []byte, compress map[string]int) ([]byte, error) {
	return c.Target.appendWire(msg, compress)
}

func (c CNAMEData) equal(other RData) bool {
	o, ok := other.(CNAMEData)
	return ok && c.Target.Equal(o.Target)
}

// NSData is the rdata of an NS record: the name of an authoritative server.
type NSData struct {
	Server Name
}

func (n NSData) String() string {
	return n.Server.String()
}

func (n NSData) appendWire(msg []byte, compress map[string]int) ([]byte, error) {
	return n.Server.appendWire(msg, compress)
}

func (n NSData) equal(other RData) bool {
	o, ok := other.(NSData)
	return ok && n.Server.Equal(o.Server)
}

// RawData carries the rdata of record types this module does not interpret.
// It re-encodes byte for byte and stringifies to hex.
type RawData struct {
	Data []byte
}

func (r RawData) String() string {
	return hex.EncodeToString(r.Data)
}

func (r RawData) appendWire(msg []byte, _ map[string]int) ([]byte, error) {
	return append(msg, r.Data...), nil
}

func (r RawData) equal(other RData) bool {
	o, ok := other.(RawData)
	return ok && bytes.Equal(r.Data, o.Data)
}

// decodeRData decodes rdlen bytes of rdata at off, dispatching on the record
// type. The full message buffer is passed through because CNAME and NS
// targets may be compression pointers into earlier parts of the message.
func decodeRData(t Type, buf []byte, off, rdlen int) (RData, error) {
	end := off + rdlen
	if end > len(buf) {
		return nil, decodeErrf("%s rdata at offset %d: truncated", t, off)
	}

	switch t {
	case TypeA:
		if rdlen != 4 {
			return nil, decodeErrf("A rdata has length %d, want 4", rdlen)
		}
		return AData{Addr: netip.AddrFrom4([4]byte(buf[off:end]))}, nil

	case TypeCNAME, TypeNS:
		name, nameEnd, err := decodeName(buf, off)
		if err != nil {
			return nil, err
		}
		if nameEnd != end {
			return nil, decodeErrf("%s rdata length %d does not match name encoding", t, rdlen)
		}
		if t == TypeCNAME {
			return CNAMEData{Target: name}, nil
		}
		return NSData{Server: name}, nil

	default:
		return RawData{Data: append([]byte(nil), buf[off:end]...)}, nil
	}
}

// ParseRData parses the presentation form of rdata for the given type, the
// inverse of RData.String.
func ParseRData(t Type, s string) (RData, error) {
	switch t {
	case TypeA:
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, err
		}
		if !addr.Is4() {
			return nil, decodeErrf("A record data %s is not an IPv4 address", addr)
		}
		return AData{Addr: addr}, nil

	case TypeCNAME:
		return CNAMEData{Target: ParseName(s)}, nil

	case TypeNS:
		return NSData{Server: ParseName(s)}, nil

	default:
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return RawData{Data: data}, nil
	}
}

package dnsmsg

import (
	"strings"
)

const (
	maxLabelLen = 63

	// Compression pointers carry a 14 bit offset.
	maxCompressOffset = 0x3FFF

	// Label length bytes with both high bits set are compression pointers.
	pointerMask = 0xC0
)

// Name is a domain name: an ordered sequence of labels. The zero value is
// the root name. Comparison is case-sensitive byte equality.
type Name struct {
	labels []string
}

// ParseName parses the dotted presentation form of a domain name. A trailing
// root dot is accepted and implied, so "example.com" and "example.com." are
// the same name.
func ParseName(s string) Name {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}
	}
	return Name{labels: strings.Split(s, ".")}
}

// String returns the fully-qualified presentation form with a trailing root
// dot. The root name is ".".
func (n Name) String() string {
	if len(n.labels) == 0 {
		return "."
	}
	return strings.Join(n.labels, ".") + "."
}

// IsRoot reports whether the name is the root name.
func (n Name) IsRoot() bool {
	return len(n.labels) == 0
}

// LabelCount returns the number of labels, excluding the root label.
func (n Name) LabelCount() int {
	return len(n.labels)
}

// Equal reports whether both names consist of the same label sequence.
func (n Name) Equal(other Name) bool {
	if len(n.labels) != len(other.labels) {
		return false
	}
	for i, label := range n.labels {
		if label != other.labels[i] {
			return false
		}
	}
	return true
}

// Suffix returns the name consisting of the last depth labels, used to walk
// up the domain hierarchy. Suffix(0) is the root name, Suffix(LabelCount())
// is the name itself.
func (n Name) Suffix(depth int) Name {
	if depth >= len(n.labels) {
		return n
	}
	if depth <= 0 {
		return Name{}
	}
	return Name{labels: n.labels[len(n.labels)-depth:]}
}

// decodeName parses a wire-format name starting at off, following
// compression pointers. The returned offset is the position directly after
// the name in the caller's view: decoding never advances past the two bytes
// of the first pointer encountered.
func decodeName(buf []byte, off int) (Name, int, error) {
	var labels []string
	// Position after the name from the caller's perspective. Set once, when
	// the first pointer is followed.
	retOff := -1
	for {
		if off >= len(buf) {
			return Name{}, 0, decodeErrf("name at offset %d: truncated", off)
		}
		b := buf[off]
		switch {
		case b == 0:
			if retOff < 0 {
				retOff = off + 1
			}
			return Name{labels: labels}, retOff, nil

		case b&pointerMask == pointerMask:
			if off+1 >= len(buf) {
				return Name{}, 0, decodeErrf("name pointer at offset %d: truncated", off)
			}
			target := int(b&^pointerMask)<<8 | int(buf[off+1])
			// Pointers must reference strictly earlier data, otherwise
			// decoding would not terminate.
			if target >= off {
				return Name{}, 0, decodeErrf("name pointer at offset %d references offset %d", off, target)
			}
			if retOff < 0 {
				retOff = off + 2
			}
			off = target

		case b&pointerMask != 0:
			return Name{}, 0, decodeErrf("name at offset %d: reserved label flags", off)

		default:
			end := off + 1 + int(b)
			if end > len(buf) {
				return Name{}, 0, decodeErrf("name label at offset %d: truncated", off)
			}
			labels = append(labels, string(buf[off+1:end]))
			off = end
		}
	}
}

// appendWire appends the wire encoding of the name to msg. Previously
// written (partial) names are reused through compress, which maps canonical
// suffix strings to their offset in the message built so far. New suffixes
// are registered for future reuse. The root name is a single zero byte and
// is never compressed.
func (n Name) appendWire(msg []byte, compress map[string]int) ([]byte, error) {
	for i, label := range n.labels {
		suffix := Name{labels: n.labels[i:]}.String()
		if off, ok := compress[suffix]; ok {
			return append(msg, byte(pointerMask|off>>8), byte(off)), nil
		}
		if len(label) == 0 || len(label) > maxLabelLen {
			return nil, decodeErrf("cannot encode label %q of %s", label, n)
		}
		if len(msg) <= maxCompressOffset {
			compress[suffix] = len(msg)
		}
		msg = append(msg, byte(len(label)))
		msg = append(msg, label...)
	}
	return append(msg, 0), nil
}

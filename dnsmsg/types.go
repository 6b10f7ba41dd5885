package dnsmsg

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a DNS resource record type.
type Type uint16

// Record types handled by this module. Everything else is carried as opaque
// rdata (see RawData).
const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
)

func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	default:
		return "TYPE" + strconv.Itoa(int(t))
	}
}

// ParseType parses the presentation form of a record type, as used in zone
// master files and cache snapshots.
func ParseType(s string) (Type, error) {
	switch s {
	case "A":
		return TypeA, nil
	case "NS":
		return TypeNS, nil
	case "CNAME":
		return TypeCNAME, nil
	}
	if rest, ok := strings.CutPrefix(s, "TYPE"); ok {
		n, err := strconv.ParseUint(rest, 10, 16)
		if err == nil {
			return Type(n), nil
		}
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

// Class is a DNS class.
type Class uint16

// DNS classes. Only IN is in active use, the others exist for wire
// compatibility.
const (
	ClassIN Class = 1
	ClassCS Class = 2
	ClassCH Class = 3
	ClassHS Class = 4
)

func (c Class) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	default:
		return "CLASS" + strconv.Itoa(int(c))
	}
}

// ParseClass parses the presentation form of a class.
func ParseClass(s string) (Class, error) {
	switch s {
	case "IN":
		return ClassIN, nil
	case "CS":
		return ClassCS, nil
	case "CH":
		return ClassCH, nil
	case "HS":
		return ClassHS, nil
	}
	return 0, fmt.Errorf("unknown class %q", s)
}

// RCode is a DNS response code.
type RCode uint8

// Response codes from RFC 1035 §4.1.1.
const (
	RCodeNoError        RCode = 0
	RCodeFormatError    RCode = 1
	RCodeServerFailure  RCode = 2
	RCodeNameError      RCode = 3
	RCodeNotImplemented RCode = 4
	RCodeRefused        RCode = 5
)

func (rc RCode) String() string {
	switch rc {
	case RCodeNoError:
		return "NOERROR"
	case RCodeFormatError:
		return "FORMERR"
	case RCodeServerFailure:
		return "SERVFAIL"
	case RCodeNameError:
		return "NXDOMAIN"
	case RCodeNotImplemented:
		return "NOTIMP"
	case RCodeRefused:
		return "REFUSED"
	default:
		return "RCODE" + strconv.Itoa(int(rc))
	}
}

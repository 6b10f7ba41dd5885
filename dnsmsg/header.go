package dnsmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrDecode is wrapped by all errors reported for malformed wire data.
var ErrDecode = errors.New("malformed dns message")

func decodeErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// headerLen is the fixed size of the message header on the wire.
const headerLen = 12

// Flag bit positions within the second 16 bit word of the header.
const (
	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7

	opcodeShift = 11
	opcodeMask  = 0xF
	rcodeMask   = 0xF
)

// Header is the fixed DNS message header.
type Header struct {
	Ident  uint16
	Opcode uint8
	RCode  RCode

	Response           bool // QR
	Authoritative      bool // AA
	Truncated          bool // TC
	RecursionDesired   bool // RD
	RecursionAvailable bool // RA

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

func (h *Header) flags() uint16 {
	f := uint16(h.Opcode&opcodeMask)<<opcodeShift | uint16(h.RCode)&rcodeMask
	if h.Response {
		f |= flagQR
	}
	if h.Authoritative {
		f |= flagAA
	}
	if h.Truncated {
		f |= flagTC
	}
	if h.RecursionDesired {
		f |= flagRD
	}
	if h.RecursionAvailable {
		f |= flagRA
	}
	return f
}

func (h *Header) setFlags(f uint16) {
	h.Response = f&flagQR != 0
	h.Authoritative = f&flagAA != 0
	h.Truncated = f&flagTC != 0
	h.RecursionDesired = f&flagRD != 0
	h.RecursionAvailable = f&flagRA != 0
	h.Opcode = uint8(f >> opcodeShift & opcodeMask)
	h.RCode = RCode(f & rcodeMask)
}

func (h *Header) appendWire(msg []byte) []byte {
	msg = binary.BigEndian.AppendUint16(msg, h.Ident)
	msg = binary.BigEndian.AppendUint16(msg, h.flags())
	msg = binary.BigEndian.AppendUint16(msg, h.QDCount)
	msg = binary.BigEndian.AppendUint16(msg, h.ANCount)
	msg = binary.BigEndian.AppendUint16(msg, h.NSCount)
	return binary.BigEndian.AppendUint16(msg, h.ARCount)
}

func decodeHeader(buf []byte, off int) (Header, int, error) {
	if off+headerLen > len(buf) {
		return Header{}, 0, decodeErrf("header: truncated")
	}
	var h Header
	h.Ident = binary.BigEndian.Uint16(buf[off:])
	h.setFlags(binary.BigEndian.Uint16(buf[off+2:]))
	h.QDCount = binary.BigEndian.Uint16(buf[off+4:])
	h.ANCount = binary.BigEndian.Uint16(buf[off+6:])
	h.NSCount = binary.BigEndian.Uint16(buf[off+8:])
	h.ARCount = binary.BigEndian.Uint16(buf[off+10:])
	return h, off + headerLen, nil
}

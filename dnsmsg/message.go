// Package dnsmsg implements the DNS wire format of RFC 1035 §4 for the
// record types A, CNAME and NS: domain names with compression pointers, the
// message header, questions and resource records.
//
// Decoding never panics on malformed input; all such errors wrap ErrDecode.
package dnsmsg

import "fmt"

// MaxDatagramSize is the classic DNS-over-UDP message size limit.
const MaxDatagramSize = 512

// Message is a full DNS message.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []*ResourceRecord
	Authorities []*ResourceRecord
	Additionals []*ResourceRecord
}

// NewQuery returns a single-question message suitable for an iterative
// (non-recursive) lookup.
func NewQuery(ident uint16, q Question) *Message {
	return &Message{
		Header: Header{
			Ident:   ident,
			QDCount: 1,
		},
		Questions: []Question{q},
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("msg %d %s qd=%d an=%d ns=%d ar=%d",
		m.Header.Ident, m.Header.RCode,
		len(m.Questions), len(m.Answers), len(m.Authorities), len(m.Additionals))
}

// Pack encodes the message. The header counts are set from the actual
// section lengths. A single compression table spans the whole message, so
// names in later sections reuse earlier ones.
func (m *Message) Pack() ([]byte, error) {
	h := m.Header
	h.QDCount = uint16(len(m.Questions))
	h.ANCount = uint16(len(m.Answers))
	h.NSCount = uint16(len(m.Authorities))
	h.ARCount = uint16(len(m.Additionals))

	msg := h.appendWire(make([]byte, 0, MaxDatagramSize))
	compress := make(map[string]int)

	var err error
	for _, q := range m.Questions {
		if msg, err = q.appendWire(msg, compress); err != nil {
			return nil, err
		}
	}
	for _, section := range [][]*ResourceRecord{m.Answers, m.Authorities, m.Additionals} {
		for _, rr := range section {
			if msg, err = rr.appendWire(msg, compress); err != nil {
				return nil, err
			}
		}
	}
	return msg, nil
}

// Unpack decodes a message from a single datagram.
func Unpack(buf []byte) (*Message, error) {
	h, off, err := decodeHeader(buf, 0)
	if err != nil {
		return nil, err
	}
	m := &Message{Header: h}

	for range h.QDCount {
		var q Question
		if q, off, err = decodeQuestion(buf, off); err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
	}
	if m.Answers, off, err = decodeSection(buf, off, h.ANCount); err != nil {
		return nil, err
	}
	if m.Authorities, off, err = decodeSection(buf, off, h.NSCount); err != nil {
		return nil, err
	}
	if m.Additionals, _, err = decodeSection(buf, off, h.ARCount); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSection(buf []byte, off int, count uint16) ([]*ResourceRecord, int, error) {
	var records []*ResourceRecord
	for range count {
		rr, newOff, err := decodeResourceRecord(buf, off)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rr)
		off = newOff
	}
	return records, off, nil
}

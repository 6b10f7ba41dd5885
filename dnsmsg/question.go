package dnsmsg

import (
	"encoding/binary"
	"fmt"
)

// Question is a single entry of the question section.
type Question struct {
	Name  Name
	Type  Type
	Class Class
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}

// Equal reports whether both questions ask for the same name, type and
// class. Used to match responses against their outstanding query.
func (q Question) Equal(other Question) bool {
	return q.Type == other.Type &&
		q.Class == other.Class &&
		q.Name.Equal(other.Name)
}

func (q Question) appendWire(msg []byte, compress map[string]int) ([]byte, error) {
	msg, err := q.Name.appendWire(msg, compress)
	if err != nil {
		return nil, err
	}
	msg = binary.BigEndian.AppendUint16(msg, uint16(q.Type))
	return binary.BigEndian.AppendUint16(msg, uint16(q.Class)), nil
}

func decodeQuestion(buf []byte, off int) (Question, int, error) {
	name, off, err := decodeName(buf, off)
	if err != nil {
		return Question{}, 0, err
	}
	if off+4 > len(buf) {
		return Question{}, 0, decodeErrf("question for %s: truncated", name)
	}
	q := Question{
		Name:  name,
		Type:  Type(binary.BigEndian.Uint16(buf[off:])),
		Class: Class(binary.BigEndian.Uint16(buf[off+2:])),
	}
	return q, off + 4, nil
}

package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// Encoder writes packets to a byte stream
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one packet. Admin text packets are written as is.
func (e *Encoder) Encode(p *defs.Packet) error {
	buf, err := Marshal(p)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.Type, err)
	}
	return nil
}

// Marshal returns the wire form of a packet
func Marshal(p *defs.Packet) ([]byte, error) {
	if p.Kind == defs.KindText {
		return p.Body, nil
	}

	var magic [4]byte
	switch p.Kind {
	case defs.KindRequest:
		magic = defs.MagicRequest
	case defs.KindResponse:
		magic = defs.MagicResponse
	default:
		return nil, fmt.Errorf("cannot marshal packet of kind %s", p.Kind)
	}

	data := joinData(p)
	buf := make([]byte, defs.HeaderSize, defs.HeaderSize+len(data))
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Type))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(data)))
	return append(buf, data...), nil
}

func joinData(p *defs.Packet) []byte {
	names := p.Type.Args()
	var data []byte
	for i, name := range names {
		if i > 0 {
			data = append(data, 0)
		}
		data = append(data, p.Arg(name)...)
	}
	if p.Type.HasBody() {
		if len(names) > 0 {
			data = append(data, 0)
		}
		data = append(data, p.Body...)
	}
	return data
}

package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"gitlab.com/gearbroker.net/internal/static/errs"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

// Decoder reads packets from a byte stream. Binary packets start with a NUL
// byte; anything else is read as a newline terminated admin command.
type Decoder struct {
	r       *bufio.Reader
	maxSize uint32
}

// NewDecoder creates a decoder rejecting packets larger than maxSize bytes
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = defs.MaxPacketSize
	}
	return &Decoder{r: bufio.NewReader(r), maxSize: uint32(maxSize)}
}

// Decode returns the next packet. io.EOF is returned on a clean end of stream.
func (d *Decoder) Decode() (*defs.Packet, error) {
	first, err := d.r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] != 0 {
		return d.decodeText()
	}
	return d.decodeBinary()
}

// decodeText reads one admin line of at most maxSize bytes
func (d *Decoder) decodeText() (*defs.Packet, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if uint32(len(line)+len(chunk)) > d.maxSize {
			return nil, fmt.Errorf("%w: admin line exceeds %d bytes", errs.ErrPacketTooLarge, d.maxSize)
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == io.EOF && len(line) > 0 {
			break
		}
		return nil, err
	}
	return defs.NewText(strings.TrimRight(string(line), "\r\n")), nil
}

func (d *Decoder) decodeBinary() (*defs.Packet, error) {
	header := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return nil, err
	}

	var kind defs.Kind
	switch {
	case bytes.Equal(header[0:4], defs.MagicRequest[:]):
		kind = defs.KindRequest
	case bytes.Equal(header[0:4], defs.MagicResponse[:]):
		kind = defs.KindResponse
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrBadMagic, header[0:4])
	}

	packetType := defs.PacketType(binary.BigEndian.Uint32(header[4:8]))
	size := binary.BigEndian.Uint32(header[8:12])
	if size > d.maxSize {
		return nil, fmt.Errorf("%w: %s carries %d bytes", errs.ErrPacketTooLarge, packetType, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, fmt.Errorf("failed to read %s data: %w", packetType, err)
	}

	p := &defs.Packet{Kind: kind, Type: packetType, Args: map[string]string{}}
	splitData(p, data)
	return p, nil
}

// splitData fills the named arguments and body of p. Missing trailing
// arguments are left empty.
func splitData(p *defs.Packet, data []byte) {
	names := p.Type.Args()
	if len(names) == 0 {
		if p.Type.HasBody() {
			p.Body = data
		}
		return
	}

	n := len(names)
	if p.Type.HasBody() {
		n++
	}
	parts := bytes.SplitN(data, []byte{0}, n)
	for i, name := range names {
		if i < len(parts) {
			p.Args[name] = string(parts[i])
		}
	}
	if p.Type.HasBody() && len(parts) == n {
		p.Body = parts[n-1]
	}
}

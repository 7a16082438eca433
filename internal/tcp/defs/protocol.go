package defs

import "time"

// Protocol constants
const (
	DefaultHost = "localhost"
	DefaultPort = 4730

	// HeaderSize is magic, type and data size, four bytes each
	HeaderSize    = 12
	MaxPacketSize = 64 << 20

	ServerVersion = "1.0.0"

	// Configuration constants
	ConnectionRetryDelay = 100 * time.Millisecond
)

var (
	MagicRequest  = [4]byte{0, 'R', 'E', 'Q'}
	MagicResponse = [4]byte{0, 'R', 'E', 'S'}
)

// Kind tells binary requests and responses apart from admin text lines
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

package connectionmanager

import (
	"bufio"
	"net"
	"sync"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/tcp/codec"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

var _ primary.PacketSender = (*Session)(nil)

// Session owns one network connection and its outbound queue. Send only
// appends to the queue; WriteLoop is the single writer of the socket.
type Session struct {
	conn   net.Conn
	logger primary.Logger

	mu      sync.Mutex
	queue   []*defs.Packet
	closing bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an accepted connection
func NewSession(conn net.Conn, logger primary.Logger) *Session {
	return &Session{
		conn:   conn,
		logger: logger,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Send queues a packet. Packets sent after Drain or Close are discarded.
func (s *Session) Send(p *defs.Packet) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	s.wake()
}

func (s *Session) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// WriteLoop encodes queued packets until the session is closed, or until
// Drain was called and the queue is empty. It closes the connection on return.
func (s *Session) WriteLoop() error {
	defer s.Close()

	w := bufio.NewWriter(s.conn)
	enc := codec.NewEncoder(w)
	for {
		select {
		case <-s.done:
			return nil
		case <-s.notify:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closing := s.closing
		s.mu.Unlock()

		for _, p := range batch {
			if err := enc.Encode(p); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if closing {
			return nil
		}
	}
}

// Drain stops accepting packets and lets WriteLoop flush what is queued
func (s *Session) Drain() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()
}

// Close drops anything still queued and closes the connection
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

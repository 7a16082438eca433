// package tcp serves the Gearman protocol
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
	"gitlab.com/gearbroker.net/internal/tcp/codec"
	"gitlab.com/gearbroker.net/internal/tcp/connectionmanager"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
	"gitlab.com/gearbroker.net/internal/tcp/handlers"
)

// TCPServer accepts Gearman clients and workers and feeds their packets to the broker
type TCPServer struct {
	address       string
	maxPacketSize int
	broker        broker.IBrokerService
	logger        primary.Logger
	listener      net.Listener
	connectionMgr *connectionmanager.ConnectionManager
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	handlers      map[string]primary.AdminCommandHandler
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// WithMaxPacketSize bounds the data size of inbound packets
func WithMaxPacketSize(size int) TCPServerOption {
	return func(s *TCPServer) {
		s.maxPacketSize = size
	}
}

// NewTCPServer creates a new TCP server
func NewTCPServer(
	brokerService broker.IBrokerService,
	logger primary.Logger,
	options ...TCPServerOption,
) *TCPServer {
	server := &TCPServer{
		address:       fmt.Sprintf("%s:%d", defs.DefaultHost, defs.DefaultPort),
		maxPacketSize: defs.MaxPacketSize,
		broker:        brokerService,
		logger:        logger,
		connectionMgr: connectionmanager.NewConnectionManager(logger),
		stopCh:        make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	// Register admin command handlers
	server.setupAdminHandlers()

	return server
}

// setupAdminHandlers registers the text protocol commands
func (s *TCPServer) setupAdminHandlers() {
	s.handlers = map[string]primary.AdminCommandHandler{
		"status":  &handlers.StatusHandler{Broker: s.broker},
		"workers": &handlers.WorkersHandler{Broker: s.broker},
		"version": &handlers.VersionHandler{},
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.listener.Addr().String())

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the bound listen address, nil before Start
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines until ctx expires
func (s *TCPServer) Stop(ctx context.Context) error {
	var result *multierror.Error
	s.stopOnce.Do(func() {
		close(s.stopCh)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Error("Failed to close listener", "error", err)
				result = multierror.Append(result, err)
			}
		}

		if err := s.connectionMgr.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			result = multierror.Append(result, ctx.Err())
		}
	})
	return result.ErrorOrNil()
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
				continue
			}
		}

		// Handle connection in a goroutine
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads packets from one peer until it goes away
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	session := s.connectionMgr.Open(conn)
	peer := s.broker.Connect(session.RemoteAddr(), session)
	s.connectionMgr.Register(peer.ID(), session)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := session.WriteLoop(); err != nil {
			s.logger.Error("Failed to write packet", "connectionID", peer.ID(), "error", err)
		}
	}()

	// a stop racing with registration would miss this session
	select {
	case <-s.stopCh:
		session.Close()
	default:
	}

	decoder := codec.NewDecoder(conn, s.maxPacketSize)
	for {
		p, err := decoder.Decode()
		if err != nil {
			if !isClosedConnError(err) {
				s.logger.Error("Failed to read packet", "connectionID", peer.ID(), "error", err)
			}
			break
		}

		if p.Kind == defs.KindText {
			s.handleAdminCommand(session, p.Text())
			continue
		}
		s.broker.Handle(peer, p)
	}

	s.broker.Disconnect(peer)
	s.connectionMgr.Remove(peer.ID())
	session.Drain()
}

// handleAdminCommand answers one text protocol line
func (s *TCPServer) handleAdminCommand(session *connectionmanager.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	handler, exists := s.handlers[strings.ToLower(fields[0])]
	if !exists {
		s.logger.Warn("Unknown admin command", "command", fields[0])
		session.Send(defs.NewText("ERR UNKNOWN_COMMAND Unknown+server+command\n"))
		return
	}

	reply, err := handler.HandleCommand(context.Background(), fields[1:])
	if err != nil {
		s.logger.Error("Error handling admin command", "command", fields[0], "error", err)
		session.Send(defs.NewText("ERR COMMAND_FAILED " + strings.ReplaceAll(err.Error(), " ", "+") + "\n"))
		return
	}
	session.Send(defs.NewText(reply))
}

func isClosedConnError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

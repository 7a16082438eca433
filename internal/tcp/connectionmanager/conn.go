package connectionmanager

import (
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
)

// ConnectionManager tracks the live sessions by broker connection id
type ConnectionManager struct {
	sessions  map[string]*Session
	connMutex sync.RWMutex
	Logger    primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[string]*Session),
		Logger:   logger,
	}
}

// Open wraps a connection in a session that is not yet registered
func (cm *ConnectionManager) Open(conn net.Conn) *Session {
	return NewSession(conn, cm.Logger)
}

// Register makes a session reachable under its connection id
func (cm *ConnectionManager) Register(connectionID string, session *Session) {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	cm.sessions[connectionID] = session
}

// Remove forgets a session when its connection is closed
func (cm *ConnectionManager) Remove(connectionID string) {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	delete(cm.sessions, connectionID)
}

// Get returns the session for a connection id
func (cm *ConnectionManager) Get(connectionID string) (*Session, bool) {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	session, exists := cm.sessions[connectionID]
	return session, exists
}

// Count returns the number of registered sessions
func (cm *ConnectionManager) Count() int {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return len(cm.sessions)
}

// CloseAll closes every registered session
func (cm *ConnectionManager) CloseAll() error {
	cm.connMutex.RLock()
	sessions := make(map[string]*Session, len(cm.sessions))
	for id, s := range cm.sessions {
		sessions[id] = s
	}
	cm.connMutex.RUnlock()

	var result *multierror.Error
	for id, s := range sessions {
		if err := s.Close(); err != nil {
			cm.Logger.Error("Failed to close connection", "connectionID", id, "error", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/jmservera/casabot/internal/config"
	"github.com/jmservera/casabot/internal/metrics"
	"github.com/jmservera/casabot/internal/protocol"
	"github.com/jmservera/casabot/internal/session"
)

// WyomingServer accepts Wyoming protocol connections over TCP or a Unix
// socket and runs one session per connection.
type WyomingServer struct {
	config   *config.ServerConfig
	logger   *slog.Logger
	client   session.Transcriber
	info     *protocol.Info
	language string
	metrics  *metrics.Metrics

	listener net.Listener

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Active connections, keyed by session ID
	connections map[string]*activeConnection

	// Metrics (basic counters for now)
	connectionsAccepted uint64
	connectionsClosed   uint64
	readErrors          uint64
	mu                  sync.RWMutex
}

// activeConnection pairs a network connection with its session so shutdown
// can unblock readers and monitoring can snapshot session state.
type activeConnection struct {
	conn    net.Conn
	session *session.Session
}

// Statistics represents Wyoming server statistics
type Statistics struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	ConnectionsClosed   uint64 `json:"connections_closed"`
	ReadErrors          uint64 `json:"read_errors"`
	ActiveConnections   int    `json:"active_connections"`
}

// NewWyomingServer creates a new Wyoming server instance. The language is
// the backend hint passed to every session; empty means auto-detect.
func NewWyomingServer(cfg *config.ServerConfig, logger *slog.Logger,
	client session.Transcriber, language string, info *protocol.Info, m *metrics.Metrics) *WyomingServer {

	ctx, cancel := context.WithCancel(context.Background())

	return &WyomingServer{
		config:      cfg,
		logger:      logger,
		client:      client,
		info:        info,
		language:    language,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[string]*activeConnection),
	}
}

// Start begins listening for Wyoming connections
func (s *WyomingServer) Start() error {
	network := s.config.ListenNetwork()
	address := s.config.ListenAddress()

	if network == "unix" {
		// A stale socket file from an unclean shutdown blocks the listener
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove stale socket file",
				slog.String("path", address),
				slog.String("error", err.Error()),
			)
		}
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}

	s.listener = listener

	s.logger.Info("Wyoming server started",
		slog.String("network", network),
		slog.String("address", listener.Addr().String()),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully stops the Wyoming server
func (s *WyomingServer) Stop() error {
	s.logger.Info("Stopping Wyoming server...")

	// Cancel context to signal shutdown
	s.cancel()

	// Close the listener to unblock the accept loop
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("Error closing listener", slog.String("error", err.Error()))
		}
	}

	// Close active connections to unblock their read loops
	s.mu.RLock()
	for _, active := range s.connections {
		active.conn.Close()
	}
	s.mu.RUnlock()

	// Wait for all goroutines to finish
	s.wg.Wait()

	if s.config.ListenNetwork() == "unix" {
		os.Remove(s.config.ListenAddress())
	}

	// Log final statistics
	s.mu.RLock()
	connectionsAccepted := s.connectionsAccepted
	connectionsClosed := s.connectionsClosed
	readErrors := s.readErrors
	s.mu.RUnlock()

	s.logger.Info("Wyoming server stopped",
		slog.Uint64("connections_accepted", connectionsAccepted),
		slog.Uint64("connections_closed", connectionsClosed),
		slog.Uint64("read_errors", readErrors),
	)

	return nil
}

// Addr returns the listener address, useful when the configured port is 0
func (s *WyomingServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop is the main connection accepting loop
func (s *WyomingServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Error("Failed to accept connection", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection runs the event loop for a single client connection
func (s *WyomingServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sessionID := uuid.NewString()
	remoteAddr := conn.RemoteAddr().String()

	logger := s.logger.With(
		slog.String("session_id", sessionID),
		slog.String("remote_addr", remoteAddr),
	)

	s.mu.Lock()
	s.connectionsAccepted++
	s.mu.Unlock()

	s.metrics.RecordConnectionOpened()
	defer func() {
		s.metrics.RecordConnectionClosed()

		s.mu.Lock()
		s.connectionsClosed++
		s.mu.Unlock()
	}()

	sess := session.New(session.Config{
		ID:         sessionID,
		RemoteAddr: remoteAddr,
		Logger:     logger,
		Writer:     &connWriter{conn: conn},
		Client:     s.client,
		Info:       s.info,
		Language:   s.language,
		Metrics:    s.metrics,
	})

	s.registerConnection(sessionID, conn, sess)
	defer s.unregisterConnection(sessionID)

	// Cancelling this context abandons any in-flight backend call
	connCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	logger.Info("Client connected")

	reader := bufio.NewReaderSize(conn, s.config.ReadBufferSize)

	for {
		event, err := protocol.ReadEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Info("Client disconnected")
			} else {
				s.mu.Lock()
				s.readErrors++
				s.mu.Unlock()

				s.metrics.RecordProtocolError()
				logger.Error("Failed to read event", slog.String("error", err.Error()))
			}
			return
		}

		s.metrics.RecordEventReceived(event.Type)

		cont, err := sess.HandleEvent(connCtx, event)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Session error",
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()),
			)
		}

		if !cont {
			return
		}
	}
}

func (s *WyomingServer) registerConnection(id string, conn net.Conn, sess *session.Session) {
	s.mu.Lock()
	s.connections[id] = &activeConnection{conn: conn, session: sess}
	s.mu.Unlock()

	// Stop closes every registered connection after cancelling the context.
	// A connection accepted just before that sweep can register just after
	// it; closing here gives its read loop an exit path.
	if s.ctx.Err() != nil {
		conn.Close()
	}
}

func (s *WyomingServer) unregisterConnection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, id)
}

// GetSession returns the session with the given ID, if it is still active
func (s *WyomingServer) GetSession(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active, exists := s.connections[id]
	if !exists {
		return nil, false
	}
	return active.session, true
}

// GetAllSessions returns monitoring snapshots of all active sessions
func (s *WyomingServer) GetAllSessions() []session.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]session.SessionInfo, 0, len(s.connections))
	for _, active := range s.connections {
		infos = append(infos, active.session.GetSessionInfo())
	}
	return infos
}

// GetActiveSessionCount returns the number of open connections
func (s *WyomingServer) GetActiveSessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// GetStatistics returns current server statistics
func (s *WyomingServer) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Statistics{
		ConnectionsAccepted: s.connectionsAccepted,
		ConnectionsClosed:   s.connectionsClosed,
		ReadErrors:          s.readErrors,
		ActiveConnections:   len(s.connections),
	}
}

// connWriter serializes event writes to a connection. The session writes
// from a single goroutine today; the lock keeps that assumption out of the
// wire format.
type connWriter struct {
	conn net.Conn
	mu   sync.Mutex
}

func (w *connWriter) WriteEvent(e *protocol.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return protocol.WriteEvent(w.conn, e)
}

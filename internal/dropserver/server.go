// Package dropserver implements the mail-drop wire protocol: a TCP acceptor
// that runs one session per connection, and the per-session command state
// machine dispatching LOGIN, SEND, LIST, READ, DEL and QUIT against the
// spool, the login rate limiter and the directory authenticator.
package dropserver

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.io/infrasutra/maildrop/internal/auth"
	"github.io/infrasutra/maildrop/internal/journal"
	"github.io/infrasutra/maildrop/internal/ratelimit"
	"github.io/infrasutra/maildrop/internal/spool"
	"github.io/infrasutra/maildrop/internal/sse"
)

type Server struct {
	addr          string
	store         *spool.Store
	authenticator auth.Authenticator
	limiter       *ratelimit.LoginLimiter
	journal       *journal.Journal
	hub           *sse.Hub
	logger        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New wires a server. journal and hub are optional; a nil value disables
// audit recording or event broadcasting respectively.
func New(addr string, store *spool.Store, authenticator auth.Authenticator, limiter *ratelimit.LoginLimiter, jrnl *journal.Journal, hub *sse.Hub, logger *slog.Logger) *Server {
	return &Server{
		addr:          addr,
		store:         store,
		authenticator: authenticator,
		limiter:       limiter,
		journal:       jrnl,
		hub:           hub,
		logger:        logger,
		conns:         make(map[net.Conn]struct{}),
	}
}

func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return net.ErrClosed
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("drop server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept connection", "error", err)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr returns the bound listener address, or empty before ListenAndServe.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting, closes live connections and waits for their
// sessions to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	// A failing session must never take the acceptor or its siblings down.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panic", "remote", conn.RemoteAddr().String(), "panic", r)
		}
	}()

	newSession(s, conn).serve()
}

package dropserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.io/infrasutra/maildrop/internal/auth"
	"github.io/infrasutra/maildrop/internal/journal"
	"github.io/infrasutra/maildrop/internal/ratelimit"
	"github.io/infrasutra/maildrop/internal/spool"
)

// maxSubjectLen caps the subject line of a SEND.
const maxSubjectLen = 80

// bodyTerminator ends a SEND body: a line holding exactly one dot.
const bodyTerminator = "."

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateTerminated
)

// session is the per-connection protocol state machine. It is owned by a
// single goroutine; all cross-session coordination goes through the server's
// shared stores.
type session struct {
	srv    *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	state    sessionState
	identity string // canonical identity, empty while unauthenticated
	remote   string // client host without port, rate limiter key part
	logger   *slog.Logger
}

func newSession(srv *Server, conn net.Conn) *session {
	remote := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return &session{
		srv:    srv,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		remote: remote,
		logger: srv.logger.With("session", uuid.NewString(), "remote", remote),
	}
}

// serve reads and handles one command at a time until QUIT, a protocol
// failure or the peer going away. Terminated is absorbing: serve returns and
// the connection is closed by the caller.
func (s *session) serve() {
	s.logger.Info("session started")

	for s.state != stateTerminated {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// Transport error or peer disconnect: no reply attempted.
			s.logger.Info("session closed", "reason", err.Error())
			s.state = stateTerminated
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		switch strings.ToUpper(command) {
		case "LOGIN":
			s.handleLogin(rest)
		case "SEND":
			s.handleSend(rest)
		case "LIST":
			s.handleList()
		case "READ":
			s.handleRead(rest)
		case "DEL":
			s.handleDelete(rest)
		case "QUIT":
			// No reply beyond closing the connection.
			s.logger.Info("session quit")
			s.state = stateTerminated
		default:
			s.replyErr("unknown command")
		}
	}
}

// handleLogin runs the check-limiter → call-directory → record sequence. The
// directory call happens with no lock held anywhere in the core; only the
// short record updates touch the limiter's lock.
func (s *session) handleLogin(rest string) {
	if s.state == stateAuthenticated {
		s.replyErr("already logged in")
		return
	}

	args := strings.Fields(rest)
	if len(args) != 2 {
		s.replyErr("usage: LOGIN <username> <password>")
		return
	}
	username, password := args[0], args[1]
	key := ratelimit.Key{Addr: s.remote, Username: strings.ToLower(username)}

	if s.srv.limiter.IsBlocked(key) {
		s.recordLogin(username, journal.OutcomeBlocked)
		s.replyErr("too many failed logins, try again later")
		return
	}

	canonical, err := s.srv.authenticator.Authenticate(context.Background(), username, password)
	switch {
	case err == nil:
		s.srv.limiter.RecordSuccess(key)
		s.identity = canonical
		s.state = stateAuthenticated
		s.recordLogin(canonical, journal.OutcomeOK)
		s.logger.Info("login", "user", canonical)
		s.replyOK()
	case errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserNotFound):
		s.srv.limiter.RecordFailure(key)
		s.recordLogin(username, journal.OutcomeInvalid)
		s.replyErr("invalid credentials")
	default:
		// Directory trouble is not the client's fault: not counted.
		s.recordLogin(username, journal.OutcomeUnavailable)
		s.logger.Warn("directory authentication", "error", err)
		s.replyErr("directory service unavailable")
	}
}

func (s *session) handleSend(rest string) {
	receiver, subject, _ := strings.Cut(rest, " ")

	// The body frames belong to this SEND even when it is rejected, so they
	// are always consumed; the next read must start at a command boundary.
	body, ok := s.readBody()
	if !ok {
		return
	}

	if !s.requireLogin() {
		return
	}
	if receiver == "" {
		s.replyErr("usage: SEND <receiver> <subject>")
		return
	}
	if len(subject) > maxSubjectLen {
		s.replyErr("subject too long")
		return
	}

	id, err := s.srv.store.Deliver(receiver, s.identity, subject, body)
	if err != nil {
		s.logger.Warn("deliver", "receiver", receiver, "error", err)
		s.reply("ERR")
		return
	}

	s.recordDelivery(receiver, subject, id)
	s.logger.Info("delivered", "receiver", receiver, "id", id)
	s.replyOK()
}

func (s *session) handleList() {
	if !s.requireLogin() {
		return
	}

	summaries, err := s.srv.store.List(s.identity)
	if err != nil {
		if !errors.Is(err, spool.ErrNoMessages) {
			s.logger.Warn("list", "error", err)
		}
		s.reply("ERR")
		return
	}

	s.reply(strconv.Itoa(len(summaries)))
	for _, summary := range summaries {
		s.reply(fmt.Sprintf("%d: %s", summary.ID, summary.Subject))
	}
}

func (s *session) handleRead(rest string) {
	if !s.requireLogin() {
		return
	}
	id, ok := s.messageID(rest)
	if !ok {
		return
	}

	msg, err := s.srv.store.Read(s.identity, id)
	if err != nil {
		if !errors.Is(err, spool.ErrNotFound) {
			s.logger.Warn("read", "id", id, "error", err)
		}
		s.reply("ERR")
		return
	}

	s.reply("OK")
	body := msg.Body
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	s.writer.WriteString(body)
	s.writer.Flush()
}

func (s *session) handleDelete(rest string) {
	if !s.requireLogin() {
		return
	}
	id, ok := s.messageID(rest)
	if !ok {
		return
	}

	if err := s.srv.store.Delete(s.identity, id); err != nil {
		if !errors.Is(err, spool.ErrNotFound) {
			s.logger.Warn("delete", "id", id, "error", err)
		}
		s.reply("ERR")
		return
	}
	s.replyOK()
}

// readBody collects SEND body lines up to the terminator. A transport error
// mid-body terminates the session without a reply.
func (s *session) readBody() (string, bool) {
	var body strings.Builder
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.logger.Info("session closed", "reason", err.Error())
			s.state = stateTerminated
			return "", false
		}
		line = strings.TrimRight(line, "\r\n")
		if line == bodyTerminator {
			return body.String(), true
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
}

func (s *session) requireLogin() bool {
	if s.state == stateAuthenticated {
		return true
	}
	s.replyErr("login first")
	return false
}

func (s *session) messageID(rest string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || id < 1 {
		s.reply("ERR")
		return 0, false
	}
	return id, true
}

func (s *session) recordLogin(username, outcome string) {
	if s.srv.journal == nil {
		return
	}
	attempt := journal.LoginAttempt{
		ID:         uuid.NewString(),
		RemoteAddr: s.remote,
		Username:   username,
		Outcome:    outcome,
		CreatedAt:  time.Now(),
	}
	if err := s.srv.journal.RecordLogin(context.Background(), attempt); err != nil {
		s.logger.Warn("journal login", "error", err)
	}
}

func (s *session) recordDelivery(receiver, subject string, id int) {
	now := time.Now()
	if s.srv.journal != nil {
		delivery := journal.Delivery{
			ID:        uuid.NewString(),
			Sender:    s.identity,
			Recipient: receiver,
			Subject:   subject,
			MessageID: id,
			CreatedAt: now,
		}
		if err := s.srv.journal.RecordDelivery(context.Background(), delivery); err != nil {
			s.logger.Warn("journal delivery", "error", err)
		}
	}
	if s.srv.hub != nil {
		payload, _ := json.Marshal(map[string]any{
			"sender":    s.identity,
			"recipient": receiver,
			"subject":   subject,
			"messageId": id,
			"createdAt": now.UTC().Format(time.RFC3339),
		})
		s.srv.hub.Broadcast([]string{receiver, s.identity},
			[]byte(fmt.Sprintf("event: delivery\ndata: %s\n\n", payload)))
	}
}

func (s *session) replyOK() {
	s.reply("OK")
}

// replyErr writes ERR plus a reason line. Mailbox operation failures reply a
// bare ERR instead; only protocol and auth errors carry reasons.
func (s *session) replyErr(reason string) {
	s.reply("ERR")
	s.reply(reason)
}

func (s *session) reply(line string) {
	if _, err := s.writer.WriteString(line + "\n"); err != nil {
		s.state = stateTerminated
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.state = stateTerminated
	}
}

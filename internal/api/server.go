// Package api is the HTTP admin surface: operator login, paginated views of
// the delivery and login-attempt journal, mailbox summaries from the spool
// and a live delivery event stream.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.io/infrasutra/maildrop/internal/auth"
	"github.io/infrasutra/maildrop/internal/journal"
	"github.io/infrasutra/maildrop/internal/pagination"
	"github.io/infrasutra/maildrop/internal/spool"
	"github.io/infrasutra/maildrop/internal/sse"
)

type Server struct {
	store         *spool.Store
	journal       *journal.Journal
	authenticator auth.Authenticator
	tokens        *auth.TokenManager
	hub           *sse.Hub
	logger        *slog.Logger
	mux           *http.ServeMux
}

func NewServer(store *spool.Store, jrnl *journal.Journal, authenticator auth.Authenticator, tokens *auth.TokenManager, hub *sse.Hub, logger *slog.Logger) *Server {
	server := &Server{
		store:         store,
		journal:       jrnl,
		authenticator: authenticator,
		tokens:        tokens,
		hub:           hub,
		logger:        logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", server.handleLogin)
	mux.HandleFunc("/api/logout", server.handleLogout)
	mux.HandleFunc("/api/me", server.handleMe)
	mux.HandleFunc("/api/journal", server.handleJournal)
	mux.HandleFunc("/api/logins", server.handleLogins)
	mux.HandleFunc("/api/mailboxes/", server.handleMailbox)
	mux.HandleFunc("/api/stream", server.handleStream)
	mux.HandleFunc("/health", server.handleHealth)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	canonical, err := s.authenticator.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			http.Error(w, "directory service unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	token, err := s.tokens.Issue(canonical, now)
	if err != nil {
		http.Error(w, "unable to create session", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token, now)
	s.respondJSON(w, http.StatusOK, map[string]string{"username": canonical})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.tokens.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, err := s.sessionUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"username": username})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.sessionUser(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	recipient := strings.TrimSpace(r.URL.Query().Get("recipient"))
	deliveries, total, err := s.journal.ListDeliveries(r.Context(), recipient, params.Sort, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("list deliveries", "error", err)
		http.Error(w, "unable to list deliveries", http.StatusInternalServerError)
		return
	}

	entries := make([]deliveryEntry, 0, len(deliveries))
	for _, delivery := range deliveries {
		entries = append(entries, toDeliveryEntry(delivery))
	}
	s.respondJSON(w, http.StatusOK, listResponse[deliveryEntry]{
		Entries: entries,
		Total:   total,
		Page:    params.Page,
		HasNext: pagination.HasNext(params.Offset, params.Limit, total),
	})
}

func (s *Server) handleLogins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.sessionUser(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	attempts, total, err := s.journal.ListLogins(r.Context(), username, params.Sort, params.Offset, params.Limit)
	if err != nil {
		s.logger.Error("list logins", "error", err)
		http.Error(w, "unable to list logins", http.StatusInternalServerError)
		return
	}

	entries := make([]loginEntry, 0, len(attempts))
	for _, attempt := range attempts {
		entries = append(entries, toLoginEntry(attempt))
	}
	s.respondJSON(w, http.StatusOK, listResponse[loginEntry]{
		Entries: entries,
		Total:   total,
		Page:    params.Page,
		HasNext: pagination.HasNext(params.Offset, params.Limit, total),
	})
}

func (s *Server) handleMailbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.sessionUser(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	owner := strings.TrimPrefix(r.URL.Path, "/api/mailboxes/")
	if owner == "" || strings.Contains(owner, "/") {
		http.NotFound(w, r)
		return
	}

	summaries, err := s.store.List(owner)
	if err != nil {
		if errors.Is(err, spool.ErrNoMessages) {
			s.respondJSON(w, http.StatusOK, mailboxResponse{Owner: owner, Messages: []mailboxEntry{}})
			return
		}
		if errors.Is(err, spool.ErrInvalidName) {
			http.Error(w, "invalid mailbox name", http.StatusBadRequest)
			return
		}
		s.logger.Error("list mailbox", "owner", owner, "error", err)
		http.Error(w, "unable to list mailbox", http.StatusInternalServerError)
		return
	}

	entries := make([]mailboxEntry, 0, len(summaries))
	for _, summary := range summaries {
		entries = append(entries, mailboxEntry{ID: summary.ID, Subject: summary.Subject})
	}
	s.respondJSON(w, http.StatusOK, mailboxResponse{Owner: owner, Messages: entries})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := s.sessionUser(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	feed := strings.TrimSpace(r.URL.Query().Get("user"))
	if feed == "" {
		feed = sse.Feed
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(feed)
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) sessionUser(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.tokens.CookieName())
	if err != nil {
		return "", errors.New("missing session")
	}
	return s.tokens.Parse(cookie.Value, time.Now())
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.tokens.CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.tokens.MaxAge().Seconds()),
		Expires:  now.Add(s.tokens.MaxAge()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type listResponse[T any] struct {
	Entries []T   `json:"entries"`
	Total   int32 `json:"total"`
	Page    int32 `json:"page"`
	HasNext bool  `json:"hasNext"`
}

type deliveryEntry struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	MessageID int    `json:"messageId"`
	CreatedAt string `json:"createdAt"`
}

type loginEntry struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remoteAddr"`
	Username   string `json:"username"`
	Outcome    string `json:"outcome"`
	CreatedAt  string `json:"createdAt"`
}

type mailboxResponse struct {
	Owner    string         `json:"owner"`
	Messages []mailboxEntry `json:"messages"`
}

type mailboxEntry struct {
	ID      int    `json:"id"`
	Subject string `json:"subject"`
}

func toDeliveryEntry(delivery journal.Delivery) deliveryEntry {
	return deliveryEntry{
		ID:        delivery.ID,
		Sender:    delivery.Sender,
		Recipient: delivery.Recipient,
		Subject:   delivery.Subject,
		MessageID: delivery.MessageID,
		CreatedAt: delivery.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toLoginEntry(attempt journal.LoginAttempt) loginEntry {
	return loginEntry{
		ID:         attempt.ID,
		RemoteAddr: attempt.RemoteAddr,
		Username:   attempt.Username,
		Outcome:    attempt.Outcome,
		CreatedAt:  attempt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

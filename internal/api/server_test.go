package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/maildrop/internal/auth"
	"github.io/infrasutra/maildrop/internal/journal"
	"github.io/infrasutra/maildrop/internal/spool"
	"github.io/infrasutra/maildrop/internal/sse"
)

func newTestServer(t *testing.T) (*Server, *spool.Store, *journal.Journal) {
	t.Helper()
	ctx := context.Background()

	store, err := spool.New(t.TempDir())
	require.NoError(t, err)

	jrnl, err := journal.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { jrnl.Close() })
	require.NoError(t, jrnl.EnsureSchema(ctx))

	authenticator := auth.NewStatic(map[string]string{"admin": "s3cret"})
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(store, jrnl, authenticator, tokens, sse.NewHub(), logger)
	return server, store, jrnl
}

func loginCookie(t *testing.T, server *Server) *http.Cookie {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"admin","password":"s3cret"}`))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	cookies := recorder.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestLoginIssuesSession(t *testing.T) {
	server, _, _ := newTestServer(t)
	cookie := loginCookie(t, server)

	request := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "admin", payload["username"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server, _, _ := newTestServer(t)

	request := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"admin","password":"nope"}`))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestEndpointsRequireSession(t *testing.T) {
	server, _, _ := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/journal", "/api/logins", "/api/mailboxes/bob", "/api/stream"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		server.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, path)
	}
}

func TestJournalListing(t *testing.T) {
	server, _, jrnl := newTestServer(t)
	cookie := loginCookie(t, server)

	err := jrnl.RecordDelivery(context.Background(), journal.Delivery{
		ID:        uuid.NewString(),
		Sender:    "alice",
		Recipient: "bob",
		Subject:   "Hello",
		MessageID: 1,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/api/journal?recipient=bob", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var payload struct {
		Entries []deliveryEntry `json:"entries"`
		Total   int32           `json:"total"`
		HasNext bool            `json:"hasNext"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.EqualValues(t, 1, payload.Total)
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, "Hello", payload.Entries[0].Subject)
	assert.False(t, payload.HasNext)
}

func TestMailboxListing(t *testing.T) {
	server, store, _ := newTestServer(t)
	cookie := loginCookie(t, server)

	_, err := store.Deliver("bob", "alice", "Hello", "hi\n")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/api/mailboxes/bob", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	var payload mailboxResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "bob", payload.Owner)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, 1, payload.Messages[0].ID)
	assert.Equal(t, "Hello", payload.Messages[0].Subject)

	// An empty mailbox is an empty listing, not an error.
	request = httptest.NewRequest(http.MethodGet, "/api/mailboxes/carol", nil)
	request.AddCookie(cookie)
	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Empty(t, payload.Messages)
}

package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	ctx := context.Background()
	jrnl, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { jrnl.Close() })
	require.NoError(t, jrnl.EnsureSchema(ctx))
	return jrnl
}

func TestDeliveriesRoundTrip(t *testing.T) {
	jrnl := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		recipient := "bob"
		if i%2 == 1 {
			recipient = "carol"
		}
		err := jrnl.RecordDelivery(ctx, Delivery{
			ID:        uuid.NewString(),
			Sender:    "alice",
			Recipient: recipient,
			Subject:   fmt.Sprintf("msg %d", i),
			MessageID: i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	deliveries, total, err := jrnl.ListDeliveries(ctx, "", "newest", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, deliveries, 5)
	assert.Equal(t, "msg 4", deliveries[0].Subject, "newest first")

	deliveries, total, err = jrnl.ListDeliveries(ctx, "bob", "oldest", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, deliveries, 3)
	assert.Equal(t, "msg 0", deliveries[0].Subject)
	for _, delivery := range deliveries {
		assert.Equal(t, "bob", delivery.Recipient)
	}
}

func TestDeliveriesPagination(t *testing.T) {
	jrnl := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		err := jrnl.RecordDelivery(ctx, Delivery{
			ID:        uuid.NewString(),
			Sender:    "alice",
			Recipient: "bob",
			Subject:   fmt.Sprintf("msg %d", i),
			MessageID: i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page1, total, err := jrnl.ListDeliveries(ctx, "bob", "oldest", 0, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, page1, 3)

	page3, _, err := jrnl.ListDeliveries(ctx, "bob", "oldest", 6, 3)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "msg 6", page3[0].Subject)
}

func TestLoginsRoundTrip(t *testing.T) {
	jrnl := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	outcomes := []string{OutcomeInvalid, OutcomeInvalid, OutcomeBlocked, OutcomeOK}
	for i, outcome := range outcomes {
		err := jrnl.RecordLogin(ctx, LoginAttempt{
			ID:         uuid.NewString(),
			RemoteAddr: "10.0.0.1",
			Username:   "alice",
			Outcome:    outcome,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	attempts, total, err := jrnl.ListLogins(ctx, "alice", "oldest", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, attempts, 4)
	assert.Equal(t, OutcomeInvalid, attempts[0].Outcome)
	assert.Equal(t, OutcomeOK, attempts[3].Outcome)

	attempts, total, err = jrnl.ListLogins(ctx, "nobody", "newest", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, attempts)
}

package journal

import "time"

// Login attempt outcomes as recorded by the session engine.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"
	OutcomeBlocked     = "blocked"
	OutcomeUnavailable = "unavailable"
)

// Delivery is one accepted SEND: metadata only, the spool holds the message.
type Delivery struct {
	ID        string
	Sender    string
	Recipient string
	Subject   string
	MessageID int
	CreatedAt time.Time
}

// LoginAttempt is one LOGIN command and its outcome.
type LoginAttempt struct {
	ID         string
	RemoteAddr string
	Username   string
	Outcome    string
	CreatedAt  time.Time
}

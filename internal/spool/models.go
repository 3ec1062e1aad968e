package spool

// Message is one stored mail-drop record. IDs are unique within the owner's
// mailbox, assigned at delivery and never reused while the message exists;
// deleting the highest-numbered message frees its ID for the next delivery.
type Message struct {
	Owner   string
	ID      int
	Sender  string
	Subject string
	Body    string
}

// Summary is a listing entry: the stored message ID and its subject line.
type Summary struct {
	ID      int
	Subject string
}

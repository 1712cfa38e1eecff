package model

import "time"

// InboxMessage is a single unread email fetched from the watched mailbox.
// The mail transport owns the message; this is a one-cycle snapshot.
type InboxMessage struct {
	UID        uint32
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// PaymentEvent is the result of extracting a payment notification body.
type PaymentEvent struct {
	// Amount is the transfer amount as it appeared in the body, e.g. "250.0".
	Amount string
	// Sender is the payer display name, "Unknown" when the name pattern
	// did not match.
	Sender string
}

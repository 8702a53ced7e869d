package models

import "time"

// Message is a persisted point-to-point chat message.
type Message struct {
	ID          int64     `db:"id" json:"id"`
	SenderID    int64     `db:"sender_id" json:"sender_id"`
	RecipientID int64     `db:"recipient_id" json:"recipient_id"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Delivery is the payload of a receiveMessage event.
type Delivery struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SendRequest is the payload of a sendMessage event.
type SendRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Event names exchanged over the realtime channel.
const (
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Event is the envelope of every realtime frame.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

package domain

import "time"

// Message is one entry in a ticket thread. Messages are never edited.
type Message struct {
	ID          string
	TicketID    string
	SenderID    string
	SenderName  string
	SenderEmail string
	Text        string
	Attachments []Attachment
	CreatedAt   time.Time
}

// Attachment stores metadata for an uploaded file. It hangs off a ticket, a message, or both.
type Attachment struct {
	ID         string
	TicketID   *string
	MessageID  *string
	StorageKey string
	FileURL    string
	FileName   string
	FileType   string
	FileSize   int64
	UploadedBy string
	UploadedAt time.Time
}

package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus      TicketChangeType = "STATUS_CHANGE"
	ChangeTypePriority    TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeCategory    TicketChangeType = "CATEGORY_CHANGE"
	ChangeTypeTitle       TicketChangeType = "TITLE_CHANGE"
	ChangeTypeDescription TicketChangeType = "DESCRIPTION_CHANGE"
	ChangeTypeRating      TicketChangeType = "RATING"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ChangedBy  string
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}

package domain

import "time"

// StatusCounts aggregates ticket counts per lifecycle state.
type StatusCounts struct {
	Total      int64 `json:"total_tickets"`
	Open       int64 `json:"open_tickets"`
	InProgress int64 `json:"in_progress_tickets"`
	Resolved   int64 `json:"resolved_tickets"`
	Closed     int64 `json:"closed_tickets"`
}

// BucketCount is a labelled count, used for category and status breakdowns.
type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// DailyCount is the number of tickets created on one day.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// RatingSummary aggregates customer satisfaction.
type RatingSummary struct {
	Average float64 `json:"average_rating"`
	Total   int64   `json:"total_ratings"`
}

// Dashboard is the admin analytics snapshot.
type Dashboard struct {
	Stats             StatusCounts  `json:"stats"`
	CategoryBreakdown []BucketCount `json:"categoryBreakdown"`
	StatusBreakdown   []BucketCount `json:"statusBreakdown"`
	Trends            []DailyCount  `json:"trends"`
	Ratings           RatingSummary `json:"ratings"`
}

// RatedTicket is a ticket rating joined with its customer.
type RatedTicket struct {
	TicketID      string    `json:"id"`
	Title         string    `json:"title"`
	Rating        int       `json:"rating"`
	Feedback      *string   `json:"feedback"`
	CreatedAt     time.Time `json:"created_at"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
}

// UserActivity is a per-customer summary of their tickets.
type UserActivity struct {
	StatusCounts
	Rated int64 `json:"rated_tickets"`
}

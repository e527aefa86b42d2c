package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Ticket mirrors the server's ticket representation.
type Ticket struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Rating      *int      `json:"rating"`
	Feedback    *string   `json:"feedback"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one entry in a ticket thread.
type Message struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	SenderEmail string    `json:"sender_email"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewTicket is the create-ticket form.
type NewTicket struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}

// Register creates a customer account and returns its id. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterInput) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/auth/register", "", in, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// ListTickets returns the caller's tickets, or all tickets for admins.
func (c *Client) ListTickets(ctx context.Context, status string) ([]Ticket, error) {
	path := "/api/tickets"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out struct {
		Tickets []Ticket `json:"tickets"`
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

// GetTicket fetches one ticket.
func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	var out struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/tickets/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

// CreateTicket opens a ticket.
func (c *Client) CreateTicket(ctx context.Context, in NewTicket) (*Ticket, error) {
	var out struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/tickets", in, &out); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

// UpdateTicketStatus sets the ticket status.
func (c *Client) UpdateTicketStatus(ctx context.Context, id, status string) (*Ticket, error) {
	var out struct {
		Ticket Ticket `json:"ticket"`
	}
	body := map[string]string{"status": status}
	if err := c.Do(ctx, http.MethodPut, "/api/tickets/"+url.PathEscape(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

// ListMessages returns the thread oldest first.
func (c *Client) ListMessages(ctx context.Context, ticketID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/messages/ticket/"+url.PathEscape(ticketID), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts to a ticket thread.
func (c *Client) SendMessage(ctx context.Context, ticketID, text string) (*Message, error) {
	var out struct {
		Data Message `json:"data"`
	}
	body := map[string]string{"text": text}
	if err := c.Do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(ticketID), body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

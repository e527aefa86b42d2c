package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Category    string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters. Owner scoping is applied by the service.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketPatch holds optional admin edits.
type TicketPatch struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
}

// RatingInput is a customer's satisfaction score.
type RatingInput struct {
	Rating   int
	Feedback *string
}

// authorizeTicket loads the ticket then applies the owner-or-admin guard.
// A missing ticket is NotFound before any ownership decision.
func (s *TicketService) authorizeTicket(ctx context.Context, identity auth.Identity, ticketID string) (*domain.Ticket, error) {
	if !validID(ticketID) {
		return nil, apperrors.NewNotFound("Ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("Ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if err := auth.CheckOwnerOrAdmin(identity, ticket.UserID); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Create opens a ticket owned by the caller.
func (s *TicketService) Create(ctx context.Context, identity auth.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		UserID:      identity.UserID,
		Category:    strings.TrimSpace(input.Category),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Category == "" || ticket.Title == "" || ticket.Description == "" {
		return nil, apperrors.NewValidationError("Category, title, and description are required", nil)
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityNormal
	}
	if !ticket.Priority.Valid() {
		return nil, apperrors.NewValidationError("Invalid priority", map[string]any{"priority": ticket.Priority})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket, actorOf(identity), events.TicketCreatedPayload{
		Category: ticket.Category,
		Priority: ticket.Priority,
		Title:    ticket.Title,
	}))
	return ticket, nil
}

// List returns tickets newest first. Customers only ever see their own.
func (s *TicketService) List(ctx context.Context, identity auth.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("Invalid status", map[string]any{"status": st})
		}
	}
	for _, pr := range filter.Priorities {
		if !pr.Valid() {
			return nil, apperrors.NewValidationError("Invalid priority", map[string]any{"priority": pr})
		}
	}
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Category:   filter.Category,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !identity.IsAdmin() {
		owner := identity.UserID
		repoFilter.UserID = &owner
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Get returns one ticket to its owner or an admin.
func (s *TicketService) Get(ctx context.Context, identity auth.Identity, ticketID string) (*domain.Ticket, error) {
	return s.authorizeTicket(ctx, identity, ticketID)
}

// UpdateStatus changes the lifecycle state. Admins may set any status;
// an owner may only close their own ticket.
func (s *TicketService) UpdateStatus(ctx context.Context, identity auth.Identity, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if status == "" {
		return nil, apperrors.NewValidationError("Status is required", nil)
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("Invalid status", map[string]any{"status": status})
	}
	ticket, err := s.authorizeTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && status != domain.TicketStatusClosed {
		return nil, apperrors.NewForbidden("Only admins can set this status")
	}
	if ticket.Status == status {
		return ticket, nil
	}

	oldStatus := ticket.Status
	ticket.Status = status
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.recordHistory(ctx, identity, ticket.ID, domain.ChangeTypeStatus, "status", oldStatus, status)
	s.publish(ctx, events.NewEvent(events.EventTicketStatusChanged, ticket, actorOf(identity), events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
	}))
	return ticket, nil
}

// Update applies an admin patch to any ticket field, recording one history entry per change.
func (s *TicketService) Update(ctx context.Context, identity auth.Identity, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	if err := auth.CheckAdmin(identity); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	ticket, err := s.authorizeTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}

	type change struct {
		kind          domain.TicketChangeType
		field         string
		before, after any
	}
	var changes []change
	if patch.Title != nil && strings.TrimSpace(*patch.Title) != ticket.Title {
		v := strings.TrimSpace(*patch.Title)
		changes = append(changes, change{domain.ChangeTypeTitle, "title", ticket.Title, v})
		ticket.Title = v
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != ticket.Description {
		v := strings.TrimSpace(*patch.Description)
		changes = append(changes, change{domain.ChangeTypeDescription, "description", ticket.Description, v})
		ticket.Description = v
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) != ticket.Category {
		v := strings.TrimSpace(*patch.Category)
		changes = append(changes, change{domain.ChangeTypeCategory, "category", ticket.Category, v})
		ticket.Category = v
	}
	if patch.Priority != nil && *patch.Priority != ticket.Priority {
		changes = append(changes, change{domain.ChangeTypePriority, "priority", ticket.Priority, *patch.Priority})
		ticket.Priority = *patch.Priority
	}
	oldStatus := ticket.Status
	if patch.Status != nil && *patch.Status != ticket.Status {
		changes = append(changes, change{domain.ChangeTypeStatus, "status", ticket.Status, *patch.Status})
		ticket.Status = *patch.Status
	}
	if len(changes) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	fields := make([]string, 0, len(changes))
	for _, ch := range changes {
		s.recordHistory(ctx, identity, ticket.ID, ch.kind, ch.field, ch.before, ch.after)
		fields = append(fields, ch.field)
	}
	s.publish(ctx, events.NewEvent(events.EventTicketUpdated, ticket, actorOf(identity), events.TicketUpdatedPayload{Fields: fields}))
	if ticket.Status != oldStatus {
		s.publish(ctx, events.NewEvent(events.EventTicketStatusChanged, ticket, actorOf(identity), events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		}))
	}
	return ticket, nil
}

func validatePatch(patch TicketPatch) error {
	if patch.Title == nil && patch.Description == nil && patch.Category == nil && patch.Priority == nil && patch.Status == nil {
		return apperrors.NewValidationError("No fields to update", nil)
	}
	details := map[string]any{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		details["title"] = "Title cannot be empty"
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		details["description"] = "Description cannot be empty"
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		details["category"] = "Category cannot be empty"
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		details["priority"] = "Invalid priority"
	}
	if patch.Status != nil && !patch.Status.Valid() {
		details["status"] = "Invalid status"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("Validation failed", details)
	}
	return nil
}

// Rate stores the owner's rating. Only resolved or closed tickets can be rated.
func (s *TicketService) Rate(ctx context.Context, identity auth.Identity, ticketID string, input RatingInput) (*domain.Ticket, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewValidationError("Rating must be between 1 and 5", nil)
	}
	ticket, err := s.authorizeTicket(ctx, identity, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != identity.UserID {
		return nil, apperrors.NewForbidden("Only the ticket owner can rate this ticket")
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewValidationError("Only resolved or closed tickets can be rated", nil)
	}

	var oldRating any
	if ticket.Rating != nil {
		oldRating = *ticket.Rating
	}
	rating := input.Rating
	ticket.Rating = &rating
	if input.Feedback != nil {
		fb := strings.TrimSpace(*input.Feedback)
		ticket.Feedback = &fb
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("rate ticket: %w", err)
	}
	s.recordHistory(ctx, identity, ticket.ID, domain.ChangeTypeRating, "rating", oldRating, rating)
	s.publish(ctx, events.NewEvent(events.EventTicketRated, ticket, actorOf(identity), events.TicketRatedPayload{Rating: rating}))
	return ticket, nil
}

// History lists audit entries oldest first.
func (s *TicketService) History(ctx context.Context, identity auth.Identity, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.authorizeTicket(ctx, identity, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// recordHistory is best effort: the ticket row is already written.
func (s *TicketService) recordHistory(ctx context.Context, identity auth.Identity, ticketID string, kind domain.TicketChangeType, field string, oldValue, newValue any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangedBy:  identity.UserID,
		ChangeType: kind,
		OldValue:   map[string]any{field: oldValue},
		NewValue:   map[string]any{field: newValue},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record ticket history failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(kind)),
			zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorOf(identity auth.Identity) events.Actor {
	return events.Actor{UserID: identity.UserID, Role: identity.Role}
}

// validID reports whether id can name a row. Postgres rejects a malformed uuid
// with an error instead of returning no rows.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

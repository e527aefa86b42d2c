package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

var (
	customerA = auth.Identity{UserID: "user-a", Email: "a@x.com", Role: domain.RoleCustomer}
	customerB = auth.Identity{UserID: "user-b", Email: "b@x.com", Role: domain.RoleCustomer}
	admin     = auth.Identity{UserID: "admin-1", Email: "admin@x.com", Role: domain.RoleAdmin}
)

// idSeq hands out uuids like the column default does.
type idSeq struct{}

func (idSeq) next() string {
	return uuid.NewString()
}

type fakeUserRepo struct {
	mu        sync.Mutex
	seq       idSeq
	users     map[string]*domain.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if user.ID == "" {
		user.ID = r.seq.next()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == repository.NormalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, role *domain.Role, _, _ int) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if role == nil || u.Role == *role {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     idSeq
	tickets map[string]*domain.Ticket
	filters []repository.TicketFilter
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = r.seq.next()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.tickets[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	t.UpdatedAt = time.Now()
	cp := *t
	r.tickets[t.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	var out []domain.Ticket
	for _, t := range r.tickets {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		if f.SearchTerm != nil && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(*f.SearchTerm)) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// seed stores a ticket directly and returns it.
func (r *fakeTicketRepo) seed(owner string, status domain.TicketStatus) *domain.Ticket {
	t := &domain.Ticket{
		UserID:      owner,
		Category:    "billing",
		Title:       "Card declined",
		Description: "payment fails",
		Status:      status,
		Priority:    domain.TicketPriorityNormal,
	}
	_ = r.Create(context.Background(), t)
	return t
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
	err     error
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	h.ID = fmt.Sprintf("hist-%d", len(r.entries)+1)
	h.CreatedAt = time.Now()
	r.entries = append(r.entries, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	seq      idSeq
	messages []domain.Message
}

func (r *fakeMessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.seq.next()
	m.CreatedAt = time.Now()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	seq         idSeq
	attachments map[string]domain.Attachment
	messages    *fakeMessageRepo
	createErr   error
}

func newFakeAttachmentRepo(messages *fakeMessageRepo) *fakeAttachmentRepo {
	return &fakeAttachmentRepo{attachments: map[string]domain.Attachment{}, messages: messages}
}

func (r *fakeAttachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if a.ID == "" {
		a.ID = r.seq.next()
	}
	a.UploadedAt = time.Now()
	r.attachments[a.ID] = *a
	return nil
}

func (r *fakeAttachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *fakeAttachmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attachments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.attachments, id)
	return nil
}

func (r *fakeAttachmentRepo) ListByMessage(_ context.Context, messageID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.attachments {
		if a.MessageID != nil && *a.MessageID == messageID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	msgs, _ := r.messages.ListByTicket(ctx, ticketID)
	inTicket := map[string]bool{}
	for _, m := range msgs {
		inTicket[m.ID] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.attachments {
		if (a.TicketID != nil && *a.TicketID == ticketID) || (a.MessageID != nil && inTicket[*a.MessageID]) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]domain.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: map[string]domain.Device{}}
}

func (r *fakeDeviceRepo) Upsert(_ context.Context, d *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := d.UserID + "/" + d.DeviceID
	if existing, ok := r.devices[key]; ok {
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
	} else {
		d.ID = fmt.Sprintf("dev-%d", len(r.devices)+1)
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	r.devices[key] = *d
	return nil
}

func (r *fakeDeviceRepo) ListByUser(_ context.Context, userID string) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

type fakeAnalyticsRepo struct {
	mu        sync.Mutex
	calls     int
	dashboard domain.Dashboard
	ratings   []domain.RatedTicket
	limit     int
}

func (r *fakeAnalyticsRepo) Dashboard(context.Context) (*domain.Dashboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	d := r.dashboard
	return &d, nil
}

func (r *fakeAnalyticsRepo) RecentRatings(_ context.Context, limit int) ([]domain.RatedTicket, error) {
	r.limit = limit
	return r.ratings, nil
}

func (r *fakeAnalyticsRepo) UserActivity(_ context.Context, userID string) (*domain.UserActivity, error) {
	return &domain.UserActivity{StatusCounts: domain.StatusCounts{Total: 2, Open: 1, Closed: 1}, Rated: 1}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

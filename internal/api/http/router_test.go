package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
)

const (
	accessSecret  = "test-access-secret"
	refreshSecret = "test-refresh-secret"

	ticketA = "3f6d1c7e-52a4-4c1b-9d0e-7a8b9c0d1e2a"
	ticketB = "8a2e4b6c-1d3f-4e5a-8b7c-9d0e1f2a3b4c"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (r *memUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = "user-" + u.Email
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memUsers) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUsers) List(context.Context, *domain.Role, int, int) ([]domain.User, error) {
	return nil, nil
}

type memTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

func (r *memTickets) Create(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.tickets[t.ID] = *t
	return nil
}

func (r *memTickets) Update(_ context.Context, t *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[t.ID] = *t
	return nil
}

func (r *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r *memTickets) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if f.UserID == nil || *f.UserID == t.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

type nopHistory struct{}

func (nopHistory) Create(context.Context, *domain.TicketHistory) error { return nil }
func (nopHistory) ListByTicket(context.Context, string) ([]domain.TicketHistory, error) {
	return nil, nil
}

type nopMessages struct{}

func (nopMessages) Create(context.Context, *domain.Message) error { return nil }
func (nopMessages) GetByID(context.Context, string) (*domain.Message, error) {
	return nil, pgx.ErrNoRows
}
func (nopMessages) ListByTicket(context.Context, string) ([]domain.Message, error) {
	return nil, nil
}

type memAttachments struct {
	mu          sync.Mutex
	attachments map[string]domain.Attachment
}

func (r *memAttachments) Create(_ context.Context, a *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.UploadedAt = time.Now()
	r.attachments[a.ID] = *a
	return nil
}

func (r *memAttachments) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *memAttachments) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attachments, id)
	return nil
}

func (r *memAttachments) ListByMessage(context.Context, string) ([]domain.Attachment, error) {
	return nil, nil
}

func (r *memAttachments) ListByTicket(context.Context, string) ([]domain.Attachment, error) {
	return nil, nil
}

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter *IPRateLimiter) *testServer {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{AccessSecret: accessSecret, RefreshSecret: refreshSecret})
	require.NoError(t, err)

	hash, err := auth.HashPassword("Test@123", bcrypt.MinCost)
	require.NoError(t, err)
	users := &memUsers{users: map[string]domain.User{
		"user-a":  {ID: "user-a", Name: "Ann", Email: "a@x.com", Phone: "5551234567", PasswordHash: hash, Role: domain.RoleCustomer},
		"user-b":  {ID: "user-b", Name: "Bob", Email: "b@x.com", Phone: "5551234568", PasswordHash: hash, Role: domain.RoleCustomer},
		"admin-1": {ID: "admin-1", Name: "Root", Email: "admin@x.com", Phone: "5550000000", PasswordHash: hash, Role: domain.RoleAdmin},
	}}
	tickets := &memTickets{tickets: map[string]domain.Ticket{
		ticketB: {ID: ticketB, UserID: "user-b", Category: "billing", Title: "B's ticket", Description: "d", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityNormal},
		ticketA: {ID: ticketA, UserID: "user-a", Category: "billing", Title: "A's ticket", Description: "d", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityNormal},
	}}

	metrics := observability.NewMetrics()
	authSvc := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.AuthDependencies{
		UserRepo: users,
		Tokens:   tokens,
		Events:   metrics,
	})
	ticketSvc := service.NewTicketService(service.TicketDependencies{TicketRepo: tickets, HistoryRepo: nopHistory{}})
	profileSvc := service.NewProfileService(service.ProfileDependencies{UserRepo: users})
	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	attachmentSvc := service.NewAttachmentService(config.StorageConfig{
		MaxFileSize:  1 << 20,
		AllowedTypes: []string{"image/png", "application/pdf"},
	}, service.AttachmentDependencies{
		Tickets:        ticketSvc,
		MessageRepo:    nopMessages{},
		AttachmentRepo: &memAttachments{attachments: map[string]domain.Attachment{}},
		Store:          blobs,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	RegisterMiddlewares(app, MiddlewareConfig{Metrics: metrics, Timeout: 5 * time.Second})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-desk", "test"),
		Auth:           handlers.NewAuthHandler(authSvc),
		Profile:        handlers.NewProfileHandler(profileSvc, authSvc),
		Tickets:        handlers.NewTicketsHandler(ticketSvc),
		Messages:       handlers.NewMessagesHandler(nil),
		Attachments:    handlers.NewAttachmentsHandler(attachmentSvc),
		Devices:        handlers.NewDevicesHandler(nil),
		Analytics:      handlers.NewAnalyticsHandler(service.NewAnalyticsService(service.AnalyticsDependencies{})),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, TokenVerifyObserver(metrics)),
		LoginLimiter:   limiter,
		Metrics:        metrics,
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "Test@123"})
	require.Equal(t, http.StatusOK, status, body)
	return body["accessToken"].(string)
}

func TestLoginReturnsTokenPair(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "Test@123"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "customer", user["role"])
	assert.Equal(t, "a@x.com", user["email"])
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid email or password", body["message"])
}

func TestAuthMiddlewareRejections(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/api/tickets", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", body["message"])

	status, body = s.do(t, http.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "No token provided", body["message"])
}

func TestTicketOwnership(t *testing.T) {
	s := newTestServer(t, nil)
	tokenA := s.login(t, "a@x.com")
	tokenAdmin := s.login(t, "admin@x.com")

	status, body := s.do(t, http.MethodGet, "/api/tickets/"+ticketB, tokenA, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = s.do(t, http.MethodGet, "/api/tickets/"+ticketA, tokenA, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ticketA, body["ticket"].(map[string]any)["id"])

	status, _ = s.do(t, http.MethodGet, "/api/tickets/"+ticketB, tokenAdmin, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/api/tickets/nope", tokenA, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Ticket not found", body["message"])

	status, body = s.do(t, http.MethodGet, "/api/tickets", tokenA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tickets"], 1)
}

func TestAdminOnlyRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	tokenA := s.login(t, "a@x.com")

	status, body := s.do(t, http.MethodPatch, "/api/tickets/"+ticketA, tokenA, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["message"])

	status, _ = s.do(t, http.MethodGet, "/api/analytics/dashboard", tokenA, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestOwnerCanOnlyClose(t *testing.T) {
	s := newTestServer(t, nil)
	tokenA := s.login(t, "a@x.com")

	status, body := s.do(t, http.MethodPut, "/api/tickets/"+ticketA+"/status", tokenA, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Only admins can set this status", body["message"])

	status, body = s.do(t, http.MethodPut, "/api/tickets/"+ticketA+"/status", tokenA, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", body["ticket"].(map[string]any)["status"])
}

func TestRefreshFlow(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "Test@123"})
	require.Equal(t, http.StatusOK, status)

	status, refreshed := s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": body["refreshToken"]})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, refreshed["accessToken"])
	assert.NotContains(t, refreshed, "refreshToken")

	// an access token is not a refresh token
	status, _ = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": body["accessToken"]})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, missing := s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Refresh token required", missing["message"])
}

func TestRefreshWithExpiredToken(t *testing.T) {
	s := newTestServer(t, nil)
	past, err := auth.NewTokenService(auth.TokenServiceConfig{AccessSecret: accessSecret, RefreshSecret: refreshSecret})
	require.NoError(t, err)
	past.WithClock(func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	expired, _, err := past.IssueRefreshToken(auth.Claims{UserID: "user-a", Email: "a@x.com", Role: domain.RoleCustomer})
	require.NoError(t, err)

	status, body := s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": expired})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotContains(t, body, "accessToken")
	assert.Equal(t, "Invalid refresh token", body["message"])
}

func TestExpiredAccessTokenCode(t *testing.T) {
	s := newTestServer(t, nil)
	past, err := auth.NewTokenService(auth.TokenServiceConfig{AccessSecret: accessSecret, RefreshSecret: refreshSecret})
	require.NoError(t, err)
	past.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _, err := past.IssueAccessToken(auth.Claims{UserID: "user-a", Email: "a@x.com", Role: domain.RoleCustomer})
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/api/profile", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", body["message"])
	assert.Equal(t, "TOKEN_EXPIRED", body["code"])

	s.do(t, http.MethodGet, "/api/profile", "garbage", nil)
	metrics := s.scrapeMetrics(t)
	assert.Contains(t, metrics, `auth_token_events_total{event="verify_expired"} 1`)
	assert.Contains(t, metrics, `auth_token_events_total{event="verify_failed"} 1`)
}

func TestRegisterValidationDetails(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Cat", "phone": "5551112222", "email": "not-an-email", "password": "Test@123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Contains(t, body["details"], "email")

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Cat"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "All fields are required", body["message"])

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Cat", "phone": "5551112222", "email": "cat@x.com", "password": "Test@123",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["userId"])
}

func TestProfile(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "a@x.com")

	status, body := s.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ann", body["user"].(map[string]any)["name"])

	status, body = s.do(t, http.MethodPut, "/api/profile", token, map[string]string{"name": "Anna"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Anna", body["user"].(map[string]any)["name"])
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, NewIPRateLimiter(1, 2))
	creds := map[string]string{"email": "a@x.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])

	s.do(t, http.MethodGet, "/api/tickets", "garbage", nil)

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
	assert.Contains(t, string(raw), `http_errors_total{code="UNAUTHENTICATED"`)
}

func TestUnknownRouteRendersJSON(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func (s *testServer) upload(t *testing.T, token, ticketID, name, contentType, content string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("ticketId", ticketID))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestAttachmentDownloadIsOwnerOnly(t *testing.T) {
	s := newTestServer(t, nil)
	tokenA := s.login(t, "a@x.com")
	tokenB := s.login(t, "b@x.com")
	tokenAdmin := s.login(t, "admin@x.com")

	status, body := s.upload(t, tokenA, ticketA, "invoice.pdf", "application/pdf", "%PDF-1.4")
	require.Equal(t, http.StatusCreated, status, body)
	att := body["attachment"].(map[string]any)
	id := att["id"].(string)
	fileURL := att["fileUrl"].(string)
	assert.Equal(t, "/api/attachments/"+id, fileURL)

	status, body = s.do(t, http.MethodGet, fileURL, tokenB, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	for _, token := range []string{tokenA, tokenAdmin} {
		resp, err := s.app.Test(authedGet(fileURL, token), -1)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "%PDF-1.4", string(raw))
	}

	// blobs are never served outside the guarded route
	status, _ = s.do(t, http.MethodGet, "/uploads/"+id, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	tokenAdmin := s.login(t, "admin@x.com")

	status, body := s.do(t, http.MethodGet, "/api/tickets/abc", tokenAdmin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Ticket not found", body["message"])

	status, body = s.do(t, http.MethodGet, "/api/attachments/abc", tokenAdmin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Attachment not found", body["message"])
}

func (s *testServer) scrapeMetrics(t *testing.T) string {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func authedGet(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/adapters/crdb"
	redisadapter "github.com/robertarktes/event-ticketing/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing/internal/auth"
	"github.com/robertarktes/event-ticketing/internal/booking"
	"github.com/robertarktes/event-ticketing/internal/config"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/idempotency"
)

const eventCacheTTL = 30 * time.Second

// BookingService is the booking transaction coordinator as the handlers see
// it.
type BookingService interface {
	Book(ctx context.Context, req booking.BookRequest) (*domain.Booking, error)
}

// Store is the persistence surface the handlers need outside the booking
// transaction. *crdb.Repository implements it.
type Store interface {
	CreateEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context, filter crdb.EventFilter) ([]domain.Event, error)
	ListEventsByCreator(ctx context.Context, creator uuid.UUID) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, e domain.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)

	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error
}

type Handlers struct {
	cfg      *config.Config
	store    Store
	bookings BookingService
	authSvc  *auth.Service
	cache    *redisadapter.Cache
	idemp    *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, store Store, bookings BookingService, authSvc *auth.Service, cache *redisadapter.Cache, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    store,
		bookings: bookings,
		authSvc:  authSvc,
		cache:    cache,
		idemp:    idemp,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---- auth ----

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	user := domain.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		// A register racing this one past the lookup loses on the unique
		// email index.
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	token, err := h.authSvc.IssueToken(&user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token, "role": user.Role})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.authSvc.IssueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": user.Role})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}

// ---- users (admin) ----

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]interface{}{
			"id":         u.ID,
			"name":       u.Name,
			"email":      u.Email,
			"role":       u.Role,
			"created_at": u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Role != domain.RoleAdmin && req.Role != domain.RoleUser) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := h.store.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// ---- events ----

type eventRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Date           time.Time `json:"date"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats *int      `json:"available_seats"`
	Price          float64   `json:"price"`
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || req.Date.IsZero() || req.TotalSeats < 0 || req.Price < 0 {
		writeError(w, http.StatusBadRequest, "title, date, seats and price are required")
		return
	}

	available := req.TotalSeats
	if req.AvailableSeats != nil {
		available = *req.AvailableSeats
	}
	if available < 0 || available > req.TotalSeats {
		writeError(w, http.StatusBadRequest, "available_seats out of bounds")
		return
	}

	event := domain.Event{
		ID:             uuid.New(),
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Date:           req.Date,
		TotalSeats:     req.TotalSeats,
		AvailableSeats: available,
		Price:          req.Price,
		CreatedBy:      ClaimsFromContext(r.Context()).UserID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.store.CreateEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": event.ID})
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := crdb.EventFilter{
		Search:   r.URL.Query().Get("search"),
		Location: r.URL.Query().Get("location"),
	}
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		filter.Date = &parsed
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if h.cache != nil {
		if cached, err := h.cache.GetEvent(r.Context(), id.String()); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}

	if h.cache != nil {
		h.cache.SetEvent(r.Context(), event, eventCacheTTL)
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handlers) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	creator, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	events, err := h.store.ListEventsByCreator(r.Context(), creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch user events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Location != "" {
		existing.Location = req.Location
	}
	if !req.Date.IsZero() {
		existing.Date = req.Date
	}
	if req.TotalSeats > 0 {
		existing.TotalSeats = req.TotalSeats
	}
	if req.AvailableSeats != nil {
		existing.AvailableSeats = *req.AvailableSeats
	}
	if req.Price > 0 {
		existing.Price = req.Price
	}
	if existing.AvailableSeats < 0 || existing.AvailableSeats > existing.TotalSeats {
		writeError(w, http.StatusBadRequest, "available_seats out of bounds")
		return
	}

	if err := h.store.UpdateEvent(r.Context(), *existing); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if h.cache != nil {
		h.cache.InvalidateEvent(r.Context(), id.String())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.store.DeleteEvent(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	if h.cache != nil {
		h.cache.InvalidateEvent(r.Context(), id.String())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ---- bookings ----

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if receipt, err := h.idemp.Get(r.Context(), key); err == nil && receipt != nil {
		writeJSON(w, receipt.Status, map[string]interface{}{
			"booking_id":   receipt.BookingID,
			"total_amount": receipt.TotalAmount,
		})
		return
	}

	var req struct {
		EventID  uuid.UUID `json:"event_id"`
		Quantity int       `json:"quantity"`
		Name     string    `json:"name"`
		Email    string    `json:"email"`
		Mobile   string    `json:"mobile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booked, err := h.bookings.Book(r.Context(), booking.BookRequest{
		EventID:  req.EventID,
		Quantity: req.Quantity,
		Attendee: domain.Attendee{Name: req.Name, Email: req.Email, Mobile: req.Mobile},
	})
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	if h.cache != nil {
		h.cache.InvalidateEvent(r.Context(), req.EventID.String())
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"booking_id":   booked.ID,
		"total_amount": booked.TotalAmount,
	})

	h.idemp.Set(r.Context(), key, idempotency.BookingReceipt{
		Status:      http.StatusCreated,
		BookingID:   booked.ID,
		TotalAmount: booked.TotalAmount,
	})
}

func (h *Handlers) writeBookingError(w http.ResponseWriter, err error) {
	var icErr *domain.InsufficientCapacityError
	switch {
	case errors.As(err, &icErr):
		writeError(w, http.StatusBadRequest, icErr.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "quantity must be positive and attendee details are required")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "booking conflict, try again")
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusServiceUnavailable, "booking timed out, try again")
	default:
		writeError(w, http.StatusInternalServerError, "failed to create booking")
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	b, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch booking")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":   b.ID,
		"event_id":     b.EventID,
		"quantity":     b.Quantity,
		"total_amount": b.TotalAmount,
		"status":       b.Status,
		"created_at":   b.CreatedAt,
	})
}

// ---- ops ----

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

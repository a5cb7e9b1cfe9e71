package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/auth"
	"propertyhub/internal/booking"
	"propertyhub/internal/cache"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
	"propertyhub/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBookingStore struct {
	mu         sync.Mutex
	properties map[uint]*models.Property
	users      map[uint]*models.User
	bookings   []models.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		properties: map[uint]*models.Property{
			1: {ID: 1, Title: "Cabin", Price: decimal.NewFromInt(50), Statuses: models.StatusSet{models.StatusForRent}, Approved: true},
			2: {ID: 2, Title: "Plot", Price: decimal.NewFromInt(10), Statuses: models.StatusSet{models.StatusForSale}, Approved: true},
			3: {ID: 3, Title: "Draft cabin", Price: decimal.NewFromInt(40), Statuses: models.StatusSet{models.StatusForRent}},
		},
		users: map[uint]*models.User{
			7: {ID: 7, Email: "admin@example.com", Admin: true, IsActive: true},
		},
	}
}

func (s *fakeBookingStore) FindPropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	return s.properties[id], nil
}

func (s *fakeBookingStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeBookingStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users[id], nil
}

func (s *fakeBookingStore) FindBookingsOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.PropertyID == propertyID && checkIn.Before(b.CheckOut) && checkOut.After(b.CheckIn) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uint(len(s.bookings) + 1)
	s.bookings = append(s.bookings, *b)
	return nil
}

func (s *fakeBookingStore) FindBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			b := s.bookings[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (s *fakeBookingStore) ApproveBooking(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			s.bookings[i].Approved = true
		}
	}
	return nil
}

func (s *fakeBookingStore) FindBookingsByUser(ctx context.Context, userID uint) ([]models.Booking, error) {
	return nil, nil
}

func (s *fakeBookingStore) FindPendingBookings(ctx context.Context) ([]models.Booking, error) {
	return nil, nil
}

type nopMailer struct{}

func (nopMailer) SendMail(ctx context.Context, to, subject, body string) error { return nil }

type bookingFixture struct {
	store  *fakeBookingStore
	issuer *auth.TokenIssuer
	router *gin.Engine
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	logger := zap.NewNop()
	store := newFakeBookingStore()
	effects := sideeffect.NewRunner(logger, time.Second)
	t.Cleanup(effects.Wait)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	authn := auth.NewAuthenticator(issuer, store)
	h := NewBookingHandler(booking.NewWorkflow(store, nopMailer{}, effects, logger), logger)

	r := gin.New()
	r.POST("/bookings", authn.Optional(), h.Create)
	r.POST("/bookings/:id/approve", authn.Required(), h.Approve)
	return &bookingFixture{store: store, issuer: issuer, router: r}
}

func (f *bookingFixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestBookingHandler_Create(t *testing.T) {
	f := newBookingFixture(t)

	guest := gin.H{"property_id": 1, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "guest@example.com"}
	w := f.do(t, http.MethodPost, "/bookings", guest, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var got models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Approved {
		t.Error("guest booking must start pending")
	}
	if !got.Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("price = %s, want 150", got.Price)
	}

	// Pending bookings still hold the dates
	overlap := gin.H{"property_id": 1, "check_in": "2026-03-03", "check_out": "2026-03-05", "email": "other@example.com"}
	if w := f.do(t, http.MethodPost, "/bookings", overlap, ""); w.Code != http.StatusConflict {
		t.Errorf("overlap status = %d, want 409", w.Code)
	}

	adjacent := gin.H{"property_id": 1, "check_in": "2026-03-04", "check_out": "2026-03-06", "email": "other@example.com"}
	if w := f.do(t, http.MethodPost, "/bookings", adjacent, ""); w.Code != http.StatusCreated {
		t.Errorf("adjacent status = %d, want 201", w.Code)
	}
}

func TestBookingHandler_CreateRejects(t *testing.T) {
	f := newBookingFixture(t)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"bad date", gin.H{"property_id": 1, "check_in": "03/01/2026", "check_out": "2026-03-04", "email": "g@example.com"}, http.StatusBadRequest},
		{"inverted range", gin.H{"property_id": 1, "check_in": "2026-03-04", "check_out": "2026-03-01", "email": "g@example.com"}, http.StatusBadRequest},
		{"not for rent", gin.H{"property_id": 2, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "g@example.com"}, http.StatusNotFound},
		{"unknown property", gin.H{"property_id": 99, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "g@example.com"}, http.StatusNotFound},
		{"no contact", gin.H{"property_id": 1, "check_in": "2026-03-01", "check_out": "2026-03-04"}, http.StatusUnauthorized},
		{"malformed email", gin.H{"property_id": 1, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "x"}, http.StatusBadRequest},
		{"pending listing", gin.H{"property_id": 3, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "g@example.com"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, "/bookings", tt.body, ""); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
	if len(f.store.bookings) != 0 {
		t.Errorf("rejected requests persisted %d bookings", len(f.store.bookings))
	}
}

func TestBookingHandler_AdminBookingIsApproved(t *testing.T) {
	f := newBookingFixture(t)
	token, err := f.issuer.Issue(7, "admin@example.com", true)
	if err != nil {
		t.Fatal(err)
	}

	body := gin.H{"property_id": 1, "check_in": "2026-05-01", "check_out": "2026-05-02"}
	w := f.do(t, http.MethodPost, "/bookings", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var got models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Approved {
		t.Error("admin booking should be approved immediately")
	}
	if got.Email != "admin@example.com" {
		t.Errorf("email = %q, want session email", got.Email)
	}
}

func TestBookingHandler_Approve(t *testing.T) {
	f := newBookingFixture(t)
	f.do(t, http.MethodPost, "/bookings", gin.H{"property_id": 1, "check_in": "2026-03-01", "check_out": "2026-03-04", "email": "guest@example.com"}, "")

	if w := f.do(t, http.MethodPost, "/bookings/1/approve", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous approve status = %d, want 401", w.Code)
	}

	token, _ := f.issuer.Issue(7, "admin@example.com", true)
	if w := f.do(t, http.MethodPost, "/bookings/abc/approve", nil, token); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
	w := f.do(t, http.MethodPost, "/bookings/1/approve", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", w.Code, w.Body.String())
	}
	if !f.store.bookings[0].Approved {
		t.Error("booking not approved in store")
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err  error
		want int
		msg  string
	}{
		{fmt.Errorf("%w: bad", apperr.ErrValidation), http.StatusBadRequest, "validation error: bad"},
		{fmt.Errorf("%w: gone", apperr.ErrNotFound), http.StatusNotFound, "not found: gone"},
		{apperr.ErrConflict, http.StatusConflict, "conflict"},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, zap.NewNop(), tt.err)

		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["error"] != tt.msg {
			t.Errorf("%v: error = %q, want %q", tt.err, body["error"], tt.msg)
		}
	}
}

type fakeMedia map[string][]byte

func (m fakeMedia) Open(ctx context.Context, key string) (*storage.File, error) {
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: image %s", apperr.ErrNotFound, key)
	}
	return &storage.File{Name: key, Length: int64(len(data)), Data: data}, nil
}

func TestMediaHandler_Get(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	h := NewMediaHandler(fakeMedia{"abc": png}, zap.NewNop())
	r := gin.New()
	r.GET("/media/:id", h.Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/abc", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if w.Header().Get("Cache-Control") == "" {
		t.Error("missing cache headers")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestPropertyHandler_GetServesCache(t *testing.T) {
	c := cache.NewPropertyCache(10, time.Minute)
	defer c.Stop()
	c.Set(&models.Property{ID: 5, Title: "Cached", Approved: true})

	// query is never reached on a cache hit
	h := NewPropertyHandler(nil, nil, c, 0, zap.NewNop())
	r := gin.New()
	r.GET("/properties/:id", h.Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/properties/5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got models.Property
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Cached" {
		t.Errorf("title = %q", got.Title)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/properties/0", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero id status = %d, want 400", w.Code)
	}
}

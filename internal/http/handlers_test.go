package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robertarktes/show-schedules-and-bookings/internal/admin"
	"github.com/robertarktes/show-schedules-and-bookings/internal/booking"
	"github.com/robertarktes/show-schedules-and-bookings/internal/catalog"
	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
	"github.com/robertarktes/show-schedules-and-bookings/internal/store/memory"
)

const testSecret = "test-secret"

type okPayments struct{}

func (okPayments) CreateSession(ctx context.Context, req domain.PaymentRequest) (domain.PaymentSession, error) {
	return domain.PaymentSession{URL: "https://pay.example/" + req.BookingID, ExpiresAt: req.ExpiresAt}, nil
}

type fixedSource struct{}

func (fixedSource) FetchMovie(ctx context.Context, movieID string) (domain.MovieRef, error) {
	return domain.MovieRef{ID: movieID, Title: "Movie " + movieID}, nil
}

type nopCache struct{}

func (nopCache) GetMovie(ctx context.Context, movieID string) (*domain.MovieRef, error) {
	return nil, nil
}
func (nopCache) SetMovie(ctx context.Context, movie domain.MovieRef, ttl time.Duration) error {
	return nil
}
func (nopCache) InvalidateMovie(ctx context.Context, movieID string) error { return nil }

type mapSnapshots struct {
	movies map[string]domain.MovieRef
}

func (s *mapSnapshots) Save(ctx context.Context, movie domain.MovieRef) error {
	s.movies[movie.ID] = movie
	return nil
}

func (s *mapSnapshots) Get(ctx context.Context, movieID string) (domain.MovieRef, error) {
	if m, ok := s.movies[movieID]; ok {
		return m, nil
	}
	return domain.MovieRef{}, domain.ErrMovieNotFound
}

func (s *mapSnapshots) List(ctx context.Context) ([]domain.MovieRef, error) {
	out := make([]domain.MovieRef, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	return out, nil
}

type apiFixture struct {
	router http.Handler
	store  *memory.ScheduleStore
	ledger *memory.BookingLedger
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := observability.NewLogger()
	store := memory.NewScheduleStore()
	ledger := memory.NewBookingLedger()
	snaps := &mapSnapshots{movies: make(map[string]domain.MovieRef)}
	cat := catalog.NewService(fixedSource{}, nopCache{}, snaps, 10*time.Minute, logger)
	engine := booking.NewEngine(store, ledger, okPayments{}, cat, nil, logger)
	agg := admin.NewAggregator(store, ledger, snaps)
	h := NewHandlers(engine, agg, cat, store, ledger, nil, logger)

	err := store.UpsertSlots(context.Background(), "m1", []domain.SlotSpec{
		{Date: "2030-01-01", Time: "18:00", Price: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &apiFixture{router: SetupRouter(h, logger, nil, testSecret), store: store, ledger: ledger}
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestReserveEndpoint(t *testing.T) {
	f := newAPI(t)
	token := signToken(t, "u1", "user")

	rec := f.do(t, http.MethodPost, "/v1/bookings", token, map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1", "A2"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["amount"] != 20.0 {
		t.Errorf("amount = %v", body["amount"])
	}
	if body["bookingId"] == "" || body["paymentUrl"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestReserveConflictBody(t *testing.T) {
	f := newAPI(t)
	token := signToken(t, "u1", "user")

	first := f.do(t, http.MethodPost, "/v1/bookings", token, map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1", "A2"},
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("setup: %d", first.Code)
	}

	rec := f.do(t, http.MethodPost, "/v1/bookings", signToken(t, "u2", "user"), map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A2", "A3"},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	seats, ok := body["conflictingSeats"].([]any)
	if !ok || len(seats) != 1 || seats[0] != "A2" {
		t.Errorf("conflictingSeats = %v", body["conflictingSeats"])
	}
}

func TestReserveRequiresToken(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodPost, "/v1/bookings", "", map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/bookings", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d", rec.Code)
	}
}

func TestAdminRoutesEnforceRole(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/v1/admin/dashboard", signToken(t, "u1", "user"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user on admin route: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/v1/admin/dashboard", signToken(t, "a1", "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("admin on admin route: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCancelOwnershipGuard(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/v1/bookings", signToken(t, "u1", "user"), map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1"},
	})
	bookingID := decodeBody(t, rec)["bookingId"].(string)

	rec = f.do(t, http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", signToken(t, "u2", "user"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger cancel: status = %d", rec.Code)
	}

	// An admin may cancel on the user's behalf.
	rec = f.do(t, http.MethodPost, "/v1/bookings/"+bookingID+"/cancel", signToken(t, "a1", "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("admin cancel: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestOccupiedSeatsPublicEndpoint(t *testing.T) {
	f := newAPI(t)

	f.do(t, http.MethodPost, "/v1/bookings", signToken(t, "u1", "user"), map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1"},
	})

	rec := f.do(t, http.MethodGet, "/v1/shows/m1/seats?date=2030-01-01&time=18:00", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	seats, _ := body["occupiedSeats"].([]any)
	if len(seats) != 1 || seats[0] != "A1" {
		t.Errorf("occupiedSeats = %v", body["occupiedSeats"])
	}

	// A slot nobody scheduled reads as empty, not 404.
	rec = f.do(t, http.MethodGet, "/v1/shows/m9/seats?date=2030-01-01&time=18:00", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("missing slot: status = %d", rec.Code)
	}
	if seats, _ := decodeBody(t, rec)["occupiedSeats"].([]any); len(seats) != 0 {
		t.Errorf("missing slot seats = %v", seats)
	}
}

func TestPaymentCallbackConfirms(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/v1/bookings", signToken(t, "u1", "user"), map[string]any{
		"movieId": "m1", "date": "2030-01-01", "time": "18:00", "seats": []string{"A1"},
	})
	bookingID := decodeBody(t, rec)["bookingId"].(string)

	rec = f.do(t, http.MethodPost, "/v1/payments/callback", "", map[string]any{
		"bookingId": bookingID, "status": "paid",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	b, err := f.ledger.Get(context.Background(), bookingID)
	if err != nil {
		t.Fatal(err)
	}
	if b.PaymentState != domain.PaymentPaid {
		t.Errorf("state = %v", b.PaymentState)
	}

	rec = f.do(t, http.MethodPost, "/v1/payments/callback", "", map[string]any{
		"bookingId": bookingID, "status": "nonsense",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: %d", rec.Code)
	}
}

func TestRoleCheckEndpoint(t *testing.T) {
	f := newAPI(t)

	cases := []struct {
		caller   string
		target   string
		proposed string
		allowed  bool
	}{
		{"admin", "user", "admin", true},
		{"admin", "superadmin", "user", false},
		{"admin", "user", "superadmin", false},
		{"superadmin", "user", "superadmin", true},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/v1/admin/roles/check", signToken(t, "a1", tc.caller), map[string]any{
			"targetRole": tc.target, "proposedRole": tc.proposed,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s changing %s to %s: status = %d", tc.caller, tc.target, tc.proposed, rec.Code)
		}
		if got := decodeBody(t, rec)["allowed"]; got != tc.allowed {
			t.Errorf("%s changing %s to %s: allowed = %v, want %v", tc.caller, tc.target, tc.proposed, got, tc.allowed)
		}
	}

	rec := f.do(t, http.MethodPost, "/v1/admin/roles/check", signToken(t, "a1", "admin"), map[string]any{
		"targetRole": "emperor", "proposedRole": "user",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid role name: status = %d", rec.Code)
	}
}

func TestRefreshMovie(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/v1/admin/movies/m1/refresh", signToken(t, "a1", "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["source"] != "fetch" {
		t.Errorf("source = %v", body["source"])
	}

	rec = f.do(t, http.MethodPost, "/v1/admin/movies/m1/refresh", signToken(t, "u1", "user"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user refresh: status = %d", rec.Code)
	}
}

func TestShowDetail(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/v1/shows/m1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	dateTime, _ := body["dateTime"].(map[string]any)
	if _, ok := dateTime["2030-01-01"]; !ok {
		t.Errorf("dateTime = %v", dateTime)
	}

	rec = f.do(t, http.MethodGet, "/v1/shows/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing schedule: status = %d", rec.Code)
	}
}

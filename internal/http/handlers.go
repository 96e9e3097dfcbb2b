package http

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/robertarktes/show-schedules-and-bookings/internal/admin"
	"github.com/robertarktes/show-schedules-and-bookings/internal/booking"
	"github.com/robertarktes/show-schedules-and-bookings/internal/catalog"
	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/idempotency"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

type Handlers struct {
	engine  *booking.Engine
	agg     *admin.Aggregator
	catalog *catalog.Service
	store   domain.ScheduleStore
	ledger  domain.BookingLedger
	idemp   *idempotency.Idempotency
	logger  observability.Logger
}

func NewHandlers(engine *booking.Engine, agg *admin.Aggregator, cat *catalog.Service, store domain.ScheduleStore, ledger domain.BookingLedger, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		engine:  engine,
		agg:     agg,
		catalog: cat,
		store:   store,
		ledger:  ledger,
		idemp:   idemp,
		logger:  logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy onto HTTP codes. Conflicts
// carry the conflicting seat labels in the body.
func writeDomainError(w http.ResponseWriter, err error) {
	var conflict *domain.SeatConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "seats unavailable",
			"conflictingSeats": conflict.Seats,
		})
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrScheduleNotFound),
		errors.Is(err, domain.ErrMovieNotFound),
		errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPaymentUnavailable):
		writeError(w, http.StatusBadGateway, "payment adapter unavailable")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) Reserve(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if h.idemp != nil && key != "" {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			w.Write(existing.Result)
			return
		}
	}

	var req struct {
		MovieID string   `json:"movieId"`
		Date    string   `json:"date"`
		Time    string   `json:"time"`
		Seats   []string `json:"seats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Reserve(r.Context(), booking.ReserveInput{
		MovieID: req.MovieID,
		Date:    req.Date,
		Time:    req.Time,
		Seats:   req.Seats,
		UserID:  UserID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"bookingId":  result.BookingID,
		"paymentUrl": result.PaymentURL,
		"amount":     result.Amount,
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if h.idemp != nil && key != "" {
		h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
	}
}

func (h *Handlers) MyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.ledger.ListByUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if b.UserID != UserID(r.Context()) && !CallerRole(r.Context()).AtLeast(domain.RoleAdmin) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}
	if err := h.engine.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handlers) UpcomingShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.agg.UpcomingShows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shows": shows})
}

func (h *Handlers) ShowDetail(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	sched, err := h.store.GetSchedule(r.Context(), movieID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type showTime struct {
		Time  string  `json:"time"`
		Price float64 `json:"price"`
	}
	dateTime := make(map[string][]showTime, len(sched))
	for date, times := range sched {
		for timeKey, slot := range times {
			dateTime[date] = append(dateTime[date], showTime{Time: timeKey, Price: slot.Price})
		}
		sort.Slice(dateTime[date], func(i, j int) bool { return dateTime[date][i].Time < dateTime[date][j].Time })
	}

	resp := map[string]any{"dateTime": dateTime}
	if res, err := h.catalog.Get(r.Context(), movieID); err == nil {
		resp["movie"] = res.Movie
		resp["source"] = res.Source
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) OccupiedSeats(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	date := r.URL.Query().Get("date")
	timeKey := r.URL.Query().Get("time")

	seats, err := h.engine.OccupiedSeats(r.Context(), movieID, date, timeKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"occupiedSeats": seats})
}

func (h *Handlers) NowPlaying(w http.ResponseWriter, r *http.Request) {
	movies, source, err := h.catalog.NowPlaying(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movies": movies, "source": source})
}

func (h *Handlers) ScheduleShows(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MovieID string            `json:"movieId"`
		Slots   []domain.SlotSpec `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MovieID == "" {
		writeError(w, http.StatusBadRequest, "movieId is required")
		return
	}
	if err := h.engine.Schedule(r.Context(), req.MovieID, req.Slots); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "schedule updated"})
}

func (h *Handlers) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if err := h.engine.DeleteSchedule(r.Context(), movieID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "schedule deleted"})
}

// RefreshMovie is the explicit re-fetch: cached catalog data is
// otherwise immutable until its TTL lapses.
func (h *Handlers) RefreshMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	res, err := h.catalog.Refresh(r.Context(), movieID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movie": res.Movie, "source": res.Source})
}

func (h *Handlers) AllShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.agg.AllShows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shows": shows})
}

func (h *Handlers) AllBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.agg.AllBookings(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.agg.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// RoleCheck applies the ordered-role transition rules on behalf of the
// auth collaborator: may the caller move a target from one role to
// another. The caller's own role comes from the verified token.
func (h *Handlers) RoleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetRole   string `json:"targetRole"`
		ProposedRole string `json:"proposedRole"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, ok := domain.ParseRole(req.TargetRole)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid targetRole")
		return
	}
	proposed, ok := domain.ParseRole(req.ProposedRole)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid proposedRole")
		return
	}
	allowed := CallerRole(r.Context()).CanChangeRole(target, proposed)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookingID string `json:"bookingId"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	switch req.Status {
	case "paid", "SUCCEEDED":
		err = h.engine.ConfirmPayment(r.Context(), req.BookingID)
	case "cancelled", "expired":
		err = h.engine.Cancel(r.Context(), req.BookingID)
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

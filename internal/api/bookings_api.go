package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stuga/internal/access"
	"stuga/internal/metrics"
	"stuga/internal/models"
	"stuga/internal/store"
	"stuga/internal/workflow"
)

// createBookingRequest is the JSON body for POST /api/v1/bookings. Dates
// use YYYY-MM-DD.
type createBookingRequest struct {
	Name                 string `json:"name"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	ArrivalTime          string `json:"arrival_time,omitempty"`
	DepartureTime        string `json:"departure_time,omitempty"`
	Guests               int    `json:"guests"`
	ConfirmDoubleBooking bool   `json:"confirm_double_booking,omitempty"`
}

type bookingsResponse struct {
	Bookings []models.Booking `json:"bookings"`
	Stale    bool             `json:"stale"`
}

type createBookingResponse struct {
	Booking *models.Booking `json:"booking"`
	Warning string          `json:"warning,omitempty"`
}

type conflictResponse struct {
	Error    string          `json:"error"`
	Conflict *models.Booking `json:"conflict"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBookings(w, r)
	case http.MethodPost:
		s.createBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_list")

	bookings, stale, err := s.bookings.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "bookings unavailable")
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	if stale {
		w.Header().Set("X-Stale", "true")
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: bookings, Stale: stale})
}

// createBooking drives a full workflow cycle within one request. A detected
// overlap returns 409 with the conflicting booking unless the client set
// confirm_double_booking.
func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_create")

	user, err := s.requestingUser(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "unknown user")
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	form, err := formFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := s.workflow.OpenForm(user)
	outcome, err := s.workflow.Submit(r.Context(), session, user, form)
	if err != nil {
		if workflow.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, workflow.ErrSaveInFlight) {
			writeError(w, http.StatusConflict, "a save is already in progress")
			return
		}
		s.logger.Error().Err(err).Msg("booking submit failed")
		writeError(w, http.StatusInternalServerError, "could not save booking")
		return
	}

	if outcome.State == workflow.StateConflictPending {
		if !req.ConfirmDoubleBooking {
			conflict := outcome.Conflict
			if err := s.workflow.DeclineDoubleBooking(session); err == nil {
				s.workflow.Cancel(session)
			}
			writeJSON(w, http.StatusConflict, conflictResponse{
				Error:    "dates overlap an existing booking",
				Conflict: conflict,
			})
			return
		}
		outcome, err = s.workflow.AcceptDoubleBooking(r.Context(), session, user)
		if err != nil {
			s.logger.Error().Err(err).Msg("double-booking confirmation failed")
			writeError(w, http.StatusInternalServerError, "could not save booking")
			return
		}
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{
		Booking: outcome.Booking,
		Warning: outcome.Warning,
	})
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("bookings_delete")

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	user, err := s.requestingUser(r)
	if err != nil {
		writeError(w, http.StatusForbidden, "unknown user")
		return
	}

	if err := s.bookings.Delete(r.Context(), id, user); err != nil {
		switch {
		case access.IsPermissionDenied(err):
			writeError(w, http.StatusForbidden, "you can only delete your own bookings")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, store.ErrRemoteUnavailable):
			writeError(w, http.StatusServiceUnavailable, "remote store unreachable, try again later")
		default:
			s.logger.Error().Err(err).Str("booking_id", id).Msg("delete failed")
			writeError(w, http.StatusInternalServerError, "could not delete booking")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("users_list")

	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "users unavailable")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.User{"users": users})
}

func (s *HTTPServer) handleSeasonExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export_season")

	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}

	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 2000 || parsed > 2100 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = parsed
	}

	data, err := s.exporter.SeasonWorkbook(r.Context(), year)
	if err != nil {
		s.logger.Error().Err(err).Int("year", year).Msg("season export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=season_%d.xlsx", year))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func formFromRequest(req createBookingRequest) (workflow.Form, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return workflow.Form{}, fmt.Errorf("invalid start_date, expected YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return workflow.Form{}, fmt.Errorf("invalid end_date, expected YYYY-MM-DD")
	}
	guests := req.Guests
	if guests == 0 {
		guests = 1
	}
	return workflow.Form{
		Name:          req.Name,
		StartDate:     start,
		EndDate:       end,
		ArrivalTime:   req.ArrivalTime,
		DepartureTime: req.DepartureTime,
		Guests:        guests,
	}, nil
}

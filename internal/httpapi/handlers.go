package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"capture-scheduler-go/internal/api"
	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type createScheduleRequest struct {
	FrequencyHours       float64 `json:"frequency_hours"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	SilentMode           bool    `json:"silent_mode"`
}

type updateScheduleRequest struct {
	FrequencyHours       *float64 `json:"frequency_hours"`
	NotificationsEnabled *bool    `json:"notifications_enabled"`
	SilentMode           *bool    `json:"silent_mode"`
}

type grantConsentRequest struct {
	Scopes []string `json:"scopes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.HealthCheck(r.Context()); err != nil {
		zap.L().Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.SchedulerStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts := models.ScheduleOptions{NotificationsEnabled: true, SilentMode: req.SilentMode}
	if req.NotificationsEnabled != nil {
		opts.NotificationsEnabled = *req.NotificationsEnabled
	}

	sched, err := s.service.CreateSchedule(r.Context(), chi.URLParam(r, "user"), hoursToDuration(req.FrequencyHours), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.service.ListSchedules(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleId(w, r)
	if !ok {
		return
	}
	sched, err := s.service.GetSchedule(r.Context(), chi.URLParam(r, "user"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleId(w, r)
	if !ok {
		return
	}
	var req updateScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	update := models.ScheduleUpdate{NotificationsEnabled: req.NotificationsEnabled, SilentMode: req.SilentMode}
	if req.FrequencyHours != nil {
		frequency := hoursToDuration(*req.FrequencyHours)
		update.Frequency = &frequency
	}

	sched, err := s.service.UpdateSchedule(r.Context(), chi.URLParam(r, "user"), id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleId(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteSchedule(r.Context(), chi.URLParam(r, "user"), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleId(w, r)
	if !ok {
		return
	}
	sched, err := s.service.PauseSchedule(r.Context(), chi.URLParam(r, "user"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleResumeSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleId(w, r)
	if !ok {
		return
	}
	sched, err := s.service.ResumeSchedule(r.Context(), chi.URLParam(r, "user"), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleTriggerCapture(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.TriggerCapture(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	sessions, err := s.service.ListSessions(r.Context(), chi.URLParam(r, "user"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), chi.URLParam(r, "user"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	photos, err := s.service.ListPhotos(r.Context(), chi.URLParam(r, "user"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handleCurrentConsent(w http.ResponseWriter, r *http.Request) {
	consent, err := s.service.CurrentConsent(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	if consent == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: store.ErrConsentNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, consent)
}

func (s *Server) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	var req grantConsentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	consent, err := s.service.GrantConsent(r.Context(), chi.URLParam(r, "user"), req.Scopes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, consent)
}

func (s *Server) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid consent version"})
		return
	}
	if err := s.service.RevokeConsent(r.Context(), chi.URLParam(r, "user"), version); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.service.GetUserBalance(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	earnings, err := s.service.GetEarningHistory(r.Context(), chi.URLParam(r, "user"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

func scheduleId(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid schedule id"})
		return 0, false
	}
	return id, true
}

// page reads limit and offset; bad values fall through to the service defaults
func page(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrInvalidRequest), errors.Is(err, store.ErrInvalidFrequency):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrScheduleNotFound),
		errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrConsentNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrScheduleArchived), errors.Is(err, lock.ErrLockContention):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"chatmate/internal/schedule"
	logx "chatmate/pkg/logx"
)

// envelope is the response shape every endpoint shares.
type envelope struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	ScheduleTime   *time.Time        `json:"scheduleTime,omitempty"`
	Repeat         *bool             `json:"repeat,omitempty"`
	RepeatInterval schedule.Interval `json:"repeatInterval,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /schedule", s.handleSchedule)
	mux.HandleFunc("GET /schedule", s.handleList)
	mux.HandleFunc("DELETE /schedule/{jobId}", s.handleCancel)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("DELETE /history", s.handleClearHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, schedule.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, schedule.ErrNotFound):
		code = http.StatusNotFound
	default:
		s.log.Error("request failed", logx.Err(err))
	}
	writeJSON(w, code, envelope{Error: err.Error()})
}

// scheduleBody accepts "recipient" as an alias of "phoneNumber".
type scheduleBody struct {
	schedule.Request
	RecipientAlias string `json:"recipient,omitempty"`
}

func (b scheduleBody) request() schedule.Request {
	req := b.Request
	if req.Recipient == "" {
		req.Recipient = b.RecipientAlias
	}
	return req
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleBody
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}
	sum, err := s.sched.Schedule(r.Context(), body.request())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Success:        true,
		JobID:          sum.JobID,
		Message:        sum.Message,
		ScheduleTime:   &sum.ScheduleTime,
		Repeat:         &sum.Repeat,
		RepeatInterval: sum.RepeatInterval,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	res, err := s.sched.Cancel(r.Context(), r.PathValue("jobId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: res.Success, Message: res.Message})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	jobs := s.sched.List()
	n := len(jobs)
	if jobs == nil {
		jobs = []schedule.Details{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Total   int                `json:"total"`
		Jobs    []schedule.Details `json:"jobs"`
	}{true, n, jobs})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, envelope{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	hist, err := s.sched.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if hist == nil {
		hist = []schedule.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                    `json:"success"`
		Total   int                     `json:"total"`
		History []schedule.HistoryEntry `json:"history"`
	}{true, len(hist), hist})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.sched.ClearHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: fmt.Sprintf("Cleared %d history entries", n)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.sched.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		Status   string     `json:"status"`
		Timezone string     `json:"timezone"`
		Jobs     int        `json:"jobs"`
		Next     *time.Time `json:"nextRun,omitempty"`
	}{"ok", snap.Timezone, len(snap.Jobs), earliest(snap.Jobs)})
}

// earliest returns the soonest known fire time, nil when nothing is armed.
func earliest(jobs []schedule.JobInfo) *time.Time {
	var first time.Time
	for _, j := range jobs {
		if j.Next.IsZero() {
			continue
		}
		if first.IsZero() || j.Next.Before(first) {
			first = j.Next
		}
	}
	if first.IsZero() {
		return nil
	}
	return &first
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/admission"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
)

type decisionRequest struct {
	UserID        string `json:"user_id"`
	UserName      string `json:"user_name"`
	School        string `json:"school"`
	Program       string `json:"program"`
	Status        string `json:"status"`
	Average       string `json:"average"`
	Date          string `json:"date"`
	ApplicantType string `json:"applicant_type"`
	Anonymous     bool   `json:"anonymous"`
	Note          string `json:"note"`
}

type deletionRequest struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Identifier string `json:"identifier"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) submitDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := admission.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	applicantType, err := admission.ParseApplicantType(req.ApplicantType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.svc.SubmitDecision(r.Context(), admission.Submission{
		Submitter:     admission.User{ID: req.UserID, Name: req.UserName},
		School:        req.School,
		Program:       req.Program,
		Status:        status,
		Average:       req.Average,
		Date:          req.Date,
		ApplicantType: applicantType,
		Anonymous:     req.Anonymous,
		Note:          req.Note,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"handle":  rec.Handle,
		"message": "Your decision has been submitted for verification.",
	})
}

func (s *Server) requestDeletion(w http.ResponseWriter, r *http.Request) {
	var req deletionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.svc.RequestDeletion(r.Context(), admission.User{ID: req.UserID, Name: req.UserName}, req.Identifier)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"handle":  rec.Handle,
		"message": "Your deletion request has been submitted for verification.",
	})
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := s.svc.Statistics(r.Context(), decisions.StatsQuery{
		School:  q.Get("school"),
		Program: q.Get("program"),
		Year:    q.Get("year"),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) years(w http.ResponseWriter, r *http.Request) {
	years, err := s.svc.ApplicantYears(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years})
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Pending(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": recs, "total": len(recs)})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Approve(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Reject(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) announcements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"announcements": s.board.Announcements()})
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.board.Notifications(userID)})
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	if s.charts == nil {
		writeError(w, http.StatusNotFound, "charts are disabled")
		return
	}
	path, err := s.charts.Path(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "chart not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// fail maps service errors to HTTP responses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()

	var ue *internalerr.UserError
	if errors.As(err, &ue) {
		msg = ue.Msg
	} else if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, internalerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, internalerr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case internalerr.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

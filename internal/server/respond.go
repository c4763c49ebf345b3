package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error     errorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("http.encode_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	code := "INTERNAL"
	var appErr *common.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		code = appErr.Code
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "path", r.URL.Path, "error", err,
			"request_id", common.RequestIDFromContext(r.Context()))
	}
	s.writeJSON(w, status, errorBody{
		Error:     errorDetail{Code: code, Message: common.PublicMessage(err)},
		RequestID: common.RequestIDFromContext(r.Context()),
	})
}

// decodeJSON reads one JSON object into v, rejecting unknown fields.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return common.NewAppError("PAYLOAD_TOO_LARGE", "request body too large", common.ErrTooLarge)
		case errors.Is(err, io.EOF):
			return common.InvalidInputf("request body is empty")
		default:
			return common.InvalidInputf("invalid JSON: %v", err)
		}
	}
	return nil
}

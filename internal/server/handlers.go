package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/parser"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
)

type parseRequest struct {
	RawText string         `json:"raw_text"`
	Context parser.Context `json:"context"`
}

type createRecordRequest struct {
	WorkerID string `json:"worker_id"`
	Platform string `json:"platform,omitempty"`
	RawText  string `json:"raw_text"`
	Audit    bool   `json:"audit,omitempty"`
}

type recordResponse struct {
	Record    *entity.EarningsRecord `json:"record"`
	Duplicate bool                   `json:"duplicate,omitempty"`
	Audit     *entity.AuditResult    `json:"audit,omitempty"`
}

type recordDetailResponse struct {
	Record *entity.EarningsRecord `json:"record"`
	Audits []*entity.AuditResult  `json:"audits"`
}

type listResponse struct {
	Records []*entity.EarningsRecord `json:"records"`
	Count   int                      `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().HealthCheck(r.Context(), 2*time.Second); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParse runs the parser only; nothing is stored.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out := s.proc.Parser.Parse(r.Context(), req.RawText, req.Context)
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.proc.ProcessText(r.Context(), req.RawText, pipeline.Options{WorkerID: req.WorkerID, Platform: req.Platform})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := recordResponse{Record: res.Record, Duplicate: res.Duplicate}
	if req.Audit {
		id := res.Record.ID
		a, err := s.proc.Audit(r.Context(), pipeline.AuditRequest{RecordID: &id})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.Audit = a
		out.Record.Status = constants.RecordStatusAudited
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	s.writeJSON(w, status, out)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := entity.RecordFilter{
		WorkerID: strings.TrimSpace(q.Get("worker_id")),
		Platform: strings.ToLower(strings.TrimSpace(q.Get("platform"))),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 1000 {
			s.writeError(w, r, common.InvalidInputf("limit must be between 1 and 1000"))
			return
		}
		f.Limit = n
	}
	recs, err := s.store.Records.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*entity.EarningsRecord{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{Records: recs, Count: len(recs)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.store.Records.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	audits, err := s.store.Audits.ListByRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if audits == nil {
		audits = []*entity.AuditResult{}
	}
	s.writeJSON(w, http.StatusOK, recordDetailResponse{Record: rec, Audits: audits})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req pipeline.AuditRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.proc.Audit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := entity.RecordFilter{
		WorkerID: strings.TrimSpace(q.Get("worker_id")),
		Platform: strings.ToLower(strings.TrimSpace(q.Get("platform"))),
		Limit:    10000,
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	b, err := s.exporter.RecordsXLSX(ctx, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "earnings"
	if f.WorkerID != "" {
		name += "-" + safeFileToken(f.WorkerID)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		s.logger.Warn("http.export.write_failed", "error", err)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidInputf("%s must be a UUID", name)
	}
	return id, nil
}

func safeFileToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"civility-hq/kernel/pkg/decision"
	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/evidence/query"
	"civility-hq/kernel/pkg/evidence/recorder"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/canonical"
	"civility-hq/kernel/pkg/policy/engine"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/policy/loader"
	"civility-hq/kernel/pkg/server/middleware"
)

// DecideResponse is the reply to POST /v1/decide. RecordError is set when
// the decision was made but its evidence could not be queued.
type DecideResponse struct {
	decision.Result
	RecordError string `json:"recordError,omitempty"`
}

// PolicyResponse describes the policy decisions are currently made under.
type PolicyResponse struct {
	Policy *policy.Policy `json:"policy"`
	Hash   string         `json:"hash"`
	Report lint.Report    `json:"report"`
}

// LintResponse is the reply to POST /v1/lint.
type LintResponse struct {
	Hash   string      `json:"hash"`
	Report lint.Report `json:"report"`
}

// TraceListResponse is one page of evidence records.
type TraceListResponse struct {
	Records []*evidence.Record `json:"records"`
	Total   int64              `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// TraceResponse is a single evidence record with its integrity check.
type TraceResponse struct {
	Record      *evidence.Record `json:"record"`
	Verified    bool             `json:"verified"`
	VerifyError string           `json:"verifyError,omitempty"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decision.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Record && !s.deps.Decisions.CanRecord() {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest,
			decision.ErrRecordingDisabled.Error())
		return
	}

	res, err := s.deps.Decisions.Decide(r.Context(), req)
	switch {
	case errors.Is(err, decision.ErrNoPolicy):
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.ErrorTypeServiceUnavailable, err.Error())
		return
	case err != nil && res.Trace.DecisionID == "":
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.ErrorTypeServerError, err.Error())
		return
	}

	resp := DecideResponse{Result: res}
	if err != nil {
		resp.RecordError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Policy.Current()
	if p == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.ErrorTypeServiceUnavailable,
			decision.ErrNoPolicy.Error())
		return
	}
	c := canonical.Policy(p, s.deps.Lint.Registry)
	writeJSON(w, http.StatusOK, PolicyResponse{
		Policy: c,
		Hash:   recorder.HashPolicy(c),
		Report: lint.Policy(c, s.deps.Lint),
	})
}

// handleLint lints a policy document from the request body. YAML is
// accepted when the Content-Type says so.
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeBodyError(w, r, err)
		return
	}

	format := loader.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = loader.FormatYAML
	}
	p, err := loader.ParsePolicy(data, format, "request body")
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
		return
	}

	c := canonical.Policy(p, s.deps.Lint.Registry)
	writeJSON(w, http.StatusOK, LintResponse{
		Hash:   recorder.HashPolicy(c),
		Report: lint.Policy(c, s.deps.Lint),
	})
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	if !s.requireStorage(w, r) {
		return
	}
	q, err := parseTraceQuery(r)
	if err == nil {
		err = query.Validate(q)
	}
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest, err.Error())
		return
	}
	query.ApplyDefaults(q)

	records, err := s.deps.Storage.Query(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to query evidence", "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to query evidence")
		return
	}
	total, err := s.deps.Storage.Count(r.Context(), q)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to count evidence", "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to query evidence")
		return
	}
	if records == nil {
		records = []*evidence.Record{}
	}

	writeJSON(w, http.StatusOK, TraceListResponse{
		Records: records,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	if !s.requireStorage(w, r) {
		return
	}
	id := r.PathValue("id")
	rec, err := s.deps.Storage.Get(r.Context(), id)
	if errors.Is(err, evidence.ErrNotFound) {
		middleware.WriteError(w, r, http.StatusNotFound, middleware.ErrorTypeNotFound,
			fmt.Sprintf("no evidence record %q", id))
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to read evidence", "id", id, "error", err)
		middleware.WriteError(w, r, http.StatusInternalServerError, middleware.ErrorTypeServerError, "failed to read evidence")
		return
	}

	resp := TraceResponse{Record: rec, Verified: true}
	if err := recorder.Verify(rec); err != nil {
		resp.Verified = false
		resp.VerifyError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireStorage(w http.ResponseWriter, r *http.Request) bool {
	if s.deps.Storage == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, middleware.ErrorTypeServiceUnavailable,
			"evidence storage is disabled")
		return false
	}
	return true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		s.writeBodyError(w, r, err)
		return false
	}
	return true
}

func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, middleware.ErrorTypeRequestTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	middleware.WriteError(w, r, http.StatusBadRequest, middleware.ErrorTypeInvalidRequest,
		fmt.Sprintf("invalid request body: %v", err))
}

// parseTraceQuery maps URL parameters onto an evidence query. Times are
// RFC 3339.
func parseTraceQuery(r *http.Request) (*evidence.Query, error) {
	v := r.URL.Query()
	q := &evidence.Query{
		ID:            v.Get("id"),
		DecisionID:    v.Get("decision_id"),
		Context:       v.Get("context"),
		Outcome:       engine.Outcome(strings.ToUpper(v.Get("outcome"))),
		ChosenPlanID:  v.Get("chosen_plan_id"),
		PolicyVersion: v.Get("policy_version"),
		SortBy:        v.Get("sort_by"),
		SortOrder:     v.Get("sort_order"),
	}

	var err error
	if q.Limit, err = intParam(v.Get("limit")); err != nil {
		return nil, fmt.Errorf("invalid limit: %w", err)
	}
	if q.Offset, err = intParam(v.Get("offset")); err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}
	if q.StartTime, err = timeParam(v.Get("start_time")); err != nil {
		return nil, fmt.Errorf("invalid start_time: %w", err)
	}
	if q.EndTime, err = timeParam(v.Get("end_time")); err != nil {
		return nil, fmt.Errorf("invalid end_time: %w", err)
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func timeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

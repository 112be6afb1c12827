package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

var validate = validator.New()

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", service.ErrInvalidRequest)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// ── Audit ────────────────────────────────────────────────────────────────────

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	q, err := auditQueryFromURL(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	page, err := s.audit.Query(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditEventsResponse(page))
}

func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	q, err := aggregateQueryFromURL(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	sum, err := s.audit.Aggregate(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auditSummaryResponse(sum))
}

// ── Benefits ─────────────────────────────────────────────────────────────────

func (s *Server) handleListBenefits(w http.ResponseWriter, r *http.Request) {
	list, err := s.benefits.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]types.BenefitResponse, 0, len(list))
	for _, b := range list {
		out = append(out, benefitResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBenefit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	b, err := s.benefits.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, benefitResponse(b))
}

func (s *Server) handleUpdateBenefit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req types.BenefitUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b := store.Benefit{ID: id, Name: req.Name, Description: req.Description, Active: req.Active}
	if err := s.benefits.Update(r.Context(), b); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	updated, err := s.benefits.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, benefitResponse(updated))
}

func (s *Server) handleRedeemBenefit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req types.RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	red, err := s.benefits.Redeem(r.Context(), req.UserID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.users.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Operations ───────────────────────────────────────────────────────────────

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	cps, err := s.checkpoints.ListCheckpoints(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]types.CheckpointResponse, 0, len(cps))
	for _, cp := range cps {
		out = append(out, types.CheckpointResponse{
			CheckpointID: cp.CheckpointID,
			FirstSeenAt:  cp.FirstSeenAt.UTC(),
			LastSeenAt:   cp.LastSeenAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueues(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]types.QueueStatus, len(s.queues))
	for _, q := range s.queues {
		out[q.Name()] = types.QueueStatus{Depth: q.Len(), Backlog: q.Backlog()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || uid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", "user_id must be a positive integer")
		return
	}
	if err := s.hub.ServeWS(w, r, uid); err != nil {
		// The upgrader has already written the HTTP error.
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "user_id", uid, "err", err)
	}
}

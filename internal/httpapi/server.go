package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/notify"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

type Dependencies struct {
	Logger      *slog.Logger
	Addr        string
	Engine      *service.DecisionEngine
	Audit       store.AuditTrailStore
	Benefits    *service.BenefitCatalog
	Users       *service.UserDirectory
	Checkpoints store.CheckpointStore
	Queues      []*queue.Queue
	Metrics     *metrics.Registry
	Hub         *notify.Hub
	RateLimit   RateLimit
}

type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	mux         *http.ServeMux
	engine      *service.DecisionEngine
	audit       store.AuditTrailStore
	benefits    *service.BenefitCatalog
	users       *service.UserDirectory
	checkpoints store.CheckpointStore
	queues      []*queue.Queue
	metrics     *metrics.Registry
	hub         *notify.Hub
	limiter     *checkpointLimiter
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:      d.Logger,
		mux:         mux,
		engine:      d.Engine,
		audit:       d.Audit,
		benefits:    d.Benefits,
		users:       d.Users,
		checkpoints: d.Checkpoints,
		queues:      d.Queues,
		metrics:     d.Metrics,
		hub:         d.Hub,
		limiter:     newCheckpointLimiter(d.RateLimit),
	}

	mux.HandleFunc("POST /v1/access/decide", s.handleDecide)
	mux.HandleFunc("GET /v1/audit/events", s.handleAuditEvents)
	mux.HandleFunc("GET /v1/audit/summary", s.handleAuditSummary)
	mux.HandleFunc("GET /v1/benefits", s.handleListBenefits)
	mux.HandleFunc("GET /v1/benefits/{id}", s.handleGetBenefit)
	mux.HandleFunc("PUT /v1/benefits/{id}", s.handleUpdateBenefit)
	mux.HandleFunc("POST /v1/benefits/{id}/redeem", s.handleRedeemBenefit)
	mux.HandleFunc("DELETE /v1/users/{id}", s.handleDeleteUser)
	mux.HandleFunc("GET /v1/checkpoints", s.handleCheckpoints)
	mux.HandleFunc("GET /v1/queues", s.handleQueues)
	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)
	mux.HandleFunc("GET /v1/notifications/ws", s.handleNotificationsWS)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// handleDecide accepts the checkpoint request as JSON or as a protobuf
// Struct and answers in the same encoding.  A denial is a 200.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	useProto := isProtobuf(r)

	var req types.DecisionRequest
	if useProto {
		msg := &structpb.Struct{}
		if err := readProto(r, msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		var err error
		if req, err = types.DecisionRequestFromStruct(msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", err.Error())
			return
		}
	} else {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	if !s.limiter.Allow(req.CheckpointID) {
		s.metrics.Inc("http.rate_limited", req.CheckpointID)
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests from this checkpoint")
		return
	}

	res, err := s.engine.Decide(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "decide error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	resp := types.NewDecisionResponse(res)
	if !useProto {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	msg, err := types.DecisionResponseStruct(resp)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encode decision struct", "decision_id", res.DecisionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeProto(w, http.StatusOK, msg)
}

// writeServiceError maps the service sentinels shared by the admin routes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, service.ErrBenefitNotFound):
		writeError(w, http.StatusNotFound, "benefit_not_found", err.Error())
	case errors.Is(err, service.ErrBenefitInactive):
		writeError(w, http.StatusConflict, "benefit_inactive", err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

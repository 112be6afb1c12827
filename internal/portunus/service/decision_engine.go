package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

const EventTypeAccessDenied = string(events.AccessDenied)

// AuditAppender is the write side of the audit trail.
type AuditAppender interface {
	Append(ctx context.Context, ev store.AuditEvent) error
}

// EventPublisher publishes domain events without reporting failures.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event)
}

type DecisionDeps struct {
	Users     store.UserStore
	Spaces    store.SpaceStore
	Rules     store.RuleStore
	Decisions store.DecisionStore
	Audit     AuditAppender
	Publisher EventPublisher
	Clock     clock.Clock
	// Location is the zone opening hours are expressed in.  Defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
}

// DecisionEngine decides whether a user may enter a space.
type DecisionEngine struct {
	users     store.UserStore
	spaces    store.SpaceStore
	rules     store.RuleStore
	decisions store.DecisionStore
	audit     AuditAppender
	publisher EventPublisher
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewDecisionEngine(d DecisionDeps) *DecisionEngine {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &DecisionEngine{
		users:     d.Users,
		spaces:    d.Spaces,
		rules:     d.Rules,
		decisions: d.Decisions,
		audit:     d.Audit,
		publisher: d.Publisher,
		clock:     d.Clock,
		location:  d.Location,
		logger:    d.Logger,
		validate:  newValidator(),
	}
}

// Decide runs the guard chain and records the outcome.  A denial is a
// normal result, not an error.  Errors are either ErrInvalidRequest or an
// *InfrastructureError.
//
// Once validation passes the call no longer observes ctx cancellation, so
// a client that disconnects mid-decision still leaves a complete record.
func (e *DecisionEngine) Decide(ctx context.Context, req types.DecisionRequest) (types.DecisionResult, error) {
	req.CheckpointID = strings.TrimSpace(req.CheckpointID)
	if err := e.validate.Struct(req); err != nil {
		return types.DecisionResult{}, fmt.Errorf("%w: %s", ErrInvalidRequest, describeValidation(err))
	}

	ctx = context.WithoutCancel(ctx)
	now := e.clock.Now()

	kind, details, err := e.evaluate(ctx, req, now)
	if err != nil {
		e.logger.ErrorContext(ctx, "guard evaluation failed",
			"user_id", req.UserID, "space_id", req.SpaceID, "checkpoint_id", req.CheckpointID, "err", err)
		return types.DecisionResult{}, &InfrastructureError{Op: "evaluate guards", Err: err}
	}

	res := types.DecisionResult{
		DecisionID: uuid.NewString(),
		Permitted:  kind == "",
		ErrorKind:  kind,
		Reason:     kind.Reason(),
		Details:    details,
		Timestamp:  now,
	}

	if err := e.decisions.RecordDecision(ctx, store.AccessDecisionRecord{
		ID:           res.DecisionID,
		UserID:       req.UserID,
		SpaceID:      req.SpaceID,
		CheckpointID: req.CheckpointID,
		Result:       res.Outcome(),
		ErrorKind:    res.ErrorKind,
		Timestamp:    now,
	}); err != nil {
		e.logger.ErrorContext(ctx, "decision record write failed",
			"decision_id", res.DecisionID, "err", err)
		return types.DecisionResult{}, &InfrastructureError{Op: "record decision", Err: err}
	}

	if !res.Permitted {
		e.appendAudit(ctx, req, res)
		e.publishDenied(ctx, req, res)
	}

	e.logger.InfoContext(ctx, "access decision",
		"decision_id", res.DecisionID,
		"user_id", req.UserID,
		"space_id", req.SpaceID,
		"checkpoint_id", req.CheckpointID,
		"permitted", res.Permitted,
		"error_kind", res.ErrorKind)

	return res, nil
}

// evaluate runs the guards in order and returns the first failing kind, or
// "" when every guard passes.  Each guard loads only what it needs.
func (e *DecisionEngine) evaluate(ctx context.Context, req types.DecisionRequest, now time.Time) (types.ErrorKind, map[string]any, error) {
	user, ok, err := e.users.GetUser(ctx, req.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("get user %d: %w", req.UserID, err)
	}
	if !ok {
		return types.UsuarioNoExiste, map[string]any{"userId": req.UserID}, nil
	}
	if !user.CredentialCurrent(now) {
		d := map[string]any{"userId": user.ID, "credentialValid": user.CredentialValid}
		if user.CredentialExpiresAt != nil {
			d["credentialExpiresAt"] = user.CredentialExpiresAt.UTC().Format(time.RFC3339)
		}
		return types.UsuarioInvalido, d, nil
	}

	space, ok, err := e.spaces.GetSpace(ctx, req.SpaceID)
	if err != nil {
		return "", nil, fmt.Errorf("get space %d: %w", req.SpaceID, err)
	}
	if !ok {
		return types.EspacioNoExiste, map[string]any{"spaceId": req.SpaceID}, nil
	}
	if !space.Active {
		return types.EspacioInactivo, map[string]any{"spaceId": space.ID, "spaceName": space.Name}, nil
	}

	rule, ok, err := e.rules.GetActiveRuleForSpace(ctx, space.ID)
	if err != nil {
		return "", nil, fmt.Errorf("get rule for space %d: %w", space.ID, err)
	}
	if !ok {
		return types.ReglasNoConfiguradas, map[string]any{"spaceId": space.ID}, nil
	}

	if !rule.InValidity(now) {
		return types.FueraDeVigencia, map[string]any{
			"ruleId":    rule.ID,
			"validFrom": rule.ValidFrom.UTC().Format(time.RFC3339),
			"validTo":   rule.ValidTo.UTC().Format(time.RFC3339),
		}, nil
	}

	tod := store.TimeOfDayOf(now.In(e.location))
	if !rule.WithinHours(tod) {
		return types.FueraDeHorario, map[string]any{
			"ruleId":    rule.ID,
			"openTime":  rule.OpenTime.String(),
			"closeTime": rule.CloseTime.String(),
			"timeOfDay": tod.String(),
			"timezone":  e.location.String(),
		}, nil
	}

	if !rule.AllowsRole(user.Role) {
		return types.RolNoPermitido, map[string]any{
			"ruleId":       rule.ID,
			"role":         user.Role,
			"allowedRoles": rule.AllowedRoles,
		}, nil
	}

	return "", nil, nil
}

// appendAudit writes the denial to the audit trail.  Failures, including
// panics, are logged and swallowed.
func (e *DecisionEngine) appendAudit(ctx context.Context, req types.DecisionRequest, res types.DecisionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "audit append panicked", "decision_id", res.DecisionID, "panic", r)
		}
	}()
	if e.audit == nil {
		return
	}

	payload := map[string]any{
		"decisionId": res.DecisionID,
		"errorKind":  string(res.ErrorKind),
		"reason":     res.Reason,
	}
	if len(res.Details) > 0 {
		payload["details"] = res.Details
	}
	spaceID := req.SpaceID

	if err := e.audit.Append(ctx, store.AuditEvent{
		EventType:    EventTypeAccessDenied,
		Timestamp:    res.Timestamp,
		UserID:       req.UserID,
		SpaceID:      &spaceID,
		Result:       string(types.Denied),
		CheckpointID: req.CheckpointID,
		Payload:      payload,
	}); err != nil {
		e.logger.WarnContext(ctx, "audit append failed", "decision_id", res.DecisionID, "err", err)
	}
}

func (e *DecisionEngine) publishDenied(ctx context.Context, req types.DecisionRequest, res types.DecisionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "access denied publish panicked", "decision_id", res.DecisionID, "panic", r)
		}
	}()
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ctx, events.NewAccessDenied(
		req.UserID, req.SpaceID, req.CheckpointID, res.ErrorKind, res.Reason, res.Timestamp))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

// AccessDecisionRecord is the immutable trace of one decision attempt.
type AccessDecisionRecord struct {
	ID           string
	UserID       int64
	SpaceID      int64
	CheckpointID string
	Result       types.Outcome
	ErrorKind    types.ErrorKind // empty when permitted
	Timestamp    time.Time
}

// DecisionStore persists decision records.  Records are never updated.
type DecisionStore interface {
	RecordDecision(ctx context.Context, rec AccessDecisionRecord) error
}

// Checkpoint is a door reader that has submitted at least one decision.
type Checkpoint struct {
	CheckpointID string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

type CheckpointStore interface {
	ListCheckpoints(ctx context.Context) ([]Checkpoint, error)
}

// Package events defines the domain events emitted by the access core and
// the publish/consume pipeline that carries them.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

const Topic = "portunus.events"

type Type string

const (
	AccessDenied    Type = "access.denied"
	BenefitRedeemed Type = "benefit.redeemed"
	UserDeleted     Type = "user.deleted"
)

// Event is an immutable domain event.  Build it with one of the New*
// constructors; the business fields that apply depend on Type.
type Event struct {
	ID             string          `json:"eventId" validate:"required"`
	Type           Type            `json:"eventType" validate:"required,oneof=access.denied benefit.redeemed user.deleted"`
	Timestamp      time.Time       `json:"timestamp"`
	UserID         int64           `json:"userId" validate:"gt=0"`
	SpaceID        int64           `json:"spaceId,omitempty"`
	CheckpointID   string          `json:"checkpointId,omitempty"`
	ErrorKind      types.ErrorKind `json:"errorKind,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	BenefitID      int64           `json:"benefitId,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"required,len=64,hexadecimal"`
}

func newEvent(t Type, userID int64, ts time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: ts.UTC(), UserID: userID}
}

func NewAccessDenied(userID, spaceID int64, checkpointID string, kind types.ErrorKind, reason string, ts time.Time) Event {
	e := newEvent(AccessDenied, userID, ts)
	e.SpaceID = spaceID
	e.CheckpointID = checkpointID
	e.ErrorKind = kind
	e.Reason = reason
	return e.withKey()
}

func NewBenefitRedeemed(userID, benefitID int64, ts time.Time) Event {
	e := newEvent(BenefitRedeemed, userID, ts)
	e.BenefitID = benefitID
	return e.withKey()
}

func NewUserDeleted(userID int64, ts time.Time) Event {
	return newEvent(UserDeleted, userID, ts).withKey()
}

func (e Event) withKey() Event {
	e.IdempotencyKey = DeriveKey(e)
	return e
}

// DeriveKey hashes the event type, its business fields and its timestamp
// truncated to the second.  Two events describing the same fact within the
// same second share a key.
func DeriveKey(e Event) string {
	parts := []string{string(e.Type), strconv.FormatInt(e.UserID, 10)}
	switch e.Type {
	case AccessDenied:
		parts = append(parts, strconv.FormatInt(e.SpaceID, 10), e.CheckpointID, string(e.ErrorKind))
	case BenefitRedeemed:
		parts = append(parts, strconv.FormatInt(e.BenefitID, 10))
	}
	parts = append(parts, strconv.FormatInt(e.Timestamp.Unix(), 10))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

var validate = validator.New()

// Decode parses and validates a wire payload.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := validate.Struct(e); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	if e.Timestamp.IsZero() {
		return Event{}, fmt.Errorf("invalid event: missing timestamp")
	}
	return e, nil
}

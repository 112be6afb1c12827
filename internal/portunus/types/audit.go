package types

import "time"

type AuditEventResponse struct {
	EventID      string         `json:"eventId"`
	EventType    string         `json:"eventType"`
	Timestamp    time.Time      `json:"timestamp"`
	UserID       int64          `json:"userId"`
	SpaceID      *int64         `json:"spaceId,omitempty"`
	Result       string         `json:"result"`
	CheckpointID string         `json:"checkpointId,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

type AuditEventsResponse struct {
	Events     []AuditEventResponse `json:"events"`
	TotalCount int64                `json:"totalCount"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
}

type AuditBucketResponse struct {
	Start  time.Time        `json:"start"`
	Counts map[string]int64 `json:"counts"`
}

type AuditSummaryResponse struct {
	Totals  map[string]int64      `json:"totals"`
	Buckets []AuditBucketResponse `json:"buckets"`
}

type BenefitResponse struct {
	BenefitID   int64     `json:"benefitId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type BenefitUpdateRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Active      bool   `json:"active"`
}

type RedeemRequest struct {
	UserID int64 `json:"userId" validate:"gt=0"`
}

type CheckpointResponse struct {
	CheckpointID string    `json:"checkpointId"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

// QueueStatus reports the backlog of one in-process queue.
type QueueStatus struct {
	Depth   int            `json:"depth"`
	Backlog map[string]int `json:"backlog"`
}

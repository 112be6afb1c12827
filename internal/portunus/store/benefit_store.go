package store

import (
	"context"
	"time"
)

type Benefit struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	UpdatedAt   time.Time
}

type BenefitStore interface {
	ListBenefits(ctx context.Context) ([]Benefit, error)
	GetBenefit(ctx context.Context, id int64) (Benefit, bool, error)
	UpsertBenefit(ctx context.Context, b Benefit) error
}

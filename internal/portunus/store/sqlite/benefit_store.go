package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/accesscore/internal/db"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type BenefitStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewBenefitStore(db *sql.DB, writer *dbpkg.Worker) *BenefitStore {
	return &BenefitStore{db: db, writer: writer}
}

func (s *BenefitStore) ListBenefits(ctx context.Context) ([]store.Benefit, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT benefit_id, name, description, active, updated_at_ms
FROM benefits
ORDER BY benefit_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListBenefits query: %w", err)
	}
	defer rows.Close()

	var out []store.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBenefits scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBenefits rows: %w", err)
	}
	return out, nil
}

func (s *BenefitStore) GetBenefit(ctx context.Context, id int64) (store.Benefit, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT benefit_id, name, description, active, updated_at_ms
FROM benefits
WHERE benefit_id = ?;
`, id)
	b, err := scanBenefit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Benefit{}, false, nil
	}
	if err != nil {
		return store.Benefit{}, false, fmt.Errorf("GetBenefit query: %w", err)
	}
	return b, true, nil
}

func (s *BenefitStore) UpsertBenefit(ctx context.Context, b store.Benefit) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	var active int
	if b.Active {
		active = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO benefits(benefit_id, name, description, active, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(benefit_id) DO UPDATE SET
  name          = excluded.name,
  description   = excluded.description,
  active        = excluded.active,
  updated_at_ms = excluded.updated_at_ms;
`, b.ID, b.Name, b.Description, active, b.UpdatedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("UpsertBenefit: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBenefit(r rowScanner) (store.Benefit, error) {
	var (
		b         store.Benefit
		active    int
		updatedMs int64
	)
	if err := r.Scan(&b.ID, &b.Name, &b.Description, &active, &updatedMs); err != nil {
		return store.Benefit{}, err
	}
	b.Active = active == 1
	b.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return b, nil
}

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

// DirectoryStore reads users, spaces and access rules.  It implements
// store.UserStore, store.SpaceStore and store.RuleStore.
type DirectoryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDirectoryStore(db *sql.DB, writer *dbpkg.Worker) *DirectoryStore {
	return &DirectoryStore{db: db, writer: writer}
}

func (s *DirectoryStore) GetUser(ctx context.Context, userID int64) (store.User, bool, error) {
	var (
		u         store.User
		valid     int
		expiresMs sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT user_id, name, role, credential_valid, credential_expires_at_ms
FROM users
WHERE user_id = ?;
`, userID).Scan(&u.ID, &u.Name, &u.Role, &valid, &expiresMs)

	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, false, nil
	}
	if err != nil {
		return store.User{}, false, fmt.Errorf("GetUser query: %w", err)
	}

	u.CredentialValid = valid == 1
	if expiresMs.Valid {
		t := time.UnixMilli(expiresMs.Int64).UTC()
		u.CredentialExpiresAt = &t
	}
	return u, true, nil
}

func (s *DirectoryStore) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	var deleted bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?;`, userID)
		if err != nil {
			return fmt.Errorf("DeleteUser: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("DeleteUser rows affected: %w", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func (s *DirectoryStore) GetSpace(ctx context.Context, spaceID int64) (store.Space, bool, error) {
	var (
		sp       store.Space
		kind     string
		active   int
		parentID sql.NullInt64
		floor    sql.NullInt64
		capacity sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT space_id, name, kind, active, parent_id, floor, capacity
FROM spaces
WHERE space_id = ?;
`, spaceID).Scan(&sp.ID, &sp.Name, &kind, &active, &parentID, &floor, &capacity)

	if errors.Is(err, sql.ErrNoRows) {
		return store.Space{}, false, nil
	}
	if err != nil {
		return store.Space{}, false, fmt.Errorf("GetSpace query: %w", err)
	}

	sp.Kind = store.SpaceKind(kind)
	sp.Active = active == 1
	if parentID.Valid {
		sp.ParentID = &parentID.Int64
	}
	if floor.Valid {
		f := int(floor.Int64)
		sp.Floor = &f
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		sp.Capacity = &c
	}
	return sp, true, nil
}

func (s *DirectoryStore) GetActiveRuleForSpace(ctx context.Context, spaceID int64) (store.AccessRule, bool, error) {
	var (
		r             store.AccessRule
		openS, closeS int
		fromMs, toMs  int64
		roles         string
		active        int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT rule_id, space_id, open_time_s, close_time_s, valid_from_ms, valid_to_ms, allowed_roles, active
FROM access_rules
WHERE space_id = ? AND active = 1
ORDER BY rule_id
LIMIT 1;
`, spaceID).Scan(&r.ID, &r.SpaceID, &openS, &closeS, &fromMs, &toMs, &roles, &active)

	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessRule{}, false, nil
	}
	if err != nil {
		return store.AccessRule{}, false, fmt.Errorf("GetActiveRuleForSpace query: %w", err)
	}

	r.OpenTime = store.TimeOfDay(openS)
	r.CloseTime = store.TimeOfDay(closeS)
	r.ValidFrom = time.UnixMilli(fromMs).UTC()
	r.ValidTo = time.UnixMilli(toMs).UTC()
	r.AllowedRoles = store.SplitRoles(roles)
	r.Active = active == 1
	return r, true, nil
}

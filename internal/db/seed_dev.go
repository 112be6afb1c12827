package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a minimal campus (one building, two rooms, a handful of
// users, rules and benefits) so a fresh dev database can answer decisions.
// Every statement is idempotent.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	yearAgo := now.AddDate(-1, 0, 0).UnixMilli()
	yearAhead := now.AddDate(1, 0, 0).UnixMilli()

	users := []struct {
		id   int64
		name string
		role string
	}{
		{1, "Ana Torres", "student"},
		{2, "Luis Pardo", "teacher"},
		{3, "Marta Gil", "admin"},
	}
	for _, u := range users {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO users(user_id, name, role, credential_valid, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 1, ?, ?);`, u.id, u.name, u.role, nowMs, nowMs); err != nil {
			return fmt.Errorf("seed user %d: %w", u.id, err)
		}
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO spaces(space_id, name, kind, active, created_at_ms, updated_at_ms)
VALUES (100, 'Main Building', 'building', 1, ?, ?);`, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed building: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO spaces(space_id, name, kind, active, parent_id, floor, capacity, created_at_ms, updated_at_ms)
VALUES (101, 'Room 1.01', 'room', 1, 100, 1, 40, ?, ?),
       (102, 'Robotics Lab', 'lab', 1, 100, 2, 20, ?, ?);`, nowMs, nowMs, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}

	var rules int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_rules;`).Scan(&rules); err != nil {
		return fmt.Errorf("count rules: %w", err)
	}
	if rules == 0 {
		if _, err := db.ExecContext(ctx, `
INSERT INTO access_rules(space_id, open_time_s, close_time_s, valid_from_ms, valid_to_ms, allowed_roles, active, created_at_ms, updated_at_ms)
VALUES (100, 0,     86399, ?, ?, 'student,teacher,admin', 1, ?, ?),
       (101, 25200, 79200, ?, ?, 'student,teacher',       1, ?, ?),
       (102, 28800, 72000, ?, ?, 'teacher,admin',         1, ?, ?);`,
			yearAgo, yearAhead, nowMs, nowMs,
			yearAgo, yearAhead, nowMs, nowMs,
			yearAgo, yearAhead, nowMs, nowMs,
		); err != nil {
			return fmt.Errorf("seed rules: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO benefits(benefit_id, name, description, active, updated_at_ms)
VALUES (1, 'Cafeteria discount', '10% off at the campus cafeteria', 1, ?),
       (2, 'Gym pass', 'Free access to the sports centre', 1, ?);`, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed benefits: %w", err)
	}

	return nil
}

package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	sqlitestore "github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// RecordDecision: column values
// ═══════════════════════════════════════════════════════════════════════════

func TestDecisionStore_RecordDecision_ColumnsCorrect(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDecisionStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	err := ds.RecordDecision(ctx, store.AccessDecisionRecord{
		ID:           "dec-1",
		UserID:       42,
		SpaceID:      7,
		CheckpointID: "gate-north",
		Result:       types.Denied,
		ErrorKind:    types.FueraDeHorario,
		Timestamp:    testNow,
	})
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	var (
		userID, spaceID int64
		checkpoint      string
		result          string
		errorKind       sql.NullString
		decidedMs       int64
	)
	err = conn.QueryRowContext(ctx, `
SELECT user_id, space_id, checkpoint_id, result, error_kind, decided_at_ms
FROM access_decisions WHERE decision_id = ?`, "dec-1",
	).Scan(&userID, &spaceID, &checkpoint, &result, &errorKind, &decidedMs)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if userID != 42 || spaceID != 7 {
		t.Errorf("expected user 42 / space 7, got %d / %d", userID, spaceID)
	}
	if checkpoint != "gate-north" {
		t.Errorf("expected checkpoint gate-north, got %q", checkpoint)
	}
	if result != "Denied" {
		t.Errorf("expected result Denied, got %q", result)
	}
	if !errorKind.Valid || errorKind.String != "FueraDeHorario" {
		t.Errorf("expected error_kind FueraDeHorario, got %v", errorKind)
	}
	if decidedMs != testNow.UnixMilli() {
		t.Errorf("expected decided_at_ms=%d, got %d", testNow.UnixMilli(), decidedMs)
	}
}

func TestDecisionStore_RecordDecision_PermitHasNullErrorKind(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDecisionStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	err := ds.RecordDecision(ctx, store.AccessDecisionRecord{
		ID: "dec-ok", UserID: 1, SpaceID: 1, CheckpointID: "gate", Result: types.Permitted, Timestamp: testNow,
	})
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	var errorKind sql.NullString
	if err := conn.QueryRowContext(ctx,
		`SELECT error_kind FROM access_decisions WHERE decision_id = 'dec-ok'`,
	).Scan(&errorKind); err != nil {
		t.Fatalf("query: %v", err)
	}
	if errorKind.Valid {
		t.Errorf("expected NULL error_kind for a permit, got %q", errorKind.String)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// RecordDecision: unknown users and spaces are still recorded
// ═══════════════════════════════════════════════════════════════════════════

func TestDecisionStore_RecordDecision_NoDirectoryForeignKeys(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDecisionStore(conn, newTestWriter(t, conn))

	err := ds.RecordDecision(context.Background(), store.AccessDecisionRecord{
		ID: "dec-ghost", UserID: 999, SpaceID: 888, CheckpointID: "gate",
		Result: types.Denied, ErrorKind: types.UsuarioNoExiste, Timestamp: testNow,
	})
	if err != nil {
		t.Fatalf("RecordDecision for unknown user/space: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Append-only
// ═══════════════════════════════════════════════════════════════════════════

func TestDecisionStore_RecordsAreImmutable(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDecisionStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	rec := store.AccessDecisionRecord{
		ID: "dec-1", UserID: 1, SpaceID: 1, CheckpointID: "gate", Result: types.Permitted, Timestamp: testNow,
	}
	if err := ds.RecordDecision(ctx, rec); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `UPDATE access_decisions SET result = 'Denied'`); err == nil {
		t.Error("expected UPDATE on access_decisions to be rejected")
	}

	if err := ds.RecordDecision(ctx, rec); err == nil {
		t.Error("expected duplicate decision id to be rejected")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Checkpoints
// ═══════════════════════════════════════════════════════════════════════════

func TestDecisionStore_TracksCheckpoints(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlitestore.NewDecisionStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i, cp := range []string{"gate-b", "gate-a", "gate-b"} {
		err := ds.RecordDecision(ctx, store.AccessDecisionRecord{
			ID:           string(rune('a' + i)),
			UserID:       1,
			SpaceID:      1,
			CheckpointID: cp,
			Result:       types.Permitted,
			Timestamp:    testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordDecision %d: %v", i, err)
		}
	}

	cps, err := ds.ListCheckpoints(ctx)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(cps))
	}
	if cps[0].CheckpointID != "gate-a" || cps[1].CheckpointID != "gate-b" {
		t.Errorf("unexpected order: %+v", cps)
	}
	if !cps[1].FirstSeenAt.Equal(testNow) {
		t.Errorf("gate-b first seen = %v, want %v", cps[1].FirstSeenAt, testNow)
	}
	if want := testNow.Add(2 * time.Minute); !cps[1].LastSeenAt.Equal(want) {
		t.Errorf("gate-b last seen = %v, want %v", cps[1].LastSeenAt, want)
	}
}

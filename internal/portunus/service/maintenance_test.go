package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/idempotency"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRetentionPruner_DisabledWhenIntervalNegative(t *testing.T) {
	q := queue.New("maintenance")
	p := service.NewRetentionPruner(q, -1, silentLogger())
	p.Start(context.Background())
	p.Stop()

	if n := q.Len(); n != 0 {
		t.Fatalf("expected no tasks, got %d", n)
	}
}

func TestRetentionPruner_SchedulesImmediately(t *testing.T) {
	q := queue.New("maintenance")
	p := service.NewRetentionPruner(q, time.Hour, silentLogger())
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return q.Len() == 2 })

	backlog := q.Backlog()
	if backlog[service.TaskAuditPurge] != 1 || backlog[service.TaskIdempotencyPurge] != 1 {
		t.Fatalf("unexpected backlog: %v", backlog)
	}
}

func TestMaintenanceTasks_PurgeAndCascade(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(testNow)

	audit := memory.NewAuditTrailStore(time.Hour, clk)
	if err := audit.Append(ctx, store.AuditEvent{EventType: "access.denied", Timestamp: testNow, UserID: 1, Result: "Denied"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	marks := memory.NewIdempotencyStore()
	guard := idempotency.NewGuard(marks, time.Minute, clk, silentLogger())
	if err := guard.MarkProcessed(ctx, "k1", 0); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	notes := memory.NewNotificationStore()
	for _, uid := range []int64{5, 5, 6} {
		if err := notes.CreateNotification(ctx, store.Notification{ID: uuid.NewString(), UserID: uid, Kind: "k", Title: "t", CreatedAt: testNow}); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}

	q := queue.New("maintenance")
	proc := queue.NewProcessor(q, 5*time.Millisecond, silentLogger())
	service.RegisterMaintenanceTasks(proc, service.MaintenanceDeps{
		Audit:         audit,
		Idempotency:   guard,
		Notifications: notes,
		Clock:         clk,
		Logger:        silentLogger(),
	})

	clk.Advance(2 * time.Hour)
	q.Enqueue(service.TaskAuditPurge, nil)
	q.Enqueue(service.TaskIdempotencyPurge, nil)
	q.Enqueue(events.TaskUserCascadeCleanup, int64(5))

	proc.Start(ctx)
	waitFor(t, func() bool { return q.Len() == 0 })
	proc.Stop()

	if n := marks.Len(); n != 0 {
		t.Errorf("expected marks purged, %d remain", n)
	}
	if n := audit.Len(); n != 0 {
		t.Errorf("expected audit purged, %d events remain", n)
	}
	left := notes.All()
	if len(left) != 1 || left[0].UserID != 6 {
		t.Errorf("expected only user 6 notifications, got %+v", left)
	}
}

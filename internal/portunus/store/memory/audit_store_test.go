package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/memory"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func denial(userID int64, ts time.Time) store.AuditEvent {
	return store.AuditEvent{
		EventType:    "access.denied",
		Timestamp:    ts,
		UserID:       userID,
		Result:       "Denied",
		CheckpointID: "gate-1",
		Payload:      map[string]any{"errorKind": "FueraDeHorario"},
	}
}

func TestAuditTrailStore_AppendSetsExpiry(t *testing.T) {
	clk := clock.NewFake(t0)
	s := memory.NewAuditTrailStore(48*time.Hour, clk)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, denial(7, t0)))

	page, err := s.Query(ctx, store.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	ev := page.Events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, t0, ev.CreatedAt)
	assert.Equal(t, t0.Add(48*time.Hour), ev.ExpireAt)
}

func TestAuditTrailStore_ExpiredEventsInvisible(t *testing.T) {
	clk := clock.NewFake(t0)
	s := memory.NewAuditTrailStore(24*time.Hour, clk)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, denial(1, t0)))

	clk.Advance(24 * time.Hour)

	page, err := s.Query(ctx, store.AuditQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
	assert.Empty(t, page.Events)

	sum, err := s.Aggregate(ctx, store.AggregateQuery{})
	require.NoError(t, err)
	assert.Empty(t, sum.Totals)

	n, err := s.PurgeExpired(ctx, clk.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAuditTrailStore_QueryFiltersAndPages(t *testing.T) {
	clk := clock.NewFake(t0)
	s := memory.NewAuditTrailStore(0, clk)
	ctx := context.Background()

	for i := range 7 {
		require.NoError(t, s.Append(ctx, denial(1, t0.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.Append(ctx, denial(2, t0)))

	uid := int64(1)
	page, err := s.Query(ctx, store.AuditQuery{UserID: &uid, Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 7, page.TotalCount)
	require.Len(t, page.Events, 3)
	// Newest first: page 2 holds minutes 3, 2, 1.
	assert.Equal(t, t0.Add(3*time.Minute), page.Events[0].Timestamp)
	assert.Equal(t, t0.Add(1*time.Minute), page.Events[2].Timestamp)

	page, err = s.Query(ctx, store.AuditQuery{UserID: &uid, Page: 3, PageSize: 3, Sort: store.SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, t0.Add(6*time.Minute), page.Events[0].Timestamp)

	page, err = s.Query(ctx, store.AuditQuery{From: t0.Add(5 * time.Minute), To: t0.Add(6 * time.Minute)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalCount)
}

func TestAuditTrailStore_TieBreakByID(t *testing.T) {
	s := memory.NewAuditTrailStore(0, clock.NewFake(t0))
	ctx := context.Background()

	for _, id := range []string{"b", "c", "a"} {
		ev := denial(1, t0)
		ev.ID = id
		require.NoError(t, s.Append(ctx, ev))
	}

	page, err := s.Query(ctx, store.AuditQuery{Sort: store.SortAsc})
	require.NoError(t, err)
	var ids []string
	for _, ev := range page.Events {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestAuditTrailStore_Aggregate(t *testing.T) {
	s := memory.NewAuditTrailStore(0, clock.NewFake(t0))
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, denial(1, t0)))
	require.NoError(t, s.Append(ctx, denial(1, t0.Add(30*time.Minute))))
	redeemed := denial(1, t0.Add(90*time.Minute))
	redeemed.EventType = "benefit.redeemed"
	require.NoError(t, s.Append(ctx, redeemed))

	sum, err := s.Aggregate(ctx, store.AggregateQuery{Bucket: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"access.denied": 2, "benefit.redeemed": 1}, sum.Totals)
	require.Len(t, sum.Buckets, 2)
	assert.Equal(t, t0, sum.Buckets[0].Start)
	assert.EqualValues(t, 2, sum.Buckets[0].Counts["access.denied"])
	assert.EqualValues(t, 1, sum.Buckets[1].Counts["benefit.redeemed"])

	sum, err = s.Aggregate(ctx, store.AggregateQuery{From: t0})
	require.NoError(t, err)
	require.Len(t, sum.Buckets, 1)
	assert.Equal(t, t0, sum.Buckets[0].Start)
}

func TestAuditTrailStore_QueryResultsDoNotAliasStoredPayload(t *testing.T) {
	s := memory.NewAuditTrailStore(0, clock.NewFake(t0))
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, denial(7, t0)))

	page, err := s.Query(ctx, store.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	page.Events[0].Payload["errorKind"] = "tampered"
	page.Events[0].Payload["extra"] = true

	again, err := s.Query(ctx, store.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, again.Events, 1)
	assert.Equal(t, map[string]any{"errorKind": "FueraDeHorario"}, again.Events[0].Payload)
}

func TestAuditTrailStore_EnsureIndexesOnce(t *testing.T) {
	s := memory.NewAuditTrailStore(0, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, denial(int64(i+1), time.Now()))
			_ = s.EnsureIndexes(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.IndexSetups())
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/cache"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/memory"
)

type catalogFixture struct {
	catalog  *service.BenefitCatalog
	benefits *memory.BenefitStore
	audit    *memory.AuditTrailStore
	pub      *recordingPublisher
	metrics  *metrics.Registry
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	clk := clock.NewFake(testNow)
	backend := cache.NewMemoryBackend()
	t.Cleanup(backend.Close)

	dir := memory.NewDirectory()
	dir.PutUser(store.User{ID: 1, Name: "Ana", Role: "student", CredentialValid: true})

	f := &catalogFixture{
		benefits: memory.NewBenefitStore(
			store.Benefit{ID: 1, Name: "Cafeteria discount", Active: true, UpdatedAt: testNow},
			store.Benefit{ID: 2, Name: "Retired perk", Active: false, UpdatedAt: testNow},
		),
		audit:   memory.NewAuditTrailStore(0, clk),
		pub:     &recordingPublisher{},
		metrics: metrics.NewRegistry(),
	}
	f.catalog = service.NewBenefitCatalog(service.BenefitDeps{
		Store:     f.benefits,
		Users:     dir,
		Cache:     backend,
		CacheTTL:  time.Minute,
		Publisher: f.pub,
		Audit:     f.audit,
		Metrics:   f.metrics,
		Clock:     clk,
		Logger:    silentLogger(),
	})
	return f
}

// ── Caching ──────────────────────────────────────────────────────────────────

func TestBenefitCatalog_ListServedFromCache(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	for range 3 {
		list, err := f.catalog.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 benefits, got %d", len(list))
		}
	}

	if n := f.benefits.Reads(); n != 1 {
		t.Fatalf("expected 1 store read, got %d", n)
	}
	if hits := f.metrics.Value("cache.hit", "benefits:all"); hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", hits)
	}
}

func TestBenefitCatalog_UpdateInvalidatesBeforeReturning(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	if _, err := f.catalog.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := f.catalog.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := f.catalog.Update(ctx, store.Benefit{ID: 1, Name: "Cafeteria 20%", Active: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, err := f.catalog.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list[0].Name != "Cafeteria 20%" {
		t.Errorf("list not refreshed: %+v", list[0])
	}
	b, err := f.catalog.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Name != "Cafeteria 20%" {
		t.Errorf("item not refreshed: %+v", b)
	}
	if !b.UpdatedAt.Equal(testNow) {
		t.Errorf("expected UpdatedAt stamped from clock, got %v", b.UpdatedAt)
	}
}

func TestBenefitCatalog_GetUnknown(t *testing.T) {
	f := newCatalogFixture(t)
	if _, err := f.catalog.Get(context.Background(), 42); !errors.Is(err, service.ErrBenefitNotFound) {
		t.Fatalf("expected ErrBenefitNotFound, got %v", err)
	}
}

// ── Redeem ───────────────────────────────────────────────────────────────────

func TestBenefitCatalog_RedeemPublishesAndAudits(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	r, err := f.catalog.Redeem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if r.EventID == "" || !r.RedeemedAt.Equal(testNow) {
		t.Errorf("unexpected redemption: %+v", r)
	}

	evs := f.pub.Events()
	if len(evs) != 1 || evs[0].Type != events.BenefitRedeemed || evs[0].BenefitID != 1 {
		t.Fatalf("unexpected events: %+v", evs)
	}
	if evs[0].ID != r.EventID {
		t.Errorf("event id mismatch: %s vs %s", evs[0].ID, r.EventID)
	}

	page, err := f.audit.Query(ctx, store.AuditQuery{EventType: string(events.BenefitRedeemed)})
	if err != nil {
		t.Fatalf("audit Query: %v", err)
	}
	if page.TotalCount != 1 {
		t.Fatalf("expected 1 audit event, got %d", page.TotalCount)
	}
}

func TestBenefitCatalog_RedeemRejections(t *testing.T) {
	tests := []struct {
		name      string
		userID    int64
		benefitID int64
		want      error
	}{
		{"unknown user", 9, 1, service.ErrUserNotFound},
		{"unknown benefit", 1, 9, service.ErrBenefitNotFound},
		{"inactive benefit", 1, 2, service.ErrBenefitInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCatalogFixture(t)
			_, err := f.catalog.Redeem(context.Background(), tt.userID, tt.benefitID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if n := len(f.pub.Events()); n != 0 {
				t.Errorf("expected no events, got %d", n)
			}
		})
	}
}

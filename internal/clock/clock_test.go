package clock_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
)

func TestFake_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now = %v, want %v", got, start)
	}

	if got := c.Advance(90 * time.Second); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("Advance returned %v", got)
	}

	later := start.Add(24 * time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("after Set, Now = %v, want %v", got, later)
	}
}

func TestReal_IsUTC(t *testing.T) {
	if loc := clock.Real().Now().Location(); loc != time.UTC {
		t.Errorf("Real().Now() location = %v, want UTC", loc)
	}
}

package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want store.TimeOfDay
		ok   bool
	}{
		{"08:00", 8 * 3600, true},
		{"23:59:59", 86399, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"8:00", 0, false},
		{"08:60", 0, false},
		{"08", 0, false},
		{"aa:bb", 0, false},
	}
	for _, tc := range cases {
		got, err := store.ParseTimeOfDay(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.in, got.String()[:len(tc.in)])
	}
}

func TestAccessRule_WithinHours(t *testing.T) {
	r := store.AccessRule{OpenTime: 8 * 3600, CloseTime: 20 * 3600}

	assert.True(t, r.WithinHours(8*3600), "open boundary is inclusive")
	assert.True(t, r.WithinHours(20*3600), "close boundary is inclusive")
	assert.False(t, r.WithinHours(20*3600+1))
	assert.False(t, r.WithinHours(7*3600+59*60))

	overnight := store.AccessRule{OpenTime: 22 * 3600, CloseTime: 6 * 3600}
	assert.False(t, overnight.WithinHours(23*3600))
	assert.False(t, overnight.WithinHours(1*3600))
}

func TestAccessRule_InValidity(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	r := store.AccessRule{ValidFrom: from, ValidTo: to}

	assert.True(t, r.InValidity(from))
	assert.True(t, r.InValidity(to))
	assert.False(t, r.InValidity(from.Add(-time.Second)))
	assert.False(t, r.InValidity(to.Add(time.Second)))
}

func TestUser_CredentialCurrent(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, store.User{CredentialValid: true}.CredentialCurrent(now))
	assert.True(t, store.User{CredentialValid: true, CredentialExpiresAt: &future}.CredentialCurrent(now))
	assert.False(t, store.User{CredentialValid: true, CredentialExpiresAt: &past}.CredentialCurrent(now))
	assert.False(t, store.User{CredentialValid: false}.CredentialCurrent(now))
}

func TestAuditQuery_Normalize(t *testing.T) {
	q := store.AuditQuery{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, store.DefaultPageSize, q.PageSize)
	assert.Equal(t, store.SortDesc, q.Sort)

	q = store.AuditQuery{Page: 3, PageSize: 10_000, Sort: store.SortAsc}.Normalize()
	assert.Equal(t, store.MaxPageSize, q.PageSize)
	assert.Equal(t, store.SortAsc, q.Sort)
	assert.Equal(t, 2*store.MaxPageSize, q.Offset())
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []string{"student", "teacher"}, store.SplitRoles(" student, ,teacher "))
	assert.Nil(t, store.SplitRoles(""))
}

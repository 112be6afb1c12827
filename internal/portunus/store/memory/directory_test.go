package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store/memory"
)

func TestDirectory_ActiveRulePicksLowestID(t *testing.T) {
	d := memory.NewDirectory()
	ctx := context.Background()

	d.PutRule(store.AccessRule{ID: 9, SpaceID: 5, Active: true})
	d.PutRule(store.AccessRule{ID: 3, SpaceID: 5, Active: false})
	d.PutRule(store.AccessRule{ID: 4, SpaceID: 5, Active: true})
	d.PutRule(store.AccessRule{ID: 1, SpaceID: 6, Active: true})

	r, ok, err := d.GetActiveRuleForSpace(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 4, r.ID)

	_, ok, err = d.GetActiveRuleForSpace(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, d.RuleLookups())
}

func TestDirectory_DeleteUser(t *testing.T) {
	d := memory.NewDirectory()
	ctx := context.Background()
	d.PutUser(store.User{ID: 1, Role: "student", CredentialValid: true})

	ok, err := d.DeleteUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.DeleteUser(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, _ := d.GetUser(ctx, 1)
	assert.False(t, found)
}

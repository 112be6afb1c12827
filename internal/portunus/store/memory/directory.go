package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

// Directory holds users, spaces and access rules in memory.  It implements
// store.UserStore, store.SpaceStore and store.RuleStore and is intended for
// tests and dev environments.
type Directory struct {
	mu     sync.RWMutex
	users  map[int64]store.User
	spaces map[int64]store.Space
	rules  []store.AccessRule
	nextID int64

	ruleLookups int
}

func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[int64]store.User),
		spaces: make(map[int64]store.Space),
	}
}

func (d *Directory) PutUser(u store.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) PutSpace(s store.Space) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spaces[s.ID] = s
}

// PutRule appends a rule, assigning an ID when it has none.  It returns the
// stored rule.
func (d *Directory) PutRule(r store.AccessRule) store.AccessRule {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.ID == 0 {
		d.nextID++
		r.ID = d.nextID
	} else if r.ID > d.nextID {
		d.nextID = r.ID
	}
	d.rules = append(d.rules, r)
	return r
}

func (d *Directory) GetUser(_ context.Context, userID int64) (store.User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	return u, ok, nil
}

func (d *Directory) DeleteUser(_ context.Context, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[userID]
	delete(d.users, userID)
	return ok, nil
}

func (d *Directory) GetSpace(_ context.Context, spaceID int64) (store.Space, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.spaces[spaceID]
	return s, ok, nil
}

func (d *Directory) GetActiveRuleForSpace(_ context.Context, spaceID int64) (store.AccessRule, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ruleLookups++

	var (
		best  store.AccessRule
		found bool
	)
	for _, r := range d.rules {
		if r.SpaceID != spaceID || !r.Active {
			continue
		}
		if !found || r.ID < best.ID {
			best, found = r, true
		}
	}
	return best, found, nil
}

// RuleLookups returns how many times GetActiveRuleForSpace was called.
// Test-only helper.
func (d *Directory) RuleLookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ruleLookups
}

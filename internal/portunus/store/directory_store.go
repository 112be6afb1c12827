package store

import (
	"context"
	"time"
)

type SpaceKind string

const (
	SpaceBuilding SpaceKind = "building"
	SpaceRoom     SpaceKind = "room"
	SpaceLab      SpaceKind = "lab"
)

type User struct {
	ID                  int64
	Name                string
	Role                string
	CredentialValid     bool
	CredentialExpiresAt *time.Time
}

// CredentialCurrent reports whether the user's credential is usable at now.
func (u User) CredentialCurrent(now time.Time) bool {
	if !u.CredentialValid {
		return false
	}
	return u.CredentialExpiresAt == nil || now.Before(*u.CredentialExpiresAt)
}

// Space is a building, room or lab.  ParentID, Floor and Capacity are only
// meaningful for rooms and labs.
type Space struct {
	ID       int64
	Name     string
	Kind     SpaceKind
	Active   bool
	ParentID *int64
	Floor    *int
	Capacity *int
}

type UserStore interface {
	GetUser(ctx context.Context, userID int64) (User, bool, error)
	// DeleteUser removes the user and reports whether a row existed.
	DeleteUser(ctx context.Context, userID int64) (bool, error)
}

type SpaceStore interface {
	GetSpace(ctx context.Context, spaceID int64) (Space, bool, error)
}

package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time of day %q: want HH:MM[:SS]", s)
	}
	limits := []int{23, 59, 59}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("time of day %q: bad component %q", s, p)
		}
		vals[i] = n
	}
	return TimeOfDay(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// TimeOfDayOf returns the wall-clock part of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

func (d TimeOfDay) Valid() bool { return d >= 0 && d < secondsPerDay }

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d)/3600, (int(d)%3600)/60, int(d)%60)
}

type AccessRule struct {
	ID           int64
	SpaceID      int64
	OpenTime     TimeOfDay
	CloseTime    TimeOfDay
	ValidFrom    time.Time
	ValidTo      time.Time
	AllowedRoles []string
	Active       bool
}

// InValidity reports whether now falls inside [ValidFrom, ValidTo].
func (r AccessRule) InValidity(now time.Time) bool {
	return !now.Before(r.ValidFrom) && !now.After(r.ValidTo)
}

// WithinHours compares on a single day: OpenTime <= t <= CloseTime.  A rule
// whose CloseTime is earlier than its OpenTime never matches.
func (r AccessRule) WithinHours(t TimeOfDay) bool {
	return r.OpenTime <= t && t <= r.CloseTime
}

func (r AccessRule) AllowsRole(role string) bool {
	return slices.Contains(r.AllowedRoles, role)
}

type RuleStore interface {
	// GetActiveRuleForSpace returns the lowest-id active rule for the space.
	GetActiveRuleForSpace(ctx context.Context, spaceID int64) (AccessRule, bool, error)
}

// SplitRoles parses the comma separated role list used by the relational
// store, dropping blanks.
func SplitRoles(csv string) []string {
	var out []string
	for _, r := range strings.Split(csv, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

// ── Query parameters ─────────────────────────────────────────────────────────

func parseTime(q url.Values, name string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339", name)
	}
	return t, nil
}

func parseInt(q url.Values, name string) (int64, bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer", name)
	}
	return n, true, nil
}

func auditQueryFromURL(q url.Values) (store.AuditQuery, error) {
	var (
		aq  store.AuditQuery
		err error
	)
	if aq.From, err = parseTime(q, "from"); err != nil {
		return aq, err
	}
	if aq.To, err = parseTime(q, "to"); err != nil {
		return aq, err
	}
	if uid, ok, err := parseInt(q, "userId"); err != nil {
		return aq, err
	} else if ok {
		aq.UserID = &uid
	}
	aq.EventType = strings.TrimSpace(q.Get("eventType"))
	aq.Result = strings.TrimSpace(q.Get("result"))

	if p, ok, err := parseInt(q, "page"); err != nil {
		return aq, err
	} else if ok {
		aq.Page = int(p)
	}
	if ps, ok, err := parseInt(q, "pageSize"); err != nil {
		return aq, err
	} else if ok {
		aq.PageSize = int(ps)
	}

	switch sort := strings.ToLower(strings.TrimSpace(q.Get("sort"))); sort {
	case "", "desc":
		aq.Sort = store.SortDesc
	case "asc":
		aq.Sort = store.SortAsc
	default:
		return aq, fmt.Errorf("sort must be asc or desc, got %q", sort)
	}

	if !aq.From.IsZero() && !aq.To.IsZero() && aq.To.Before(aq.From) {
		return aq, fmt.Errorf("to is before from")
	}
	return aq.Normalize(), nil
}

// aggregateQueryFromURL reads from, to and bucket.  bucket is a Go duration
// such as "1h"; it is optional.
func aggregateQueryFromURL(q url.Values) (store.AggregateQuery, error) {
	var (
		aq  store.AggregateQuery
		err error
	)
	if aq.From, err = parseTime(q, "from"); err != nil {
		return aq, err
	}
	if aq.To, err = parseTime(q, "to"); err != nil {
		return aq, err
	}
	if b := strings.TrimSpace(q.Get("bucket")); b != "" {
		d, err := time.ParseDuration(b)
		if err != nil || d < time.Second {
			return aq, fmt.Errorf("bucket must be a duration of at least 1s")
		}
		aq.Bucket = d
	}
	return aq, nil
}

// ── Responses ────────────────────────────────────────────────────────────────

func auditEventsResponse(p store.AuditPage) types.AuditEventsResponse {
	out := types.AuditEventsResponse{
		Events:     make([]types.AuditEventResponse, 0, len(p.Events)),
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
	for _, ev := range p.Events {
		out.Events = append(out.Events, types.AuditEventResponse{
			EventID:      ev.ID,
			EventType:    ev.EventType,
			Timestamp:    ev.Timestamp.UTC(),
			UserID:       ev.UserID,
			SpaceID:      ev.SpaceID,
			Result:       ev.Result,
			CheckpointID: ev.CheckpointID,
			Payload:      ev.Payload,
		})
	}
	return out
}

func auditSummaryResponse(s store.AuditSummary) types.AuditSummaryResponse {
	out := types.AuditSummaryResponse{
		Totals:  s.Totals,
		Buckets: make([]types.AuditBucketResponse, 0, len(s.Buckets)),
	}
	if out.Totals == nil {
		out.Totals = map[string]int64{}
	}
	for _, b := range s.Buckets {
		out.Buckets = append(out.Buckets, types.AuditBucketResponse{Start: b.Start.UTC(), Counts: b.Counts})
	}
	return out
}

func benefitResponse(b store.Benefit) types.BenefitResponse {
	return types.BenefitResponse{
		BenefitID:   b.ID,
		Name:        b.Name,
		Description: b.Description,
		Active:      b.Active,
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

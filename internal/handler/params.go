package handler

import (
	"net/url"
	"strconv"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
)

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// queryInt returns an integer query parameter or its default.
func queryInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("invalid %s %q", key, raw)
	}
	return v, nil
}

// queryOptionalInt64 returns a pointer to an int64 query parameter, or nil
// when the parameter is absent.
func queryOptionalInt64(q url.Values, key string) (*int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := parseInt64(raw)
	if err != nil || v <= 0 {
		return nil, domain.Invalid("invalid %s %q", key, raw)
	}
	return &v, nil
}

// queryOptionalTime parses a timestamp query parameter, accepting RFC 3339
// or a bare date. A bare date in a "to" position covers the whole day.
func queryOptionalTime(q url.Values, key string, endOfDay bool) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, domain.Invalid("invalid %s %q", key, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Unauthenticated("no token"), 401},
		{domain.Forbidden("wrong company"), 403},
		{domain.Invalid("bad input"), 400},
		{domain.Conflict("already active"), 409},
		{domain.NotFound("no such session"), 404},
		{errors.New("boom"), 500},
		{domain.Internal("query failed", errors.New("boom")), 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, discardLogger(), tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not JSON: %v", err)
		}
		if body.Error == "" {
			t.Fatalf("expected error message for %v", tc.err)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discardLogger(), domain.Internal("db exploded", errors.New("password=hunter2")))

	var body errorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "internal server error" {
		t.Fatalf("internal error details leaked: %q", body.Error)
	}
}

func TestQueryOptionalInt64(t *testing.T) {
	q := url.Values{"truck_id": {"42"}}
	v, err := queryOptionalInt64(q, "truck_id")
	if err != nil || v == nil || *v != 42 {
		t.Fatalf("got %v, %v", v, err)
	}

	if v, err := queryOptionalInt64(url.Values{}, "truck_id"); err != nil || v != nil {
		t.Fatalf("absent param should be nil, got %v, %v", v, err)
	}

	for _, bad := range []string{"abc", "-1", "0", "1.5"} {
		if _, err := queryOptionalInt64(url.Values{"truck_id": {bad}}, "truck_id"); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestQueryOptionalTime(t *testing.T) {
	got, err := queryOptionalTime(url.Values{"date_from": {"2025-06-01T08:30:00Z"}}, "date_from", false)
	if err != nil || got == nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if !got.Equal(time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}

	// Bare date in a "to" position covers the whole day.
	to, err := queryOptionalTime(url.Values{"date_to": {"2025-06-01"}}, "date_to", true)
	if err != nil {
		t.Fatalf("bare date failed: %v", err)
	}
	if to.Before(time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end-of-day expected, got %v", to)
	}

	if v, err := queryOptionalTime(url.Values{}, "date_to", true); err != nil || v != nil {
		t.Fatalf("absent param should be nil, got %v, %v", v, err)
	}

	if _, err := queryOptionalTime(url.Values{"date_to": {"junk"}}, "date_to", true); err == nil {
		t.Fatal("expected error for junk timestamp")
	}
}

package query

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestForCompanyAlwaysFirst(t *testing.T) {
	clause, args := ForCompany("t.company_id", 7).Clause()
	if clause != "WHERE t.company_id = $1" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if !reflect.DeepEqual(args, []any{int64(7)}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestPlaceholderNumbering(t *testing.T) {
	truckID := int64(3)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	clause, args := ForCompany("t.company_id", 7).
		WhereInt64("t.id = ?", &truckID).
		WhereTime("ws.start_time >= ?", &from).
		Where("ws.status = ?", "active").
		Clause()

	want := "WHERE t.company_id = $1 AND t.id = $2 AND ws.start_time >= $3 AND ws.status = $4"
	if clause != want {
		t.Fatalf("clause mismatch:\n got %q\nwant %q", clause, want)
	}
	if !reflect.DeepEqual(args, []any{int64(7), truckID, from, "active"}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestNilFiltersContributeNothing(t *testing.T) {
	clause, args := ForCompany("company_id", 1).
		WhereInt64("id = ?", nil).
		WhereTime("created_at >= ?", nil).
		WhereString("status = ?", "").
		Clause()

	if clause != "WHERE company_id = $1" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %v", args)
	}
}

func TestMultiPlaceholderCondition(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	clause, args := ForCompany("company_id", 1).
		Where("start_time BETWEEN ? AND ?", from, to).
		Clause()

	want := "WHERE company_id = $1 AND start_time BETWEEN $2 AND $3"
	if clause != want {
		t.Fatalf("clause mismatch:\n got %q\nwant %q", clause, want)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
}

func TestPaginateAndOrder(t *testing.T) {
	clause, args := ForCompany("company_id", 1).
		Where("status = ?", "completed").
		OrderBy("start_time DESC").
		Paginate(20, 40).
		Clause()

	want := "WHERE company_id = $1 AND status = $2 ORDER BY start_time DESC LIMIT $3 OFFSET $4"
	if clause != want {
		t.Fatalf("clause mismatch:\n got %q\nwant %q", clause, want)
	}
	if !reflect.DeepEqual(args, []any{int64(1), "completed", 20, 40}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestCountClauseExcludesOrderAndPagination(t *testing.T) {
	b := ForCompany("company_id", 1).
		Where("status = ?", "completed").
		OrderBy("start_time DESC").
		Paginate(20, 40)

	clause, args := b.CountClause()
	if clause != "WHERE company_id = $1 AND status = $2" {
		t.Fatalf("unexpected count clause %q", clause)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}

	// The page clause from the same builder is untouched.
	pageClause, pageArgs := b.Clause()
	if !strings.Contains(pageClause, "LIMIT $3 OFFSET $4") {
		t.Fatalf("unexpected page clause %q", pageClause)
	}
	if len(pageArgs) != 4 {
		t.Fatalf("expected 4 args, got %v", pageArgs)
	}
}

func TestNumberedContinuesFrom(t *testing.T) {
	cond, next := Numbered(" AND ws.start_time >= ?", 2)
	if cond != " AND ws.start_time >= $2" {
		t.Fatalf("unexpected condition %q", cond)
	}
	if next != 3 {
		t.Fatalf("expected next index 3, got %d", next)
	}

	cond, next = Numbered("a = ? AND b = ?", 5)
	if cond != "a = $5 AND b = $6" || next != 7 {
		t.Fatalf("unexpected rewrite %q next %d", cond, next)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(""); err != nil || g != GranularityDay {
		t.Fatalf("empty input should default to day, got %v %v", g, err)
	}
	for _, s := range []string{"hour", "day", "week", "month"} {
		if g, err := ParseGranularity(s); err != nil || string(g) != s {
			t.Fatalf("ParseGranularity(%q) = %v, %v", s, g, err)
		}
	}
	for _, s := range []string{"minute", "year", "DAY", "day; DROP TABLE work_sessions"} {
		if _, err := ParseGranularity(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestPeriodExpr(t *testing.T) {
	cases := map[Granularity]string{
		GranularityHour:  "TO_CHAR(DATE_TRUNC('hour', ws.start_time), 'YYYY-MM-DD HH24:00')",
		GranularityDay:   "TO_CHAR(DATE_TRUNC('day', ws.start_time), 'YYYY-MM-DD')",
		GranularityWeek:  "TO_CHAR(DATE_TRUNC('week', ws.start_time), 'YYYY-MM-DD')",
		GranularityMonth: "TO_CHAR(DATE_TRUNC('month', ws.start_time), 'YYYY-MM')",
	}
	for g, want := range cases {
		if got := g.PeriodExpr("ws.start_time"); got != want {
			t.Fatalf("PeriodExpr(%s):\n got %q\nwant %q", g, got, want)
		}
	}
}

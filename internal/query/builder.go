// Package query builds parameterized, company-scoped SQL fragments. Values
// never reach the query text; conditions carry ? markers that are rewritten
// to positional $n placeholders in one pass, so placeholder numbering cannot
// drift from the argument list.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Builder accumulates an ordered list of predicates plus the mandatory
// company predicate, and renders them as a WHERE clause with mechanically
// numbered placeholders.
type Builder struct {
	conds   []string
	args    []any
	orderBy string
	limit   int
	offset  int
	paged   bool
}

// ForCompany starts a builder with the mandatory company-scope predicate.
// column names the qualified company id column, e.g. "t.company_id".
// The predicate is always first and cannot be removed or overridden.
func ForCompany(column string, companyID int64) *Builder {
	b := &Builder{}
	b.conds = append(b.conds, column+" = ?")
	b.args = append(b.args, companyID)
	return b
}

// Where appends a condition. The condition must contain one ? marker per
// argument, in order.
func (b *Builder) Where(cond string, args ...any) *Builder {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
	return b
}

// WhereInt64 appends a single-argument condition when v is non-nil.
func (b *Builder) WhereInt64(cond string, v *int64) *Builder {
	if v == nil {
		return b
	}
	return b.Where(cond, *v)
}

// WhereTime appends a single-argument condition when v is non-nil.
func (b *Builder) WhereTime(cond string, v *time.Time) *Builder {
	if v == nil {
		return b
	}
	return b.Where(cond, *v)
}

// WhereString appends a single-argument condition when v is non-empty.
func (b *Builder) WhereString(cond string, v string) *Builder {
	if v == "" {
		return b
	}
	return b.Where(cond, v)
}

// OrderBy sets the ORDER BY expression. The expression is code-supplied,
// never caller input.
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = expr
	return b
}

// Paginate appends LIMIT/OFFSET placeholders after all predicates.
func (b *Builder) Paginate(limit, offset int) *Builder {
	b.limit = limit
	b.offset = offset
	b.paged = true
	return b
}

// Clause renders "WHERE ... [ORDER BY ...] [LIMIT $n OFFSET $m]" and the
// argument list in placeholder order.
func (b *Builder) Clause() (string, []any) {
	var sb strings.Builder
	sb.WriteString("WHERE ")
	next := 1
	for i, cond := range b.conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		next = writeNumbered(&sb, cond, next)
	}
	args := make([]any, len(b.args))
	copy(args, b.args)

	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.paged {
		sb.WriteString(" LIMIT $")
		sb.WriteString(strconv.Itoa(next))
		sb.WriteString(" OFFSET $")
		sb.WriteString(strconv.Itoa(next + 1))
		args = append(args, b.limit, b.offset)
	}
	return sb.String(), args
}

// CountClause renders only the WHERE clause and its arguments, for a COUNT
// query over the same predicates. Ordering and pagination are excluded.
func (b *Builder) CountClause() (string, []any) {
	var sb strings.Builder
	sb.WriteString("WHERE ")
	next := 1
	for i, cond := range b.conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		next = writeNumbered(&sb, cond, next)
	}
	args := make([]any, len(b.args))
	copy(args, b.args)
	return sb.String(), args
}

// Numbered rewrites the ? markers in cond to positional placeholders
// starting at next and returns the next free index. For SQL fragments
// assembled outside a Builder, such as join conditions that must share
// numbering with a WHERE clause.
func Numbered(cond string, next int) (string, int) {
	var sb strings.Builder
	n := writeNumbered(&sb, cond, next)
	return sb.String(), n
}

// writeNumbered copies cond into sb replacing each ? with the next $n.
func writeNumbered(sb *strings.Builder, cond string, next int) int {
	for _, r := range cond {
		if r == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(next))
			next++
			continue
		}
		sb.WriteRune(r)
	}
	return next
}

// Granularity is the closed set of supported date-grouping periods for
// activity series. Each value maps to a pre-validated SQL expression;
// caller input is parsed into the enum, never spliced into query text.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity maps caller input to a Granularity. Empty input defaults
// to day; anything else unknown is an error.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "":
		return GranularityDay, nil
	case string(GranularityHour), string(GranularityDay), string(GranularityWeek), string(GranularityMonth):
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unsupported granularity %q", s)
}

// PeriodExpr returns the grouping expression for a timestamp column. column
// is code-supplied (a qualified column name), never caller input.
func (g Granularity) PeriodExpr(column string) string {
	switch g {
	case GranularityHour:
		return "TO_CHAR(DATE_TRUNC('hour', " + column + "), 'YYYY-MM-DD HH24:00')"
	case GranularityWeek:
		return "TO_CHAR(DATE_TRUNC('week', " + column + "), 'YYYY-MM-DD')"
	case GranularityMonth:
		return "TO_CHAR(DATE_TRUNC('month', " + column + "), 'YYYY-MM')"
	default:
		return "TO_CHAR(DATE_TRUNC('day', " + column + "), 'YYYY-MM-DD')"
	}
}

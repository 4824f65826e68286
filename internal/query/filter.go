package query

import (
	"fmt"
	"strings"
	"time"
)

// RentType partitions lease transactions by deal structure. Jeonse rows
// carry no periodic rent (the monthly-rent field is zero or absent),
// monthly rows carry a strictly positive rent.
type RentType int

const (
	RentAll RentType = iota
	RentJeonse
	RentMonthly
)

// ParseRentType accepts all|jeonse|monthly; an empty value defaults to
// all, anything else is a client error.
func ParseRentType(raw string) (RentType, error) {
	switch strings.TrimSpace(raw) {
	case "", "all":
		return RentAll, nil
	case "jeonse":
		return RentJeonse, nil
	case "monthly":
		return RentMonthly, nil
	default:
		return RentAll, fmt.Errorf("rentType must be all|jeonse|monthly")
	}
}

func (t RentType) String() string {
	switch t {
	case RentJeonse:
		return "jeonse"
	case RentMonthly:
		return "monthly"
	default:
		return "all"
	}
}

// SQL returns the predicate over the given monthly-rent column
// expression. Rows with a NULL rent count as jeonse.
func (t RentType) SQL(rentCol string) string {
	switch t {
	case RentJeonse:
		return fmt.Sprintf("COALESCE(%s, 0) = 0", rentCol)
	case RentMonthly:
		return fmt.Sprintf("COALESCE(%s, 0) > 0", rentCol)
	default:
		return "TRUE"
	}
}

// Matches reports whether a row with the given monthly rent (nil when
// absent) belongs to this rent type.
func (t RentType) Matches(monthlyRent *int) bool {
	rent := 0
	if monthlyRent != nil {
		rent = *monthlyRent
	}
	switch t {
	case RentJeonse:
		return rent == 0
	case RentMonthly:
		return rent > 0
	default:
		return true
	}
}

// JibunFilter is the optional lot-number filter: an empty (or blank)
// value matches every row, otherwise the stored jibun must match exactly
// after trimming.
type JibunFilter struct {
	value string
}

func NewJibunFilter(raw string) JibunFilter {
	return JibunFilter{value: strings.TrimSpace(raw)}
}

func (f JibunFilter) Empty() bool { return f.value == "" }

// Value returns the trimmed jibun, used when echoing the resolved
// complex info back to the caller.
func (f JibunFilter) Value() string { return f.value }

func (f JibunFilter) SQL(b *ArgBinder, col string) string {
	if f.value == "" {
		return "TRUE"
	}
	return fmt.Sprintf("btrim(COALESCE(%s, '')) = %s", col, b.Bind(f.value))
}

func (f JibunFilter) Matches(stored string) bool {
	if f.value == "" {
		return true
	}
	return strings.TrimSpace(stored) == f.value
}

// DateRange is the optional inclusive date-range filter over normalized
// deal dates. When neither boundary is present the trailing recent
// window applies instead; a malformed boundary counts as absent.
type DateRange struct {
	from, to     time.Time
	hasFrom      bool
	hasTo        bool
	recentMonths int
}

func NewDateRange(fromRaw, toRaw string, recentMonths int) DateRange {
	r := DateRange{recentMonths: recentMonths}
	if s, ok := NormalizeBound(fromRaw); ok {
		r.from, r.hasFrom = ParseDateCode(s)
	}
	if s, ok := NormalizeBound(toRaw); ok {
		r.to, r.hasTo = ParseDateCode(s)
	}
	return r
}

// Bounded reports whether the caller supplied at least one usable
// boundary, which suppresses the default trailing window.
func (r DateRange) Bounded() bool { return r.hasFrom || r.hasTo }

func (r DateRange) From() (time.Time, bool) { return r.from, r.hasFrom }
func (r DateRange) To() (time.Time, bool)   { return r.to, r.hasTo }

// SQL emits the predicate over the given normalized-date expression.
// Rows whose date normalizes to NULL never satisfy a bounded range and
// fall outside the trailing window.
func (r DateRange) SQL(b *ArgBinder, dateExpr string) string {
	if !r.Bounded() {
		return fmt.Sprintf("(%s) >= (CURRENT_DATE - make_interval(months => %s))",
			dateExpr, b.Bind(r.recentMonths))
	}
	var conds []string
	if r.hasFrom {
		conds = append(conds, fmt.Sprintf("(%s) >= %s::date", dateExpr, b.Bind(r.from)))
	}
	if r.hasTo {
		conds = append(conds, fmt.Sprintf("(%s) <= %s::date", dateExpr, b.Bind(r.to)))
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

// Contains is the in-memory counterpart of SQL, used to check rows whose
// deal date is already normalized. Unknown dates (ok == false upstream)
// should not reach here.
func (r DateRange) Contains(d time.Time, now time.Time) bool {
	if !r.Bounded() {
		return !d.Before(now.AddDate(0, -r.recentMonths, 0))
	}
	if r.hasFrom && d.Before(r.from) {
		return false
	}
	if r.hasTo && d.After(r.to) {
		return false
	}
	return true
}

package ledger

import (
	"strconv"
	"strings"
	"time"
)

const (
	All           = "ALL"
	NoDateKey     = "no-date"
	dateKeyLayout = "2006-01-02"
)

// Period is the month/year window selected on the ledger screen.
// Month is "ALL" or "01".."12", Year is "ALL" or a four digit year.
type Period struct {
	Month string
	Year  string
}

// Normalize returns the period with unusable values replaced by "ALL".
// Out-of-range values are ignored rather than rejected.
func (p Period) Normalize() Period {
	return Period{Month: normalizeMonth(p.Month), Year: normalizeYear(p.Year)}
}

func normalizeMonth(m string) string {
	m = strings.TrimSpace(m)
	if m == "" || strings.EqualFold(m, All) {
		return All
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > 12 {
		return All
	}
	return twoDigit(n)
}

func normalizeYear(y string) string {
	y = strings.TrimSpace(y)
	if y == "" || strings.EqualFold(y, All) {
		return All
	}
	n, err := strconv.Atoi(y)
	if err != nil || n < 1 || n > 9999 {
		return All
	}
	return strconv.Itoa(n)
}

func twoDigit(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// Contains reports whether a delivery date falls inside the period.
// Undated rows only pass when both month and year are "ALL".
func (p Period) Contains(d *time.Time) bool {
	p = p.Normalize()
	if p.Month == All && p.Year == All {
		return true
	}
	if undated(d) {
		return false
	}
	if p.Month != All && twoDigit(int(d.Month())) != p.Month {
		return false
	}
	if p.Year != All && strconv.Itoa(d.Year()) != p.Year {
		return false
	}
	return true
}

// Filter keeps the transactions dated inside the period. The input slice is not modified.
func Filter(txs []Transaction, p Period) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if p.Contains(tx.DeliveryDate) {
			out = append(out, tx)
		}
	}
	return out
}

// undated treats a zero time the same as a missing date.
func undated(d *time.Time) bool {
	return d == nil || d.IsZero()
}

// DateKey truncates a delivery date to the day, or returns "no-date".
func DateKey(d *time.Time) string {
	if undated(d) {
		return NoDateKey
	}
	return d.Format(dateKeyLayout)
}

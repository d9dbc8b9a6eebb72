package circulate

import "time"

// Assessment is the computed overdue view of a loan at some instant.
type Assessment struct {
	DueAt       time.Time
	OverdueDays int
	Fine        int
}

// Assess computes the overdue state of a loan. It is pure: no clock, no
// store access, no mutation of the loan.
//
// A zero DueAt (legacy records created before due dates were stored) is
// back-filled as BorrowedAt + the configured borrow period. The result is
// returned, never persisted, so the back-fill happens on every read.
//
// Overdue days are counted in started 24h periods past the due instant:
// one second late is one day, 24h+1s late is two.
func Assess(l Loan, s Settings, now time.Time) Assessment {
	due := l.DueAt
	if due.IsZero() {
		due = l.BorrowedAt.AddDate(0, 0, s.BorrowPeriodDays)
	}

	a := Assessment{DueAt: due}
	if !now.After(due) {
		return a
	}

	const day = 24 * time.Hour
	late := now.Sub(due)
	days := int(late / day)
	if late%day != 0 {
		days++
	}
	a.OverdueDays = days
	a.Fine = days * s.FinePerDay
	return a
}

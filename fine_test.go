package circulate

import (
	"testing"
	"time"
)

func TestAssess(t *testing.T) {
	borrowed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	due := borrowed.AddDate(0, 0, 14)
	cfg := Settings{BorrowPeriodDays: 14, FinePerDay: 10}
	loan := Loan{BorrowedAt: borrowed, DueAt: due, Status: LoanActive}

	cases := []struct {
		name     string
		now      time.Time
		wantDays int
		wantFine int
	}{
		{"before due", due.Add(-time.Hour), 0, 0},
		{"exactly due", due, 0, 0},
		{"one second late", due.Add(time.Second), 1, 10},
		{"just under a day late", due.Add(24*time.Hour - time.Second), 1, 10},
		{"exactly one day late", due.Add(24 * time.Hour), 1, 10},
		{"a second past one day", due.Add(24*time.Hour + time.Second), 2, 20},
		{"two days late", due.Add(48 * time.Hour), 2, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Assess(loan, cfg, tc.now)
			if a.OverdueDays != tc.wantDays {
				t.Fatalf("OverdueDays = %d, want %d", a.OverdueDays, tc.wantDays)
			}
			if a.Fine != tc.wantFine {
				t.Fatalf("Fine = %d, want %d", a.Fine, tc.wantFine)
			}
			if !a.DueAt.Equal(due) {
				t.Fatalf("DueAt = %v, want %v", a.DueAt, due)
			}
		})
	}
}

func TestAssessBackfillsMissingDueDate(t *testing.T) {
	borrowed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := Settings{BorrowPeriodDays: 7, FinePerDay: 5}
	loan := Loan{BorrowedAt: borrowed, Status: LoanActive} // no stored due date

	wantDue := borrowed.AddDate(0, 0, 7)
	a := Assess(loan, cfg, wantDue.Add(time.Hour))
	if !a.DueAt.Equal(wantDue) {
		t.Fatalf("DueAt = %v, want %v", a.DueAt, wantDue)
	}
	if a.OverdueDays != 1 || a.Fine != 5 {
		t.Fatalf("overdue = %d/%d, want 1/5", a.OverdueDays, a.Fine)
	}
}

func TestAssessZeroFineRate(t *testing.T) {
	borrowed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	due := borrowed.AddDate(0, 0, 14)
	loan := Loan{BorrowedAt: borrowed, DueAt: due}

	a := Assess(loan, Settings{BorrowPeriodDays: 14, FinePerDay: 0}, due.Add(72*time.Hour))
	if a.OverdueDays != 3 {
		t.Fatalf("OverdueDays = %d, want 3", a.OverdueDays)
	}
	if a.Fine != 0 {
		t.Fatalf("Fine = %d, want 0", a.Fine)
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(0); got != StatusBorrowed {
		t.Fatalf("StatusFor(0) = %q", got)
	}
	if got := StatusFor(1); got != StatusAvailable {
		t.Fatalf("StatusFor(1) = %q", got)
	}
	if got := StatusFor(-1); got != StatusBorrowed {
		t.Fatalf("StatusFor(-1) = %q", got)
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/openshelf/circulate"
)

func TestInsertRejectsDuplicateISBN(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Insert(ctx, circulate.Book{Title: "Dune", ISBN: "isbn-1", Copies: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := s.Insert(ctx, circulate.Book{Title: "Dune again", ISBN: "isbn-1", Copies: 1})
	if !circulate.IsKind(err, circulate.KindConflict) {
		t.Fatalf("duplicate isbn error = %v, want conflict", err)
	}

	// deleting frees the isbn for reuse
	books, _ := s.Search(ctx, "")
	if err := s.Delete(ctx, books[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Insert(ctx, circulate.Book{Title: "Dune", ISBN: "isbn-1", Copies: 1}); err != nil {
		t.Fatalf("Insert after delete: %v", err)
	}
}

func TestDecrementIfAvailable(t *testing.T) {
	s := New()
	ctx := context.Background()

	b, err := s.Insert(ctx, circulate.Book{
		Title: "Dune", ISBN: "isbn-1", Copies: 1, Status: circulate.StatusAvailable,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.DecrementIfAvailable(ctx, b.ID)
	if err != nil {
		t.Fatalf("DecrementIfAvailable: %v", err)
	}
	if got.Copies != 0 || got.Status != circulate.StatusBorrowed {
		t.Fatalf("after decrement: copies=%d status=%q", got.Copies, got.Status)
	}

	_, err = s.DecrementIfAvailable(ctx, b.ID)
	if !circulate.IsKind(err, circulate.KindUnavailable) {
		t.Fatalf("decrement at zero = %v, want unavailable", err)
	}

	_, err = s.DecrementIfAvailable(ctx, "missing")
	if !circulate.IsKind(err, circulate.KindNotFound) {
		t.Fatalf("decrement of missing book = %v, want not found", err)
	}

	got, err = s.Restock(ctx, b.ID)
	if err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if got.Copies != 1 || got.Status != circulate.StatusAvailable {
		t.Fatalf("after restock: copies=%d status=%q", got.Copies, got.Status)
	}
}

func TestSearchMatchesTitleAndAuthor(t *testing.T) {
	s := New()
	ctx := context.Background()

	seed := []circulate.Book{
		{Title: "Dune", Author: "Frank Herbert", ISBN: "a", Copies: 1},
		{Title: "Hyperion", Author: "Dan Simmons", ISBN: "b", Copies: 1},
		{Title: "Dune Messiah", Author: "Frank Herbert", ISBN: "c", Copies: 1},
	}
	for _, b := range seed {
		if _, err := s.Insert(ctx, b); err != nil {
			t.Fatalf("Insert(%q): %v", b.Title, err)
		}
	}

	got, err := s.Search(ctx, "dune")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Dune" || got[1].Title != "Dune Messiah" {
		t.Fatalf("title search = %+v", got)
	}

	got, err = s.Search(ctx, "simmons")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Hyperion" {
		t.Fatalf("author search = %+v", got)
	}

	got, err = s.Search(ctx, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("empty query returned %d books, want 3", len(got))
	}
}

func TestCreateActiveRejectsDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	l, err := s.CreateActive(ctx, circulate.Loan{BorrowerID: "r1", BookID: "b1", BorrowedAt: now})
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}
	if l.ID == "" || l.Status != circulate.LoanActive {
		t.Fatalf("created loan = %+v", l)
	}

	_, err = s.CreateActive(ctx, circulate.Loan{BorrowerID: "r1", BookID: "b1", BorrowedAt: now})
	if !circulate.IsKind(err, circulate.KindConflict) {
		t.Fatalf("duplicate active loan = %v, want conflict", err)
	}

	// a different borrower may hold another copy of the same book
	if _, err := s.CreateActive(ctx, circulate.Loan{BorrowerID: "r2", BookID: "b1", BorrowedAt: now}); err != nil {
		t.Fatalf("CreateActive (other borrower): %v", err)
	}

	// closing the loan frees the pair for a fresh borrow
	if _, err := s.Close(ctx, l.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.CreateActive(ctx, circulate.Loan{BorrowerID: "r1", BookID: "b1", BorrowedAt: now}); err != nil {
		t.Fatalf("CreateActive after close: %v", err)
	}
}

func TestCloseOnlyActiveLoans(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	l, err := s.CreateActive(ctx, circulate.Loan{BorrowerID: "r1", BookID: "b1", BorrowedAt: now})
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}

	closed, err := s.Close(ctx, l.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != circulate.LoanReturned || closed.ReturnedAt.IsZero() {
		t.Fatalf("closed loan = %+v", closed)
	}

	_, err = s.Close(ctx, l.ID, now.Add(2*time.Hour))
	if !circulate.IsKind(err, circulate.KindNotFound) {
		t.Fatalf("second close = %v, want not found", err)
	}
}

func TestListActiveOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := s.CreateActive(ctx, circulate.Loan{
			BorrowerID: "r1",
			BookID:     []string{"b1", "b2", "b3"}[i],
			BorrowedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateActive: %v", err)
		}
	}

	got, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListActive returned %d loans, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].BorrowedAt.After(got[i-1].BorrowedAt) {
			t.Fatalf("loans not newest-first: %v before %v", got[i-1].BorrowedAt, got[i].BorrowedAt)
		}
	}

	other, err := s.ListActiveFor(ctx, "r2")
	if err != nil {
		t.Fatalf("ListActiveFor: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("foreign borrower sees %d loans", len(other))
	}
}

func TestSettingsLoadCreatesDefaults(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	cfg, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BorrowPeriodDays != circulate.DefaultBorrowPeriodDays ||
		cfg.FinePerDay != circulate.DefaultFinePerDay {
		t.Fatalf("defaults = %+v", cfg)
	}
	if !cfg.UpdatedAt.Equal(fixed) {
		t.Fatalf("UpdatedAt = %v, want %v", cfg.UpdatedAt, fixed)
	}

	saved, err := s.Save(ctx, 7, 5)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.BorrowPeriodDays != 7 || saved.FinePerDay != 5 {
		t.Fatalf("saved = %+v", saved)
	}

	again, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}
	if again != saved {
		t.Fatalf("Load after Save = %+v, want %+v", again, saved)
	}
}

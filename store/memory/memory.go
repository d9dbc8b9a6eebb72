// Package memory backs the catalog, loan, and settings stores with
// in-process maps guarded by one mutex. It exists for tests and for
// single-process deployments where MongoDB is overkill; the lock gives it
// the same atomicity guarantees the mongo backend gets from conditional
// updates and its partial unique index.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/circulate"
)

// Stores bundles the three stores sharing one mutex, so a catalog update
// and a loan check never interleave.
type Stores struct {
	mu       sync.Mutex
	books    map[string]circulate.Book
	byISBN   map[string]string // isbn -> book id
	loans    map[string]circulate.Loan
	settings *circulate.Settings
	now      func() time.Time
}

// Option tweaks store construction.
type Option func(*Stores)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Stores) { s.now = now }
}

func New(opts ...Option) *Stores {
	s := &Stores{
		books:  make(map[string]circulate.Book),
		byISBN: make(map[string]string),
		loans:  make(map[string]circulate.Loan),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// The three store interfaces are implemented on *Stores directly; pass the
// same value as Catalog, Loans, and Settings.
var (
	_ circulate.CatalogStore  = (*Stores)(nil)
	_ circulate.LoanStore     = (*Stores)(nil)
	_ circulate.SettingsStore = (*Stores)(nil)
)

// ==============================
// CatalogStore
// ==============================

func (s *Stores) Insert(_ context.Context, b circulate.Book) (circulate.Book, error) {
	const op = "memory.catalog.insert"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byISBN[b.ISBN]; taken {
		return circulate.Book{}, circulate.E(circulate.KindConflict, op, "isbn already in catalog")
	}
	b.ID = uuid.NewString()
	s.books[b.ID] = b
	s.byISBN[b.ISBN] = b.ID
	return b, nil
}

func (s *Stores) FindByID(_ context.Context, id string) (circulate.Book, error) {
	const op = "memory.catalog.find"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return circulate.Book{}, circulate.E(circulate.KindNotFound, op, "book not found")
	}
	return b, nil
}

func (s *Stores) Search(_ context.Context, query string) ([]circulate.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []circulate.Book
	for _, b := range s.books {
		if q == "" ||
			strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Stores) DecrementIfAvailable(_ context.Context, id string) (circulate.Book, error) {
	const op = "memory.catalog.decrement"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return circulate.Book{}, circulate.E(circulate.KindNotFound, op, "book not found")
	}
	if b.Copies <= 0 {
		return circulate.Book{}, circulate.E(circulate.KindUnavailable, op, "no copies available")
	}
	b.Copies--
	b.Status = circulate.StatusFor(b.Copies)
	s.books[id] = b
	return b, nil
}

func (s *Stores) Restock(_ context.Context, id string) (circulate.Book, error) {
	const op = "memory.catalog.restock"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return circulate.Book{}, circulate.E(circulate.KindNotFound, op, "book not found")
	}
	b.Copies++
	b.Status = circulate.StatusFor(b.Copies)
	s.books[id] = b
	return b, nil
}

func (s *Stores) Delete(_ context.Context, id string) error {
	const op = "memory.catalog.delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return circulate.E(circulate.KindNotFound, op, "book not found")
	}
	delete(s.books, id)
	delete(s.byISBN, b.ISBN)
	return nil
}

// ==============================
// LoanStore
// ==============================

func (s *Stores) CreateActive(_ context.Context, l circulate.Loan) (circulate.Loan, error) {
	const op = "memory.loans.create"

	s.mu.Lock()
	defer s.mu.Unlock()

	// duplicate-active check under the same lock as the insert; this is
	// the map equivalent of mongo's partial unique index
	for _, existing := range s.loans {
		if existing.Status == circulate.LoanActive &&
			existing.BorrowerID == l.BorrowerID &&
			existing.BookID == l.BookID {
			return circulate.Loan{}, circulate.E(circulate.KindConflict, op, "already borrowed")
		}
	}
	l.ID = uuid.NewString()
	l.Status = circulate.LoanActive
	s.loans[l.ID] = l
	return l, nil
}

func (s *Stores) FindActive(_ context.Context, borrowerID, bookID string) (circulate.Loan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.Status == circulate.LoanActive && l.BorrowerID == borrowerID && l.BookID == bookID {
			return l, true, nil
		}
	}
	return circulate.Loan{}, false, nil
}

func (s *Stores) HasActiveForBook(_ context.Context, bookID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.loans {
		if l.Status == circulate.LoanActive && l.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Stores) Close(_ context.Context, loanID string, returnedAt time.Time) (circulate.Loan, error) {
	const op = "memory.loans.close"

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loans[loanID]
	if !ok || l.Status != circulate.LoanActive {
		return circulate.Loan{}, circulate.E(circulate.KindNotFound, op, "no active loan")
	}
	l.Status = circulate.LoanReturned
	l.ReturnedAt = returnedAt
	s.loans[loanID] = l
	return l, nil
}

func (s *Stores) ListActive(_ context.Context) ([]circulate.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActiveLocked(func(circulate.Loan) bool { return true }), nil
}

func (s *Stores) ListActiveFor(_ context.Context, borrowerID string) ([]circulate.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActiveLocked(func(l circulate.Loan) bool { return l.BorrowerID == borrowerID }), nil
}

func (s *Stores) listActiveLocked(keep func(circulate.Loan) bool) []circulate.Loan {
	var out []circulate.Loan
	for _, l := range s.loans {
		if l.Status == circulate.LoanActive && keep(l) {
			out = append(out, l)
		}
	}
	// newest borrow first; id as tiebreaker for a stable order
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowedAt.Equal(out[j].BorrowedAt) {
			return out[i].BorrowedAt.After(out[j].BorrowedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ==============================
// SettingsStore
// ==============================

func (s *Stores) Load(context.Context) (circulate.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = &circulate.Settings{
			BorrowPeriodDays: circulate.DefaultBorrowPeriodDays,
			FinePerDay:       circulate.DefaultFinePerDay,
			UpdatedAt:        s.now().UTC(),
		}
	}
	return *s.settings, nil
}

func (s *Stores) Save(_ context.Context, borrowPeriodDays, finePerDay int) (circulate.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = &circulate.Settings{
		BorrowPeriodDays: borrowPeriodDays,
		FinePerDay:       finePerDay,
		UpdatedAt:        s.now().UTC(),
	}
	return *s.settings, nil
}

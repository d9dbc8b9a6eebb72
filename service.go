package circulate

import (
	"context"
	"fmt"
	"strings"
	"time"

	c "github.com/openshelf/circulate/codec"
)

const defaultCacheTTL = 60 * time.Second

type service struct {
	catalog  CatalogStore
	loans    LoanStore
	settings SettingsStore
	cache    *snapshotCache
	log      Logger
	now      func() time.Time
}

var _ Library = (*service)(nil)

func newService(opts Options) (*service, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("circulate: catalog store is required")
	}
	if opts.Loans == nil {
		return nil, fmt.Errorf("circulate: loan store is required")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("circulate: settings store is required")
	}

	s := &service{
		catalog:  opts.Catalog,
		loans:    opts.Loans,
		settings: opts.Settings,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.now = opts.Clock
	if s.now == nil {
		s.now = time.Now
	}

	if opts.Cache != nil {
		cdc := opts.Codec
		if cdc == nil {
			cdc = c.JSON[[]Book]{}
		}
		s.cache = &snapshotCache{
			provider: opts.Cache,
			codec:    cdc,
			ttl:      coalesce[time.Duration](opts.CacheTTL, defaultCacheTTL),
			log:      s.log,
		}
	}

	return s, nil
}

// ==============================
// Catalog
// ==============================

func (s *service) SearchCatalog(ctx context.Context, query string) (SearchResult, error) {
	q := normalizeQuery(query)
	key := searchKey(q)

	if books, ok := s.cache.lookup(ctx, key); ok {
		return SearchResult{Provenance: FromCache, Books: books}, nil
	}

	books, err := s.catalog.Search(ctx, q)
	if err != nil {
		return SearchResult{}, err
	}

	s.cache.store(ctx, key, books)
	return SearchResult{Provenance: FromStore, Books: books}, nil
}

func (s *service) AddBook(ctx context.Context, id Identity, in BookInput) (Book, error) {
	const op = "catalog.add"
	if err := requireAdmin(id, op); err != nil {
		return Book{}, err
	}

	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	isbn := strings.TrimSpace(in.ISBN)
	if title == "" || author == "" || isbn == "" {
		return Book{}, E(KindValidation, op, "title, author and isbn are required")
	}
	if in.Copies < 0 {
		return Book{}, E(KindValidation, op, "copies must not be negative")
	}
	copies := in.Copies
	if copies == 0 {
		copies = 1
	}

	created, err := s.catalog.Insert(ctx, Book{
		Title:  title,
		Author: author,
		ISBN:   isbn,
		Copies: copies,
		Status: StatusFor(copies),
	})
	if err != nil {
		return Book{}, err
	}

	// A new book could match any previously cached query.
	s.cache.invalidateCatalog(ctx)
	return created, nil
}

func (s *service) DeleteBook(ctx context.Context, id Identity, bookID string) error {
	const op = "catalog.delete"
	if err := requireAdmin(id, op); err != nil {
		return err
	}
	if strings.TrimSpace(bookID) == "" {
		return E(KindValidation, op, "book id is required")
	}

	busy, err := s.loans.HasActiveForBook(ctx, bookID)
	if err != nil {
		return err
	}
	if busy {
		return E(KindConflict, op, "book is currently borrowed")
	}

	if err := s.catalog.Delete(ctx, bookID); err != nil {
		return err
	}

	s.cache.invalidateCatalog(ctx)
	return nil
}

// ==============================
// Borrow / Return
// ==============================

func (s *service) Borrow(ctx context.Context, id Identity, bookID string) (Book, error) {
	const op = "borrow"
	if id.Anonymous() {
		return Book{}, E(KindUnauthorized, op, "sign-in required")
	}

	// Fast path for the duplicate-click case. Two racing borrows can both
	// pass this check; the real guard is the uniqueness rule CreateActive
	// enforces in the store.
	if _, exists, err := s.loans.FindActive(ctx, id.BorrowerID, bookID); err != nil {
		return Book{}, err
	} else if exists {
		return Book{}, E(KindConflict, op, "already borrowed")
	}

	// The one atomic step: decrement-if-positive with status rederived in
	// the same update. Everything after this must compensate on failure.
	book, err := s.catalog.DecrementIfAvailable(ctx, bookID)
	if err != nil {
		return Book{}, err
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.restock(ctx, op, bookID)
		return Book{}, err
	}

	now := s.now()
	if _, err := s.loans.CreateActive(ctx, Loan{
		BorrowerID: id.BorrowerID,
		BookID:     bookID,
		BorrowedAt: now,
		DueAt:      now.AddDate(0, 0, cfg.BorrowPeriodDays),
		Status:     LoanActive,
	}); err != nil {
		s.restock(ctx, op, bookID)
		return Book{}, err
	}

	s.cache.invalidateCatalog(ctx)
	return book, nil
}

func (s *service) Return(ctx context.Context, id Identity, bookID string) (Book, error) {
	const op = "return"
	if id.Anonymous() {
		return Book{}, E(KindUnauthorized, op, "sign-in required")
	}

	loan, ok, err := s.loans.FindActive(ctx, id.BorrowerID, bookID)
	if err != nil {
		return Book{}, err
	}
	if !ok {
		return Book{}, E(KindNotFound, op, "no active borrow record")
	}

	if _, err := s.loans.Close(ctx, loan.ID, s.now()); err != nil {
		return Book{}, err
	}

	// Returning a copy always makes the book available.
	book, err := s.catalog.Restock(ctx, bookID)
	if err != nil {
		return Book{}, err
	}

	s.cache.invalidateCatalog(ctx)
	return book, nil
}

// restock undoes a copy decrement when a later borrow step fails. Best
// effort: if the compensation itself fails the book stays one copy short,
// which is logged loudly instead of silently accepted.
func (s *service) restock(ctx context.Context, op, bookID string) {
	if _, err := s.catalog.Restock(ctx, bookID); err != nil {
		s.log.Error("rollback failed, book left one copy short",
			Fields{"op": op, "book": bookID, "err": err})
	}
}

// ==============================
// Loans & fines
// ==============================

func (s *service) ListActiveLoans(ctx context.Context, id Identity) ([]LoanView, error) {
	const op = "loans.list"
	if err := requireAdmin(id, op); err != nil {
		return nil, err
	}

	loans, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.assessAll(ctx, loans)
}

func (s *service) BorrowerLoans(ctx context.Context, id Identity) (BorrowerLoans, error) {
	const op = "loans.mine"
	if id.Anonymous() {
		return BorrowerLoans{}, E(KindUnauthorized, op, "sign-in required")
	}

	loans, err := s.loans.ListActiveFor(ctx, id.BorrowerID)
	if err != nil {
		return BorrowerLoans{}, err
	}

	views, err := s.assessAll(ctx, loans)
	if err != nil {
		return BorrowerLoans{}, err
	}

	out := BorrowerLoans{Loans: views, BookIDs: make([]string, 0, len(loans))}
	for _, l := range loans {
		out.BookIDs = append(out.BookIDs, l.BookID)
	}
	return out, nil
}

// assessAll attaches the computed overdue state to each loan, reading the
// settings once per call (no process-wide settings cache).
func (s *service) assessAll(ctx context.Context, loans []Loan) ([]LoanView, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		a := Assess(l, cfg, now)
		l.DueAt = a.DueAt
		views = append(views, LoanView{Loan: l, OverdueDays: a.OverdueDays, Fine: a.Fine})
	}
	return views, nil
}

// ==============================
// Settings
// ==============================

func (s *service) Settings(ctx context.Context) (Settings, error) {
	return s.settings.Load(ctx)
}

func (s *service) UpdateSettings(ctx context.Context, id Identity, borrowPeriodDays, finePerDay int) (Settings, error) {
	const op = "settings.update"
	if err := requireAdmin(id, op); err != nil {
		return Settings{}, err
	}
	if borrowPeriodDays <= 0 {
		return Settings{}, E(KindValidation, op, "borrow period must be positive")
	}
	if finePerDay < 0 {
		return Settings{}, E(KindValidation, op, "fine per day must not be negative")
	}
	return s.settings.Save(ctx, borrowPeriodDays, finePerDay)
}

func requireAdmin(id Identity, op string) error {
	if id.Anonymous() {
		return E(KindUnauthorized, op, "sign-in required")
	}
	if !id.Admin {
		return E(KindForbidden, op, "admin capability required")
	}
	return nil
}

package circulate

import (
	"context"
	"time"
)

// CatalogStore is the authoritative book storage. Implementations must
// return errors from this package's taxonomy: KindConflict for an isbn
// collision, KindNotFound for missing records, KindUnavailable when the
// conditional decrement finds no copies, KindUpstream for transport
// failures.
type CatalogStore interface {
	// Insert stores a new book. The isbn is unique across the catalog.
	Insert(ctx context.Context, b Book) (Book, error)

	// FindByID returns the book with the given id.
	FindByID(ctx context.Context, id string) (Book, error)

	// Search returns books whose title or author contains the query
	// (case-insensitive substring). An empty query lists the catalog.
	Search(ctx context.Context, query string) ([]Book, error)

	// DecrementIfAvailable decrements Copies by one and rederives Status,
	// both inside ONE atomic update that matches only when Copies > 0.
	// This single conditional update is the sole guard against concurrent
	// over-borrowing of the last copy; it must not be implemented as a
	// read followed by a write.
	DecrementIfAvailable(ctx context.Context, id string) (Book, error)

	// Restock increments Copies by one and sets Status to available
	// unconditionally, as one atomic update.
	Restock(ctx context.Context, id string) (Book, error)

	// Delete removes the book record.
	Delete(ctx context.Context, id string) error
}

// LoanStore is the authoritative loan storage.
type LoanStore interface {
	// CreateActive stores a new active loan. The store itself rejects a
	// second active loan for the same (borrower, book) pair with
	// KindConflict - this, not the coordinator's pre-check, is the real
	// duplicate guard.
	CreateActive(ctx context.Context, l Loan) (Loan, error)

	// FindActive returns the active loan for (borrower, book), if any.
	FindActive(ctx context.Context, borrowerID, bookID string) (Loan, bool, error)

	// HasActiveForBook reports whether any borrower holds the book.
	HasActiveForBook(ctx context.Context, bookID string) (bool, error)

	// Close marks a loan returned and stamps the return time.
	Close(ctx context.Context, loanID string, returnedAt time.Time) (Loan, error)

	// ListActive returns all active loans, newest borrow first.
	ListActive(ctx context.Context) ([]Loan, error)

	// ListActiveFor returns one borrower's active loans, newest first.
	ListActiveFor(ctx context.Context, borrowerID string) ([]Loan, error)
}

// SettingsStore holds the singleton configuration record.
type SettingsStore interface {
	// Load returns the settings, creating the record with defaults on
	// first access (read-or-create, atomic against concurrent callers).
	Load(ctx context.Context) (Settings, error)

	// Save overwrites both fields and the updated-at stamp, creating the
	// record with the supplied values if none exists.
	Save(ctx context.Context, borrowPeriodDays, finePerDay int) (Settings, error)
}

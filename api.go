package circulate

import (
	"context"
	"time"

	c "github.com/openshelf/circulate/codec"
	pr "github.com/openshelf/circulate/provider"
)

// Library is the transport-agnostic lending API. Identity comes from an
// external provider; pass the zero value for anonymous callers.
type Library interface {
	// SearchCatalog probes the cache first and falls back to the catalog
	// store on a miss, populating the cache before returning.
	SearchCatalog(ctx context.Context, query string) (SearchResult, error)

	// AddBook creates a catalog record (admin only).
	AddBook(ctx context.Context, id Identity, in BookInput) (Book, error)

	// DeleteBook removes a record with no active loans (admin only).
	DeleteBook(ctx context.Context, id Identity, bookID string) error

	// Borrow atomically takes one copy and opens a loan.
	Borrow(ctx context.Context, id Identity, bookID string) (Book, error)

	// Return closes the caller's active loan and restocks the copy.
	Return(ctx context.Context, id Identity, bookID string) (Book, error)

	// ListActiveLoans returns every active loan with computed fines
	// (admin only).
	ListActiveLoans(ctx context.Context, id Identity) ([]LoanView, error)

	// BorrowerLoans returns the caller's own active loans with fines.
	BorrowerLoans(ctx context.Context, id Identity) (BorrowerLoans, error)

	// Settings returns the singleton configuration, creating defaults on
	// first access.
	Settings(ctx context.Context) (Settings, error)

	// UpdateSettings overwrites the configuration (admin only).
	UpdateSettings(ctx context.Context, id Identity, borrowPeriodDays, finePerDay int) (Settings, error)
}

// Options wires the external collaborators into the coordinator.
// Only the three stores are required; others have sensible defaults.
type Options struct {
	// Required
	Catalog  CatalogStore
	Loans    LoanStore
	Settings SettingsStore

	Cache    pr.Provider        // nil => caching disabled, all reads hit the store
	Codec    c.Codec[[]Book]    // snapshot codec; nil => codec.JSON
	Logger   Logger             // nil => NopLogger
	CacheTTL time.Duration      // snapshot lifetime; 0 => 60s
	Clock    func() time.Time   // nil => time.Now; injected for tests
}

func New(opts Options) (Library, error) {
	return newService(opts)
}

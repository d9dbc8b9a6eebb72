package circulate

import "time"

// BookStatus is the denormalized availability flag kept alongside Copies.
type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusBorrowed  BookStatus = "borrowed"
)

// StatusFor derives the status from a copy count. It is the only way a
// status value is produced; stores recompute it inside the same update
// that changes Copies, so status and counter can never drift apart.
func StatusFor(copies int) BookStatus {
	if copies > 0 {
		return StatusAvailable
	}
	return StatusBorrowed
}

// Book is one catalog record. Copies counts lendable units of the title;
// Status always equals StatusFor(Copies).
type Book struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Author string     `json:"author"`
	ISBN   string     `json:"isbn"`
	Copies int        `json:"copies"`
	Status BookStatus `json:"status"`
}

// BookInput is the admin payload for adding a book to the catalog.
// A zero Copies value defaults to 1.
type BookInput struct {
	Title  string
	Author string
	ISBN   string
	Copies int
}

// LoanStatus is the lifecycle state of a loan record.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Loan records one borrower holding one copy of one book. DueAt is fixed
// at creation (BorrowedAt + configured borrow period) and never recomputed,
// even if settings change later. A zero DueAt marks a legacy record; reads
// back-fill it via Assess without persisting the result.
type Loan struct {
	ID         string     `json:"id"`
	BorrowerID string     `json:"borrowerId"`
	BookID     string     `json:"bookId"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	DueAt      time.Time  `json:"dueAt"`
	ReturnedAt time.Time  `json:"returnedAt,omitempty"`
	Status     LoanStatus `json:"status"`
}

// Settings is the singleton lending configuration.
type Settings struct {
	BorrowPeriodDays int       `json:"borrowPeriod"`
	FinePerDay       int       `json:"finePerDay"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Defaults used when no settings record exists yet.
const (
	DefaultBorrowPeriodDays = 14
	DefaultFinePerDay       = 10
)

// Identity is what the (external) identity provider hands us per request:
// a stable borrower identifier and an admin flag. The zero value is an
// anonymous caller.
type Identity struct {
	BorrowerID string
	Admin      bool
}

// Anonymous reports whether no borrower identity is present.
func (id Identity) Anonymous() bool { return id.BorrowerID == "" }

// Provenance tags where a search result came from.
type Provenance string

const (
	FromCache Provenance = "cache"
	FromStore Provenance = "store"
)

// SearchResult is a catalog listing plus its provenance tag.
type SearchResult struct {
	Provenance Provenance `json:"provenance"`
	Books      []Book     `json:"books"`
}

// LoanView is a loan with its computed overdue state. Loan.DueAt is
// back-filled for legacy records; OverdueDays and Fine are derived, never
// stored.
type LoanView struct {
	Loan        Loan `json:"loan"`
	OverdueDays int  `json:"overdueDays"`
	Fine        int  `json:"fine"`
}

// BorrowerLoans is one borrower's active loans: the flat book-id list for
// quick membership checks plus the full views for display.
type BorrowerLoans struct {
	BookIDs []string   `json:"borrowedBookIds"`
	Loans   []LoanView `json:"activeLoans"`
}

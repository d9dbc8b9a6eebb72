// Package mongo backs the catalog, loan, and settings stores with MongoDB.
//
// The conditional copy decrement and the active-loan uniqueness guarantee
// both live in the database: the decrement is a single FindOneAndUpdate
// whose filter matches only documents with copies remaining, and loans
// carry a partial unique index over (borrowerId, bookId) restricted to
// status "active". Callers never need to serialize writes themselves.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openshelf/circulate"
)

const (
	booksCollection    = "books"
	loansCollection    = "loans"
	settingsCollection = "settings"
)

// Stores bundles the three collection-backed stores sharing one database
// handle.
type Stores struct {
	Catalog  *Catalog
	Loans    *Loans
	Settings *Settings
}

func New(db *driver.Database) *Stores {
	return &Stores{
		Catalog:  &Catalog{col: db.Collection(booksCollection)},
		Loans:    &Loans{col: db.Collection(loansCollection)},
		Settings: &Settings{col: db.Collection(settingsCollection)},
	}
}

// EnsureIndexes creates the unique isbn index and the partial unique index
// that rejects a second active loan for the same (borrower, book) pair.
// Call once at startup; index creation is idempotent.
func (s *Stores) EnsureIndexes(ctx context.Context) error {
	_, err := s.Catalog.col.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: "isbn", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.Loans.col.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys: bson.D{{Key: "borrowerId", Value: 1}, {Key: "bookId", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "status", Value: string(circulate.LoanActive)}}),
	})
	return err
}

// ==============================
// Catalog
// ==============================

type Catalog struct {
	col *driver.Collection
}

var _ circulate.CatalogStore = (*Catalog)(nil)

type bookRecord struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Title  string             `bson:"title"`
	Author string             `bson:"author"`
	ISBN   string             `bson:"isbn"`
	Copies int                `bson:"copies"`
	Status string             `bson:"status"`
}

func (r bookRecord) toBook() circulate.Book {
	return circulate.Book{
		ID:     r.ID.Hex(),
		Title:  r.Title,
		Author: r.Author,
		ISBN:   r.ISBN,
		Copies: r.Copies,
		Status: circulate.BookStatus(r.Status),
	}
}

func (c *Catalog) Insert(ctx context.Context, b circulate.Book) (circulate.Book, error) {
	const op = "mongo.catalog.insert"

	rec := bookRecord{
		Title:  b.Title,
		Author: b.Author,
		ISBN:   b.ISBN,
		Copies: b.Copies,
		Status: string(b.Status),
	}
	res, err := c.col.InsertOne(ctx, rec)
	if err != nil {
		if driver.IsDuplicateKeyError(err) {
			return circulate.Book{}, circulate.E(circulate.KindConflict, op, "isbn already in catalog")
		}
		return circulate.Book{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	b.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return b, nil
}

func (c *Catalog) FindByID(ctx context.Context, id string) (circulate.Book, error) {
	const op = "mongo.catalog.find"

	oid, err := parseID(op, id)
	if err != nil {
		return circulate.Book{}, err
	}
	var rec bookRecord
	err = c.col.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&rec)
	if errors.Is(err, driver.ErrNoDocuments) {
		return circulate.Book{}, circulate.E(circulate.KindNotFound, op, "book not found")
	}
	if err != nil {
		return circulate.Book{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toBook(), nil
}

func (c *Catalog) Search(ctx context.Context, query string) ([]circulate.Book, error) {
	const op = "mongo.catalog.search"

	filter := bson.D{}
	if query != "" {
		re := primitive.Regex{Pattern: regexQuote(query), Options: "i"}
		filter = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "author", Value: re}},
		}}}
	}
	cur, err := c.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	defer cur.Close(ctx)

	var out []circulate.Book
	for cur.Next(ctx) {
		var rec bookRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, circulate.Wrap(circulate.KindUpstream, op, err)
		}
		out = append(out, rec.toBook())
	}
	if err := cur.Err(); err != nil {
		return nil, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return out, nil
}

// DecrementIfAvailable performs the decrement and the status rederivation
// in one FindOneAndUpdate. The filter matches only while copies > 0, and
// the pipeline recomputes status from the already-decremented counter, so
// two racing borrows of a last copy cannot both succeed and the stored
// status can never disagree with the stored count.
func (c *Catalog) DecrementIfAvailable(ctx context.Context, id string) (circulate.Book, error) {
	const op = "mongo.catalog.decrement"

	oid, err := parseID(op, id)
	if err != nil {
		return circulate.Book{}, err
	}

	update := driver.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "copies", Value: bson.D{{Key: "$add", Value: bson.A{"$copies", -1}}}},
		}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{"$copies", 0}}},
				string(circulate.StatusAvailable),
				string(circulate.StatusBorrowed),
			}}}},
		}}},
	}

	var rec bookRecord
	err = c.col.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "copies", Value: bson.D{{Key: "$gt", Value: 0}}}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, driver.ErrNoDocuments) {
		// no match: either the book is gone or it has no copies; one extra
		// read disambiguates the error kind
		if _, ferr := c.FindByID(ctx, id); ferr != nil {
			return circulate.Book{}, ferr
		}
		return circulate.Book{}, circulate.E(circulate.KindUnavailable, op, "no copies available")
	}
	if err != nil {
		return circulate.Book{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toBook(), nil
}

func (c *Catalog) Restock(ctx context.Context, id string) (circulate.Book, error) {
	const op = "mongo.catalog.restock"

	oid, err := parseID(op, id)
	if err != nil {
		return circulate.Book{}, err
	}
	var rec bookRecord
	err = c.col.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "copies", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "status", Value: string(circulate.StatusAvailable)}}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, driver.ErrNoDocuments) {
		return circulate.Book{}, circulate.E(circulate.KindNotFound, op, "book not found")
	}
	if err != nil {
		return circulate.Book{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toBook(), nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	const op = "mongo.catalog.delete"

	oid, err := parseID(op, id)
	if err != nil {
		return err
	}
	res, err := c.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return circulate.Wrap(circulate.KindUpstream, op, err)
	}
	if res.DeletedCount == 0 {
		return circulate.E(circulate.KindNotFound, op, "book not found")
	}
	return nil
}

// ==============================
// Loans
// ==============================

type Loans struct {
	col *driver.Collection
}

var _ circulate.LoanStore = (*Loans)(nil)

type loanRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BorrowerID string             `bson:"borrowerId"`
	BookID     string             `bson:"bookId"`
	BorrowedAt time.Time          `bson:"borrowDate"`
	DueAt      *time.Time         `bson:"dueDate,omitempty"`
	ReturnedAt *time.Time         `bson:"returnDate,omitempty"`
	Status     string             `bson:"status"`
}

func (r loanRecord) toLoan() circulate.Loan {
	l := circulate.Loan{
		ID:         r.ID.Hex(),
		BorrowerID: r.BorrowerID,
		BookID:     r.BookID,
		BorrowedAt: r.BorrowedAt,
		Status:     circulate.LoanStatus(r.Status),
	}
	if r.DueAt != nil {
		l.DueAt = *r.DueAt
	}
	if r.ReturnedAt != nil {
		l.ReturnedAt = *r.ReturnedAt
	}
	return l
}

func (s *Loans) CreateActive(ctx context.Context, l circulate.Loan) (circulate.Loan, error) {
	const op = "mongo.loans.create"

	rec := loanRecord{
		BorrowerID: l.BorrowerID,
		BookID:     l.BookID,
		BorrowedAt: l.BorrowedAt,
		Status:     string(circulate.LoanActive),
	}
	if !l.DueAt.IsZero() {
		due := l.DueAt
		rec.DueAt = &due
	}
	res, err := s.col.InsertOne(ctx, rec)
	if err != nil {
		if driver.IsDuplicateKeyError(err) {
			// the partial unique index fired: an active loan already exists
			return circulate.Loan{}, circulate.E(circulate.KindConflict, op, "already borrowed")
		}
		return circulate.Loan{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	l.ID = res.InsertedID.(primitive.ObjectID).Hex()
	l.Status = circulate.LoanActive
	return l, nil
}

func (s *Loans) FindActive(ctx context.Context, borrowerID, bookID string) (circulate.Loan, bool, error) {
	const op = "mongo.loans.findactive"

	var rec loanRecord
	err := s.col.FindOne(ctx, bson.D{
		{Key: "borrowerId", Value: borrowerID},
		{Key: "bookId", Value: bookID},
		{Key: "status", Value: string(circulate.LoanActive)},
	}).Decode(&rec)
	if errors.Is(err, driver.ErrNoDocuments) {
		return circulate.Loan{}, false, nil
	}
	if err != nil {
		return circulate.Loan{}, false, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toLoan(), true, nil
}

func (s *Loans) HasActiveForBook(ctx context.Context, bookID string) (bool, error) {
	const op = "mongo.loans.hasactive"

	n, err := s.col.CountDocuments(ctx, bson.D{
		{Key: "bookId", Value: bookID},
		{Key: "status", Value: string(circulate.LoanActive)},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return n > 0, nil
}

func (s *Loans) Close(ctx context.Context, loanID string, returnedAt time.Time) (circulate.Loan, error) {
	const op = "mongo.loans.close"

	oid, err := parseID(op, loanID)
	if err != nil {
		return circulate.Loan{}, err
	}
	var rec loanRecord
	err = s.col.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "status", Value: string(circulate.LoanActive)}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(circulate.LoanReturned)},
			{Key: "returnDate", Value: returnedAt},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, driver.ErrNoDocuments) {
		return circulate.Loan{}, circulate.E(circulate.KindNotFound, op, "no active loan")
	}
	if err != nil {
		return circulate.Loan{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toLoan(), nil
}

func (s *Loans) ListActive(ctx context.Context) ([]circulate.Loan, error) {
	return s.listActive(ctx, bson.D{{Key: "status", Value: string(circulate.LoanActive)}})
}

func (s *Loans) ListActiveFor(ctx context.Context, borrowerID string) ([]circulate.Loan, error) {
	return s.listActive(ctx, bson.D{
		{Key: "borrowerId", Value: borrowerID},
		{Key: "status", Value: string(circulate.LoanActive)},
	})
}

func (s *Loans) listActive(ctx context.Context, filter bson.D) ([]circulate.Loan, error) {
	const op = "mongo.loans.list"

	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "borrowDate", Value: -1}}))
	if err != nil {
		return nil, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	defer cur.Close(ctx)

	var out []circulate.Loan
	for cur.Next(ctx) {
		var rec loanRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, circulate.Wrap(circulate.KindUpstream, op, err)
		}
		out = append(out, rec.toLoan())
	}
	if err := cur.Err(); err != nil {
		return nil, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return out, nil
}

// ==============================
// Settings
// ==============================

type Settings struct {
	col *driver.Collection
}

var _ circulate.SettingsStore = (*Settings)(nil)

type settingsRecord struct {
	BorrowPeriodDays int       `bson:"borrowPeriod"`
	FinePerDay       int       `bson:"finePerDay"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

func (r settingsRecord) toSettings() circulate.Settings {
	return circulate.Settings{
		BorrowPeriodDays: r.BorrowPeriodDays,
		FinePerDay:       r.FinePerDay,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Load returns the singleton record, creating it with defaults on first
// access. The upsert makes the read-or-create atomic: two concurrent first
// reads get the same document.
func (s *Settings) Load(ctx context.Context) (circulate.Settings, error) {
	const op = "mongo.settings.load"

	var rec settingsRecord
	err := s.col.FindOneAndUpdate(ctx,
		bson.D{},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "borrowPeriod", Value: circulate.DefaultBorrowPeriodDays},
			{Key: "finePerDay", Value: circulate.DefaultFinePerDay},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&rec)
	if err != nil {
		return circulate.Settings{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toSettings(), nil
}

func (s *Settings) Save(ctx context.Context, borrowPeriodDays, finePerDay int) (circulate.Settings, error) {
	const op = "mongo.settings.save"

	now := time.Now().UTC()
	var rec settingsRecord
	err := s.col.FindOneAndUpdate(ctx,
		bson.D{},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "borrowPeriod", Value: borrowPeriodDays},
			{Key: "finePerDay", Value: finePerDay},
			{Key: "updatedAt", Value: now},
		}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&rec)
	if err != nil {
		return circulate.Settings{}, circulate.Wrap(circulate.KindUpstream, op, err)
	}
	return rec.toSettings(), nil
}

// ==============================
// helpers
// ==============================

// parseID maps a malformed object id to NotFound: from the caller's point
// of view a syntactically invalid id can never name an existing record.
func parseID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, circulate.E(circulate.KindNotFound, op, "invalid id")
	}
	return oid, nil
}

// regexQuote escapes regex metacharacters so a user query is always a
// literal substring match.
func regexQuote(s string) string {
	const meta = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(meta, s[i]) >= 0 {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

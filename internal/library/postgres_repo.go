package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookkin/internal/entity"
)

const uniqueViolation = "23505"

var dialect = goqu.Dialect("postgres")

// canonicalColumns is the select list shared by every canonical book read.
// Optional columns are coalesced so rows scan directly into entity fields.
var canonicalColumns = []any{
	goqu.C("id"),
	goqu.C("title"),
	goqu.L("COALESCE(subtitle, '')").As("subtitle"),
	goqu.L("COALESCE(authors, '{}')").As("authors"),
	goqu.L("COALESCE(isbn10, '')").As("isbn10"),
	goqu.L("COALESCE(isbn13, '')").As("isbn13"),
	goqu.L("COALESCE(description, '')").As("description"),
	goqu.L("COALESCE(cover_image_url, '')").As("cover_image_url"),
	goqu.L("COALESCE(first_sentence, '')").As("first_sentence"),
	goqu.L("COALESCE(page_count, 0)").As("page_count"),
	goqu.L("COALESCE(publisher, '')").As("publisher"),
	goqu.L("COALESCE(published_date, '')").As("published_date"),
	goqu.L("COALESCE(open_library_id, '')").As("open_library_id"),
	goqu.L("COALESCE(google_books_id, '')").As("google_books_id"),
	goqu.C("created_at"),
	goqu.C("updated_at"),
}

type CanonicalPostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewCanonicalPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *CanonicalPostgresRepo {
	return &CanonicalPostgresRepo{db: db, timeout: timeout}
}

func (r *CanonicalPostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *CanonicalPostgresRepo) FindByIdentifiers(ctx context.Context, q IdentifierQuery) (*entity.CanonicalBook, error) {
	if q.Empty() {
		return nil, nil
	}

	var preds []goqu.Expression
	if q.ISBN13 != "" {
		preds = append(preds, goqu.C("isbn13").Eq(q.ISBN13))
	}
	if q.ISBN10 != "" {
		preds = append(preds, goqu.C("isbn10").Eq(q.ISBN10))
	}
	if q.OpenLibraryID != "" {
		preds = append(preds, goqu.C("open_library_id").Eq(q.OpenLibraryID))
	}

	querySQL, args, err := dialect.
		From("canonical_books").
		Select(canonicalColumns...).
		Where(goqu.Or(preds...)).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build canonical query: %w", err)
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var b entity.CanonicalBook
	err = r.db.QueryRow(timeoutCtx, querySQL, args...).Scan(
		&b.ID, &b.Title, &b.Subtitle, &b.Authors, &b.ISBN10, &b.ISBN13,
		&b.Description, &b.CoverImageURL, &b.FirstSentence, &b.PageCount,
		&b.Publisher, &b.PublishedDate, &b.OpenLibraryID, &b.GoogleBooksID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find canonical book: %w", err)
	}
	return &b, nil
}

func (r *CanonicalPostgresRepo) Insert(ctx context.Context, book *entity.CanonicalBook) (*entity.CanonicalBook, error) {
	const insertSQL = `
		INSERT INTO canonical_books
			(title, subtitle, authors, isbn10, isbn13, description, cover_image_url,
			 first_sentence, page_count, publisher, published_date, open_library_id, google_books_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRow(timeoutCtx, insertSQL,
		book.Title,
		textOrNil(book.Subtitle),
		arrayOrNil(book.Authors),
		textOrNil(book.ISBN10),
		textOrNil(book.ISBN13),
		textOrNil(book.Description),
		textOrNil(book.CoverImageURL),
		textOrNil(book.FirstSentence),
		intOrNil(book.PageCount),
		textOrNil(book.Publisher),
		textOrNil(book.PublishedDate),
		textOrNil(book.OpenLibraryID),
		textOrNil(book.GoogleBooksID),
	).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert canonical book: %w", ErrDuplicateIdentifier)
		}
		return nil, fmt.Errorf("insert canonical book: %w", err)
	}
	return book, nil
}

type MembershipPostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewMembershipPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *MembershipPostgresRepo {
	return &MembershipPostgresRepo{db: db, timeout: timeout}
}

func (r *MembershipPostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MembershipPostgresRepo) FindMembership(ctx context.Context, ownerDID, canonicalBookID string) (*entity.LibraryBook, error) {
	const querySQL = `
		SELECT id, owner_did, canonical_book_id, status,
		       COALESCE(borrower_did, ''), COALESCE(categories, '{}'), COALESCE(color_tag, ''),
		       created_at, updated_at
		FROM user_library_books
		WHERE owner_did = $1 AND canonical_book_id = $2
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var lb entity.LibraryBook
	err := r.db.QueryRow(timeoutCtx, querySQL, ownerDID, canonicalBookID).Scan(
		&lb.ID, &lb.OwnerDID, &lb.CanonicalBookID, &lb.Status,
		&lb.BorrowerDID, &lb.Categories, &lb.ColorTag,
		&lb.CreatedAt, &lb.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &lb, nil
}

func (r *MembershipPostgresRepo) Insert(ctx context.Context, lb *entity.LibraryBook) (*entity.LibraryBook, error) {
	const insertSQL = `
		INSERT INTO user_library_books (owner_did, canonical_book_id, status, categories, color_tag)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRow(timeoutCtx, insertSQL,
		lb.OwnerDID,
		lb.CanonicalBookID,
		lb.Status,
		arrayOrNil(lb.Categories),
		textOrNil(lb.ColorTag),
	).Scan(&lb.ID, &lb.CreatedAt, &lb.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyInLibrary
		}
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	return lb, nil
}

const entrySelectSQL = `
	SELECT ub.id, ub.owner_did, ub.canonical_book_id, ub.status,
	       COALESCE(ub.borrower_did, ''), COALESCE(ub.categories, '{}'), COALESCE(ub.color_tag, ''),
	       ub.created_at, ub.updated_at,
	       b.id, b.title, COALESCE(b.subtitle, ''), COALESCE(b.authors, '{}'),
	       COALESCE(b.isbn10, ''), COALESCE(b.isbn13, ''), COALESCE(b.description, ''),
	       COALESCE(b.cover_image_url, ''), COALESCE(b.first_sentence, ''), COALESCE(b.page_count, 0),
	       COALESCE(b.publisher, ''), COALESCE(b.published_date, ''),
	       COALESCE(b.open_library_id, ''), COALESCE(b.google_books_id, ''),
	       b.created_at, b.updated_at
	FROM user_library_books ub
	JOIN canonical_books b ON b.id = ub.canonical_book_id
`

func scanEntry(row pgx.Row) (*entity.LibraryEntry, error) {
	var e entity.LibraryEntry
	err := row.Scan(
		&e.ID, &e.OwnerDID, &e.CanonicalBookID, &e.Status,
		&e.BorrowerDID, &e.Categories, &e.ColorTag,
		&e.CreatedAt, &e.UpdatedAt,
		&e.Book.ID, &e.Book.Title, &e.Book.Subtitle, &e.Book.Authors,
		&e.Book.ISBN10, &e.Book.ISBN13, &e.Book.Description,
		&e.Book.CoverImageURL, &e.Book.FirstSentence, &e.Book.PageCount,
		&e.Book.Publisher, &e.Book.PublishedDate,
		&e.Book.OpenLibraryID, &e.Book.GoogleBooksID,
		&e.Book.CreatedAt, &e.Book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *MembershipPostgresRepo) GetEntry(ctx context.Context, id string) (*entity.LibraryEntry, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	entry, err := scanEntry(r.db.QueryRow(timeoutCtx, entrySelectSQL+` WHERE ub.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get library entry: %w", err)
	}
	return entry, nil
}

func (r *MembershipPostgresRepo) ListByOwner(ctx context.Context, ownerDID string) ([]entity.LibraryEntry, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(timeoutCtx, entrySelectSQL+` WHERE ub.owner_did = $1 ORDER BY ub.created_at DESC`, ownerDID)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	defer rows.Close()

	var entries []entity.LibraryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list library: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DeleteOwned removes the entry only when both id and owner match; a miss on
// either is reported identically as ErrNotFound.
func (r *MembershipPostgresRepo) DeleteOwned(ctx context.Context, id, ownerDID string) error {
	const deleteSQL = `DELETE FROM user_library_books WHERE id = $1 AND owner_did = $2`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(timeoutCtx, deleteSQL, id, ownerDID)
	if err != nil {
		return fmt.Errorf("delete library entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func arrayOrNil(a []string) []string {
	if len(a) == 0 {
		return nil
	}
	return a
}

func intOrNil(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

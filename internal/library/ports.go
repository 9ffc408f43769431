package library

import (
	"context"
	"errors"

	"bookkin/internal/entity"
	"bookkin/internal/platform/openlibrary"
)

var (
	// ErrUnresolvable means no canonical book could be found or created for
	// the given input. The HTTP layer maps it to 404.
	ErrUnresolvable = errors.New("library: book metadata could not be found or created")

	// ErrAlreadyInLibrary means the user already holds this canonical book.
	ErrAlreadyInLibrary = errors.New("library: book already exists in your library")

	// ErrNotFound covers both a nonexistent entry and one owned by another
	// user; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("library: book not found in your library")

	// ErrDuplicateIdentifier is returned by CanonicalRepository.Insert when a
	// unique identifier constraint fires, signalling that a concurrent
	// resolution created the record first.
	ErrDuplicateIdentifier = errors.New("library: canonical identifier already exists")
)

// IdentifierQuery matches canonical books on any of its non-empty fields.
type IdentifierQuery struct {
	ISBN10        string
	ISBN13        string
	OpenLibraryID string
}

func (q IdentifierQuery) Empty() bool {
	return q.ISBN10 == "" && q.ISBN13 == "" && q.OpenLibraryID == ""
}

// CanonicalRepository stores deduplicated book records.
// FindByIdentifiers returns (nil, nil) when nothing matches.
type CanonicalRepository interface {
	FindByIdentifiers(ctx context.Context, q IdentifierQuery) (*entity.CanonicalBook, error)
	Insert(ctx context.Context, book *entity.CanonicalBook) (*entity.CanonicalBook, error)
}

// MembershipRepository stores user library entries.
// FindMembership returns (nil, nil) when the user does not hold the book.
type MembershipRepository interface {
	FindMembership(ctx context.Context, ownerDID, canonicalBookID string) (*entity.LibraryBook, error)
	Insert(ctx context.Context, lb *entity.LibraryBook) (*entity.LibraryBook, error)
	GetEntry(ctx context.Context, id string) (*entity.LibraryEntry, error)
	ListByOwner(ctx context.Context, ownerDID string) ([]entity.LibraryEntry, error)
	DeleteOwned(ctx context.Context, id, ownerDID string) error
}

// CatalogClient resolves one ISBN against the external bibliographic source.
type CatalogClient interface {
	FetchByISBN(ctx context.Context, isbn string) (*openlibrary.Edition, error)
}

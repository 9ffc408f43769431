// Package library implements the canonical book resolution routine and the
// per-user library membership service.
package library

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"bookkin/internal/entity"
	"bookkin/internal/isbn"
	"bookkin/internal/platform/openlibrary"
)

// placeholderTitle is never persisted; a merge that ends up with it fails.
const placeholderTitle = "Unknown Title"

// AddBookInput is the user-supplied book data from POST /api/books.
type AddBookInput struct {
	ISBN10        string
	ISBN13        string
	Title         string
	Authors       []string
	Description   string
	CoverImageURL string
}

type Service struct {
	canonical  CanonicalRepository
	membership MembershipRepository
	catalog    CatalogClient
	logger     *log.Logger
}

func NewService(canonical CanonicalRepository, membership MembershipRepository, catalog CatalogClient, logger *log.Logger) *Service {
	return &Service{
		canonical:  canonical,
		membership: membership,
		catalog:    catalog,
		logger:     logger,
	}
}

// Resolve returns an existing canonical book matching the input, or creates
// one from external data and/or user-supplied fields. All internal failures
// collapse to ErrUnresolvable; the cause is logged here.
func (s *Service) Resolve(ctx context.Context, in AddBookInput) (*entity.CanonicalBook, error) {
	providedISBN13 := isbn.Normalize(in.ISBN13)
	providedISBN10 := isbn.Normalize(in.ISBN10)

	searchISBN := providedISBN13
	if searchISBN == "" {
		searchISBN = providedISBN10
	}

	if searchISBN == "" && in.Title == "" {
		return nil, ErrUnresolvable
	}

	// An existing record always wins over re-fetching.
	if providedISBN10 != "" || providedISBN13 != "" {
		found, err := s.canonical.FindByIdentifiers(ctx, IdentifierQuery{
			ISBN10: providedISBN10,
			ISBN13: providedISBN13,
		})
		if err != nil {
			s.logger.Error("canonical lookup by provided ISBN failed", "err", err)
			return nil, ErrUnresolvable
		}
		if found != nil {
			s.logger.Info("found existing canonical book by provided ISBN", "id", found.ID)
			return found, nil
		}
	}

	if searchISBN != "" {
		edition, err := s.catalog.FetchByISBN(ctx, searchISBN)
		switch {
		case err == nil:
			return s.createFromExternal(ctx, in, providedISBN10, providedISBN13, edition)
		case errors.Is(err, openlibrary.ErrNotFound):
			s.logger.Warn("no external data for ISBN", "isbn", searchISBN)
		default:
			// Outage, not absence. Degrade to user data but keep the cause visible.
			s.logger.Warn("external catalog lookup failed", "isbn", searchISBN, "err", err)
		}

		if in.Title == "" {
			s.logger.Error("cannot create canonical book: no external match and no title provided")
			return nil, ErrUnresolvable
		}
		s.logger.Info("creating minimal canonical book from user input", "isbn", searchISBN)
		return s.insert(ctx, minimalBook(in, providedISBN10, providedISBN13))
	}

	// No identifier at all, but a title.
	s.logger.Info("creating minimal canonical book from title only", "title", in.Title)
	return s.insert(ctx, minimalBook(in, "", ""))
}

// createFromExternal merges external data with user input. User-supplied
// identifiers override external ones; external title/authors/cover/publisher/
// date override user-supplied values when present.
func (s *Service) createFromExternal(ctx context.Context, in AddBookInput, providedISBN10, providedISBN13 string, ed *openlibrary.Edition) (*entity.CanonicalBook, error) {
	title := ed.Title
	if title == "" {
		title = in.Title
	}
	if title == "" || title == placeholderTitle {
		s.logger.Error("refusing to save canonical book without a valid title")
		return nil, ErrUnresolvable
	}

	authors := ed.Authors
	if len(authors) == 0 {
		authors = in.Authors
	}

	finalISBN10 := providedISBN10
	if finalISBN10 == "" {
		finalISBN10 = ed.ISBN10
	}
	finalISBN13 := providedISBN13
	if finalISBN13 == "" {
		finalISBN13 = ed.ISBN13
	}

	cover := ed.CoverImageURL
	if cover == "" {
		cover = in.CoverImageURL
	}

	book := &entity.CanonicalBook{
		Title:         title,
		Subtitle:      ed.Subtitle,
		Authors:       authors,
		ISBN10:        finalISBN10,
		ISBN13:        finalISBN13,
		Description:   in.Description,
		CoverImageURL: cover,
		FirstSentence: ed.FirstSentence,
		PageCount:     ed.PageCount,
		Publisher:     strings.Join(ed.Publishers, ", "),
		PublishedDate: ed.PublishDate,
		OpenLibraryID: ed.OpenLibraryID,
		GoogleBooksID: ed.GoogleBooksID,
	}

	// The external response may carry identifiers the user did not supply;
	// re-check so a record created since the first lookup is reused.
	found, err := s.canonical.FindByIdentifiers(ctx, IdentifierQuery{
		ISBN10:        book.ISBN10,
		ISBN13:        book.ISBN13,
		OpenLibraryID: book.OpenLibraryID,
	})
	if err != nil {
		s.logger.Error("canonical re-check after external fetch failed", "err", err)
		return nil, ErrUnresolvable
	}
	if found != nil {
		s.logger.Info("found existing canonical book after external fetch", "id", found.ID)
		return found, nil
	}

	return s.insert(ctx, book)
}

func minimalBook(in AddBookInput, isbn10, isbn13 string) *entity.CanonicalBook {
	return &entity.CanonicalBook{
		Title:         in.Title,
		Authors:       in.Authors,
		ISBN10:        isbn10,
		ISBN13:        isbn13,
		Description:   in.Description,
		CoverImageURL: in.CoverImageURL,
	}
}

// insert persists a new canonical record. A unique-constraint violation means
// a concurrent resolution won the race; fetch and return its record instead.
func (s *Service) insert(ctx context.Context, book *entity.CanonicalBook) (*entity.CanonicalBook, error) {
	created, err := s.canonical.Insert(ctx, book)
	if err == nil {
		s.logger.Info("saved new canonical book", "id", created.ID, "title", created.Title)
		return created, nil
	}

	if errors.Is(err, ErrDuplicateIdentifier) {
		found, findErr := s.canonical.FindByIdentifiers(ctx, IdentifierQuery{
			ISBN10:        book.ISBN10,
			ISBN13:        book.ISBN13,
			OpenLibraryID: book.OpenLibraryID,
		})
		if findErr == nil && found != nil {
			s.logger.Info("canonical book created concurrently, using existing", "id", found.ID)
			return found, nil
		}
	}

	s.logger.Error("error saving canonical book", "title", book.Title, "err", err)
	return nil, ErrUnresolvable
}

// AddBook resolves the input to a canonical book and links it to the user's
// library. Returns ErrAlreadyInLibrary if the user already holds it.
func (s *Service) AddBook(ctx context.Context, ownerDID string, in AddBookInput) (*entity.LibraryEntry, error) {
	book, err := s.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	existing, err := s.membership.FindMembership(ctx, ownerDID, book.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Warn("user already has book in library", "did", ownerDID, "book", book.ID)
		return nil, ErrAlreadyInLibrary
	}

	created, err := s.membership.Insert(ctx, &entity.LibraryBook{
		OwnerDID:        ownerDID,
		CanonicalBookID: book.ID,
		Status:          entity.StatusAvailable,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("library entry created", "id", created.ID, "did", ownerDID)

	return s.membership.GetEntry(ctx, created.ID)
}

// ListLibrary returns the user's entries joined with canonical data.
func (s *Service) ListLibrary(ctx context.Context, ownerDID string) ([]entity.LibraryEntry, error) {
	return s.membership.ListByOwner(ctx, ownerDID)
}

// DeleteBook removes an entry the user owns. A malformed id, a nonexistent
// entry and an entry owned by someone else all yield ErrNotFound.
func (s *Service) DeleteBook(ctx context.Context, ownerDID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		s.logger.Warn("delete rejected: invalid library entry id", "id", id)
		return ErrNotFound
	}
	return s.membership.DeleteOwned(ctx, id, ownerDID)
}

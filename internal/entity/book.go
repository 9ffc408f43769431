package entity

import "time"

// CanonicalBook is one deduplicated real-world book edition, shared across
// all users. It is created on first encounter and never mutated afterwards.
type CanonicalBook struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle,omitempty"`
	Authors       []string  `json:"authors,omitempty"`
	ISBN10        string    `json:"isbn10,omitempty"`
	ISBN13        string    `json:"isbn13,omitempty"`
	Description   string    `json:"description,omitempty"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	FirstSentence string    `json:"firstSentence,omitempty"`
	PageCount     int       `json:"pageCount,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate string    `json:"publishedDate,omitempty"`
	OpenLibraryID string    `json:"openLibraryId,omitempty"`
	GoogleBooksID string    `json:"googleBooksId,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Lending status of a library entry.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusBorrowed  = "borrowed"
	StatusHidden    = "hidden"
)

// LibraryBook links one user's library to a canonical book.
// (OwnerDID, CanonicalBookID) is unique.
type LibraryBook struct {
	ID              string    `json:"id"`
	OwnerDID        string    `json:"ownerDid"`
	CanonicalBookID string    `json:"canonicalBookId"`
	Status          string    `json:"status"`
	BorrowerDID     string    `json:"borrowerDid,omitempty"`
	Categories      []string  `json:"categories,omitempty"`
	ColorTag        string    `json:"colorTag,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LibraryEntry is a LibraryBook joined with its canonical record, the shape
// returned by the API.
type LibraryEntry struct {
	LibraryBook
	Book CanonicalBook `json:"book"`
}

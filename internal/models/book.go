package models

import "time"

// Book is a catalogue item with a physical copy count. The lending core only
// ever mutates AvailableCopies, through the book repository's guarded
// increment/decrement statements.
type Book struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	// BorrowPrice in KES. Nil means the configured default fee applies.
	BorrowPrice *int64    `json:"borrow_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateBookRequest represents the request body for adding a book
type CreateBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"total_copies"`
	BorrowPrice *int64 `json:"borrow_price,omitempty"`
}

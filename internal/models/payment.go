package models

import "time"

// Payment is an immutable settlement record. At most one payment per
// (loan, method) may exist; duplicate gateway confirmations are absorbed by
// returning the existing record.
type Payment struct {
	ID     int    `json:"id"`
	LoanID int    `json:"loan_id"`
	UserID int    `json:"user_id"`
	Method string `json:"method"`
	// Reference is a globally unique token printed on receipts.
	Reference string `json:"reference"`

	// Amounts in KES.
	BorrowFee  int64 `json:"borrow_fee"`
	FinePerDay int64 `json:"fine_per_day"`
	FineDays   int   `json:"fine_days"`
	FineTotal  int64 `json:"fine_total"`
	Total      int64 `json:"total"` // borrow_fee + fine_total

	CreatedAt time.Time `json:"created_at"`
}

// CheckoutResponse carries the gateway redirect target back to the caller.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`   // KES
	Currency    string `json:"currency"`
}

// ReceiptData bundles a finalized payment with the records needed to render
// its receipt. Read-only.
type ReceiptData struct {
	Payment   *Payment `json:"payment"`
	Loan      *Loan    `json:"loan"`
	BookTitle string   `json:"book_title"`
	UserName  string   `json:"user_name"`
	UserEmail string   `json:"user_email"`
}

package models

import "time"

// LoanStatus is the loan state machine. A loan is created as borrowed, may be
// parked in awaiting_payment when a return is blocked on settlement, and ends
// returned. Whether the current settlement has been captured is tracked
// separately in IsPaid.
type LoanStatus string

const (
	LoanStatusBorrowed        LoanStatus = "borrowed"
	LoanStatusAwaitingPayment LoanStatus = "awaiting_payment"
	LoanStatusReturned        LoanStatus = "returned"
)

// PaymentOption selects when the borrow fee is settled.
type PaymentOption string

const (
	PaymentInstant  PaymentOption = "instant"
	PaymentDeferred PaymentOption = "deferred"
)

type Loan struct {
	ID         int        `json:"id"`
	UserID     int        `json:"user_id"`
	BookID     int        `json:"book_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     LoanStatus `json:"status"`

	// Amount is the borrow fee snapshot taken at creation; immutable afterwards.
	Amount int64 `json:"amount"`
	IsPaid bool  `json:"is_paid"`

	// Fine and Total are snapshots written when the return completes.
	Fine  *int64 `json:"fine,omitempty"`
	Total *int64 `json:"total,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the loan still holds a copy (i.e. not yet returned).
func (l *Loan) Active() bool {
	return l.Status != LoanStatusReturned
}

// BorrowRequest represents the request body for borrowing a book
type BorrowRequest struct {
	PaymentOption PaymentOption `json:"payment_option"` // 'instant' or 'deferred'
}

// BorrowResponse is returned after a successful borrow. CheckoutURL is set
// only for instant settlement.
type BorrowResponse struct {
	Loan        *Loan  `json:"loan"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// LoanView decorates a loan with the fine as it stands right now. For
// returned loans the stored snapshot is reported; for active loans the fine
// keeps accruing against the current time.
type LoanView struct {
	*Loan
	CurrentFine  int64 `json:"current_fine"`
	CurrentTotal int64 `json:"current_total"`
}

// AdminUpdateLoanRequest overwrites loan fields directly. No fine
// recomputation happens; the administrator's values are authoritative.
type AdminUpdateLoanRequest struct {
	Status LoanStatus `json:"status"`
	DueAt  *time.Time `json:"due_at,omitempty"`
	Amount *int64     `json:"amount,omitempty"`
	IsPaid bool       `json:"is_paid"`
}

package models

import "errors"

// Domain errors surfaced by repositories and services. All of them are
// recoverable by the caller; handlers map them to HTTP statuses.
var (
	// ErrAlreadyBorrowed is returned when the member already holds an active
	// loan for the same book.
	ErrAlreadyBorrowed = errors.New("book already borrowed by this member")

	// ErrOutOfStock is returned when no copies of the book are available.
	ErrOutOfStock = errors.New("no copies available")

	// ErrUnauthorized is returned when the acting user is neither the loan's
	// borrower nor library staff.
	ErrUnauthorized = errors.New("not allowed to act on this loan")

	// ErrAlreadyReturned is returned when a return is attempted on a loan
	// that has already been returned.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrPaymentRequired signals that the loan must be settled before the
	// return can complete. The caller should route to checkout and retry.
	ErrPaymentRequired = errors.New("payment required before return")

	// ErrAlreadyPaid is returned when checkout is initiated for a loan whose
	// settlement has already been captured.
	ErrAlreadyPaid = errors.New("loan already paid")

	// ErrGatewayUnavailable is returned when the payment gateway call fails.
	// No loan or inventory state is touched; the caller may retry checkout.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	ErrBookNotFound    = errors.New("book not found")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

package services

import (
	"context"
	"time"

	"library-backend/internal/models"
)

// Store interfaces implemented by the pgx repositories. Each method that
// spans loan, book and payment writes is a single atomic unit of work on the
// repository side; services never read-modify-write shared counters
// themselves.

type LoanStore interface {
	// CreateBorrowed atomically takes a copy off the shelf and inserts the
	// loan. ErrOutOfStock when no copy is left, ErrAlreadyBorrowed when the
	// member already holds this book.
	CreateBorrowed(ctx context.Context, loan *models.Loan) error
	Get(ctx context.Context, id int) (*models.Loan, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Loan, error)
	List(ctx context.Context) ([]*models.Loan, error)
	MarkAwaitingPayment(ctx context.Context, loanID int) error
	// CompleteReturn atomically marks the loan returned, freezes the fine
	// snapshot and puts the copy back. ErrAlreadyReturned when it already is.
	CompleteReturn(ctx context.Context, loanID int, returnedAt time.Time, fine int64) error
	AdminUpdate(ctx context.Context, loan *models.Loan) error
	Delete(ctx context.Context, loanID int) error
}

type BookStore interface {
	Create(ctx context.Context, book *models.Book) error
	Get(ctx context.Context, id int) (*models.Book, error)
	List(ctx context.Context) ([]*models.Book, error)
}

type PaymentStore interface {
	// Capture is the idempotent settlement commit; see the repository for
	// the exact transaction shape.
	Capture(ctx context.Context, draft *models.Payment, capturedAt time.Time) (*models.Payment, bool, error)
	FindByLoanAndMethod(ctx context.Context, loanID int, method string) (*models.Payment, error)
	Get(ctx context.Context, id int) (*models.Payment, error)
	GetReceiptData(ctx context.Context, paymentID int) (*models.ReceiptData, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Payment, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

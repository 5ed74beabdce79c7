package services

import (
	"context"
	"errors"
	"log"
	"time"

	"library-backend/internal/cache"
	"library-backend/internal/metrics"
	"library-backend/internal/models"
)

// LoanService owns the loan lifecycle: borrow, return and administrative
// overrides. Settlement is the SettlementService's job; the two meet at the
// payment-gated return.
type LoanService struct {
	loans  LoanStore
	books  BookStore
	tariff Tariff
	now    func() time.Time
}

func NewLoanService(loans LoanStore, books BookStore, tariff Tariff) *LoanService {
	return &LoanService{
		loans:  loans,
		books:  books,
		tariff: tariff,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (s *LoanService) SetClock(now func() time.Time) {
	s.now = now
}

// Borrow creates a loan for (user, book). The inventory decrement, the loan
// insert and the active-loan uniqueness check commit or fail as one unit, so
// concurrent borrows of the last copy produce exactly one loan.
func (s *LoanService) Borrow(ctx context.Context, userID, bookID int, option models.PaymentOption) (*models.Loan, error) {
	if option == "" {
		option = models.PaymentDeferred
	}
	if option != models.PaymentInstant && option != models.PaymentDeferred {
		return nil, errors.New("invalid payment option")
	}

	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	amount := s.tariff.BorrowFee
	if book.BorrowPrice != nil {
		amount = *book.BorrowPrice
	}

	now := s.now()
	loan := &models.Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: now,
		DueAt:      now.Add(s.tariff.LoanPeriod),
		Status:     models.LoanStatusBorrowed,
		Amount:     amount,
		IsPaid:     false,
	}

	if err := s.loans.CreateBorrowed(ctx, loan); err != nil {
		return nil, err
	}

	cache.InvalidateBook(ctx, bookID)
	metrics.LoansBorrowedTotal.Inc()
	log.Printf("[Loan] user %d borrowed book %d (loan %d, due %s)",
		userID, bookID, loan.ID, loan.DueAt.Format(time.RFC3339))
	return loan, nil
}

// Return transitions a loan to returned. Only the borrower or staff may
// return it. An unpaid loan is parked awaiting payment and ErrPaymentRequired
// is surfaced; the caller routes to checkout and the return completes on
// payment confirmation.
func (s *LoanService) Return(ctx context.Context, loanID, actorID int, actorRole string) (*models.Loan, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if loan.UserID != actorID && !models.IsStaff(actorRole) {
		return nil, models.ErrUnauthorized
	}
	if loan.Status == models.LoanStatusReturned {
		return nil, models.ErrAlreadyReturned
	}

	if !loan.IsPaid {
		if loan.Status == models.LoanStatusBorrowed {
			if err := s.loans.MarkAwaitingPayment(ctx, loanID); err != nil {
				return nil, err
			}
		}
		return nil, models.ErrPaymentRequired
	}

	now := s.now()
	_, fine := ComputeFine(loan.DueAt, now, s.tariff.FinePerDay)
	if err := s.loans.CompleteReturn(ctx, loanID, now, fine); err != nil {
		return nil, err
	}

	cache.InvalidateBook(ctx, loan.BookID)
	metrics.LoansReturnedTotal.Inc()
	log.Printf("[Loan] loan %d returned by actor %d (fine %d)", loanID, actorID, fine)

	return s.loans.Get(ctx, loanID)
}

// Get returns a single loan, restricted to its borrower unless staff.
func (s *LoanService) Get(ctx context.Context, loanID, actorID int, actorRole string) (*models.Loan, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actorID && !models.IsStaff(actorRole) {
		return nil, models.ErrUnauthorized
	}
	return loan, nil
}

// ListUserLoans returns a member's loans with their live fines.
func (s *LoanService) ListUserLoans(ctx context.Context, userID int) ([]*models.LoanView, error) {
	loans, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.views(loans), nil
}

// ListAllLoans returns every loan with live fines. Staff only; enforced at
// the router.
func (s *LoanService) ListAllLoans(ctx context.Context) ([]*models.LoanView, error) {
	loans, err := s.loans.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(loans), nil
}

// View decorates a loan with the fine as it stands right now.
func (s *LoanService) View(loan *models.Loan) *models.LoanView {
	_, fine := fineFor(loan, s.now(), s.tariff.FinePerDay)
	return &models.LoanView{
		Loan:         loan,
		CurrentFine:  fine,
		CurrentTotal: loan.Amount + fine,
	}
}

func (s *LoanService) views(loans []*models.Loan) []*models.LoanView {
	views := make([]*models.LoanView, 0, len(loans))
	for _, loan := range loans {
		views = append(views, s.View(loan))
	}
	return views
}

// AdminUpdate overwrites loan fields directly. No fine recomputation is
// triggered; the administrator's values are authoritative.
func (s *LoanService) AdminUpdate(ctx context.Context, loanID int, req *models.AdminUpdateLoanRequest) (*models.Loan, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if req.Status != "" {
		loan.Status = req.Status
	}
	if req.DueAt != nil {
		loan.DueAt = *req.DueAt
	}
	if req.Amount != nil {
		loan.Amount = *req.Amount
	}
	loan.IsPaid = req.IsPaid

	// Keep returned_at consistent with the status being forced.
	if loan.Status == models.LoanStatusReturned && loan.ReturnedAt == nil {
		now := s.now()
		loan.ReturnedAt = &now
	}
	if loan.Status != models.LoanStatusReturned {
		loan.ReturnedAt = nil
	}
	if loan.Fine != nil {
		total := loan.Amount + *loan.Fine
		loan.Total = &total
	}

	if err := s.loans.AdminUpdate(ctx, loan); err != nil {
		return nil, err
	}
	log.Printf("[Loan] admin override applied to loan %d (status %s)", loanID, loan.Status)
	return loan, nil
}

// Delete removes a loan record. Administrative action; no inventory
// adjustment happens here.
func (s *LoanService) Delete(ctx context.Context, loanID int) error {
	return s.loans.Delete(ctx, loanID)
}

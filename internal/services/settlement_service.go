package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"library-backend/internal/cache"
	"library-backend/internal/gateway"
	"library-backend/internal/metrics"
	"library-backend/internal/models"

	"github.com/google/uuid"
)

// SettlementService drives the pay-now / pay-later decision against the
// external gateway and records exactly one payment per captured settlement,
// however many times the gateway redelivers its success notification.
type SettlementService struct {
	loans    LoanStore
	payments PaymentStore
	gateway  gateway.CheckoutGateway
	tariff   Tariff
	baseURL  string
	now      func() time.Time
}

func NewSettlementService(
	loans LoanStore,
	payments PaymentStore,
	gw gateway.CheckoutGateway,
	tariff Tariff,
	baseURL string,
) *SettlementService {
	return &SettlementService{
		loans:    loans,
		payments: payments,
		gateway:  gw,
		tariff:   tariff,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *SettlementService) SetClock(now func() time.Time) {
	s.now = now
}

// InitiateCheckout creates a gateway checkout session for the loan's borrow
// fee plus its fine as of now. The gateway call happens outside any lock;
// on gateway failure nothing is mutated and the caller may simply retry.
func (s *SettlementService) InitiateCheckout(ctx context.Context, loanID, actorID int, actorRole string) (*models.CheckoutResponse, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != actorID && !models.IsStaff(actorRole) {
		return nil, models.ErrUnauthorized
	}
	if loan.IsPaid {
		return nil, models.ErrAlreadyPaid
	}

	_, fine := fineFor(loan, s.now(), s.tariff.FinePerDay)
	charge := loan.Amount + fine

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		AmountMinor: charge * 100,
		Currency:    s.tariff.Currency,
		Description: fmt.Sprintf("Borrow fee for loan #%d", loan.ID),
		LoanID:      loan.ID,
		CallbackURL: fmt.Sprintf("%s/api/payments/callback/success?loan_id=%d", s.baseURL, loan.ID),
	})
	if err != nil {
		metrics.CheckoutFailuresTotal.Inc()
		log.Printf("[Settlement] checkout session failed for loan %d: %v", loan.ID, err)
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	log.Printf("[Settlement] checkout session %s created for loan %d (%d %s)",
		session.ID, loan.ID, charge, s.tariff.Currency)
	return &models.CheckoutResponse{
		CheckoutURL: session.RedirectURL,
		Amount:      charge,
		Currency:    s.tariff.Currency,
	}, nil
}

// ConfirmSuccess processes the gateway's success notification for a loan.
// Safe to invoke any number of times: after the first capture every call
// returns the existing payment untouched. When the loan's return was blocked
// on this settlement, the return completes as part of the same commit.
func (s *SettlementService) ConfirmSuccess(ctx context.Context, loanID int) (*models.Payment, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	method := s.gateway.Method()
	if existing, err := s.payments.FindByLoanAndMethod(ctx, loanID, method); err == nil {
		log.Printf("[Settlement] duplicate confirmation for loan %d absorbed", loanID)
		return existing, nil
	} else if !errors.Is(err, models.ErrPaymentNotFound) {
		return nil, err
	}

	now := s.now()
	ref := now
	if loan.ReturnedAt != nil {
		ref = *loan.ReturnedAt
	}
	days, fineTotal := ComputeFine(loan.DueAt, ref, s.tariff.FinePerDay)

	draft := &models.Payment{
		LoanID:     loan.ID,
		UserID:     loan.UserID,
		Method:     method,
		Reference:  newPaymentReference(method),
		BorrowFee:  loan.Amount,
		FinePerDay: s.tariff.FinePerDay,
		FineDays:   days,
		FineTotal:  fineTotal,
		Total:      loan.Amount + fineTotal,
	}

	payment, created, err := s.payments.Capture(ctx, draft, now)
	if errors.Is(err, models.ErrAlreadyPaid) {
		// Lost a capture race with a concurrent confirmation.
		return s.payments.FindByLoanAndMethod(ctx, loanID, method)
	}
	if err != nil {
		return nil, err
	}

	if created {
		metrics.PaymentsCapturedTotal.Inc()
		metrics.FinesAssessedKES.Add(float64(payment.FineTotal))
		if loan.Status == models.LoanStatusAwaitingPayment {
			// The pending return completed inside the capture.
			metrics.LoansReturnedTotal.Inc()
			cache.InvalidateBook(ctx, loan.BookID)
		}
		log.Printf("[Settlement] payment %s captured for loan %d (total %d)",
			payment.Reference, loanID, payment.Total)
	}
	return payment, nil
}

// ConfirmCancel handles the gateway's cancel notification. Purely
// informational; no loan or payment state changes.
func (s *SettlementService) ConfirmCancel(ctx context.Context, loanID int) error {
	if _, err := s.loans.Get(ctx, loanID); err != nil {
		return err
	}
	log.Printf("[Settlement] checkout cancelled for loan %d", loanID)
	return nil
}

// GetPayment returns a payment, restricted to its payer unless staff.
func (s *SettlementService) GetPayment(ctx context.Context, paymentID, actorID int, actorRole string) (*models.Payment, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != actorID && !models.IsStaff(actorRole) {
		return nil, models.ErrUnauthorized
	}
	return payment, nil
}

// ListUserPayments returns a member's settlement history.
func (s *SettlementService) ListUserPayments(ctx context.Context, userID int) ([]*models.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}

// ReceiptData loads everything needed to render a payment's receipt.
func (s *SettlementService) ReceiptData(ctx context.Context, paymentID, actorID int, actorRole string) (*models.ReceiptData, error) {
	data, err := s.payments.GetReceiptData(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if data.Payment.UserID != actorID && !models.IsStaff(actorRole) {
		return nil, models.ErrUnauthorized
	}
	return data, nil
}

func newPaymentReference(method string) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", strings.ToUpper(method), token[:12])
}

package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"library-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettlementService(store *memStore, gw *fakeGateway, at time.Time) *SettlementService {
	svc := NewSettlementService(loanFacet{store}, paymentFacet{store}, gw, testTariff, "http://localhost:8080/")
	svc.SetClock(fixedClock(at))
	return svc
}

func TestInitiateCheckoutChargesFeePlusFine(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}
	borrowedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	loans := newLoanService(store, borrowedAt)
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	// 4 days overdue at checkout time.
	svc := newSettlementService(store, gw, loan.DueAt.Add(4*24*time.Hour))
	resp, err := svc.InitiateCheckout(ctx, loan.ID, 1, models.RoleMember)
	require.NoError(t, err)

	assert.Equal(t, int64(500+4*70), resp.Amount)
	assert.Equal(t, "KES", resp.Currency)
	assert.Equal(t, "https://rzp.test/checkout", resp.CheckoutURL)

	req := gw.lastRequest()
	assert.Equal(t, int64(780*100), req.AmountMinor)
	assert.Equal(t, loan.ID, req.LoanID)
	assert.True(t, strings.HasPrefix(req.CallbackURL, "http://localhost:8080/api/payments/callback/success"))
}

func TestInitiateCheckoutAuthorization(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())
	_, err = svc.InitiateCheckout(ctx, loan.ID, 2, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.InitiateCheckout(ctx, loan.ID, 2, models.RoleLibrarian)
	assert.NoError(t, err)
}

func TestInitiateCheckoutAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())
	_, err = svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)

	_, err = svc.InitiateCheckout(ctx, loan.ID, 1, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrAlreadyPaid)
}

func TestInitiateCheckoutGatewayDown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{fail: errGatewayDown}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())
	_, err = svc.InitiateCheckout(ctx, loan.ID, 1, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)

	// Nothing was mutated; a retry may succeed.
	got, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid)
}

func TestConfirmSuccessMarksLoanPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}
	borrowedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	loans := newLoanService(store, borrowedAt)
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, borrowedAt.Add(time.Hour))
	payment, err := svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(500), payment.BorrowFee)
	assert.Equal(t, int64(0), payment.FineTotal)
	assert.Equal(t, int64(500), payment.Total)
	assert.True(t, strings.HasPrefix(payment.Reference, "RAZORPAY-"))

	got, _ := store.GetLoan(ctx, loan.ID)
	assert.True(t, got.IsPaid)
	// Paid early; the member keeps the copy until they return it.
	assert.Equal(t, models.LoanStatusBorrowed, got.Status)
}

func TestConfirmSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())
	first, err := svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)

	// Redelivered webhook plus browser callback for the same settlement.
	second, err := svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)
	third, err := svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, first.Reference, second.Reference)

	payments, err := store.ListPaymentsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestConcurrentConfirmationsRecordOnePayment(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())

	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmSuccess(ctx, loan.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	payments, err := store.ListPaymentsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestPaymentCompletesBlockedReturn(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}
	borrowedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	loans := newLoanService(store, borrowedAt)
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	// Return 2 days late while unpaid: blocked awaiting settlement.
	returnAt := loan.DueAt.Add(2 * 24 * time.Hour)
	loans.SetClock(fixedClock(returnAt))
	_, err = loans.Return(ctx, loan.ID, 1, models.RoleMember)
	require.ErrorIs(t, err, models.ErrPaymentRequired)

	got, _ := store.Get(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableCopies)

	// Settlement confirmation completes the return in the same stroke.
	svc := newSettlementService(store, gw, returnAt.Add(10*time.Minute))
	payment, err := svc.ConfirmSuccess(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, payment.FineDays)
	assert.Equal(t, int64(140), payment.FineTotal)
	assert.Equal(t, int64(640), payment.Total)

	after, _ := store.GetLoan(ctx, loan.ID)
	assert.True(t, after.IsPaid)
	assert.Equal(t, models.LoanStatusReturned, after.Status)

	got, _ = store.Get(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestConfirmCancelLeavesLoanUntouched(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	gw := &fakeGateway{}

	loans := newLoanService(store, time.Now())
	loan, err := loans.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc := newSettlementService(store, gw, time.Now())
	require.NoError(t, svc.ConfirmCancel(ctx, loan.ID))

	got, _ := store.GetLoan(ctx, loan.ID)
	assert.False(t, got.IsPaid)
	assert.Equal(t, models.LoanStatusBorrowed, got.Status)
}

func TestConfirmSuccessUnknownLoan(t *testing.T) {
	store := newMemStore()
	svc := newSettlementService(store, &fakeGateway{}, time.Now())

	_, err := svc.ConfirmSuccess(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrLoanNotFound)
}

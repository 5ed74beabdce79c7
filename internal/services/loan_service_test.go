package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"library-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoanService(store *memStore, at time.Time) *LoanService {
	svc := NewLoanService(loanFacet{store}, store, testTariff)
	svc.SetClock(fixedClock(at))
	return svc
}

func TestBorrowCreatesLoanAndTakesCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 3, nil)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusBorrowed, loan.Status)
	assert.False(t, loan.IsPaid)
	assert.Equal(t, int64(500), loan.Amount)
	assert.Equal(t, now.Add(14*24*time.Hour), loan.DueAt)

	got, err := store.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestBorrowUsesBookPriceWhenSet(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	price := int64(800)
	book := seedBook(store, 1, &price)
	svc := newLoanService(store, time.Now())

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentInstant)
	require.NoError(t, err)
	assert.Equal(t, int64(800), loan.Amount)
}

func TestBorrowRejectsUnknownOption(t *testing.T) {
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	_, err := svc.Borrow(context.Background(), 1, book.ID, models.PaymentOption("layaway"))
	assert.Error(t, err)
}

func TestBorrowOutOfStock(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	_, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, 2, book.ID, models.PaymentDeferred)
	assert.ErrorIs(t, err, models.ErrOutOfStock)
}

func TestBorrowSameBookTwice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 5, nil)
	svc := newLoanService(store, time.Now())

	_, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	assert.ErrorIs(t, err, models.ErrAlreadyBorrowed)
}

func TestConcurrentBorrowsOfLastCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	const members = 10
	errs := make([]error, members)
	var wg sync.WaitGroup
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, i+1, book.ID, models.PaymentDeferred)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrOutOfStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestReturnRequiresPayment(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, 1, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrPaymentRequired)

	// The loan is parked, its copy still out.
	parked, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusAwaitingPayment, parked.Status)

	got, _ := store.Get(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableCopies)
}

func TestReturnPaidLoanFreezesFine(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	borrowedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, borrowedAt)

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	// Settle, then return 3 days late.
	paid, _ := store.GetLoan(ctx, loan.ID)
	paid.IsPaid = true
	require.NoError(t, store.AdminUpdate(ctx, paid))

	svc.SetClock(fixedClock(loan.DueAt.Add(3 * 24 * time.Hour)))
	returned, err := svc.Return(ctx, loan.ID, 1, models.RoleMember)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.Fine)
	assert.Equal(t, int64(210), *returned.Fine)
	require.NotNil(t, returned.Total)
	assert.Equal(t, int64(710), *returned.Total)

	got, _ := store.Get(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestReturnAuthorization(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	paid, _ := store.GetLoan(ctx, loan.ID)
	paid.IsPaid = true
	require.NoError(t, store.AdminUpdate(ctx, paid))

	// Another member may not return it; a librarian may.
	_, err = svc.Return(ctx, loan.ID, 99, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.Return(ctx, loan.ID, 99, models.RoleLibrarian)
	assert.NoError(t, err)
}

func TestReturnTwice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	svc := newLoanService(store, time.Now())

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	paid, _ := store.GetLoan(ctx, loan.ID)
	paid.IsPaid = true
	require.NoError(t, store.AdminUpdate(ctx, paid))

	_, err = svc.Return(ctx, loan.ID, 1, models.RoleMember)
	require.NoError(t, err)

	_, err = svc.Return(ctx, loan.ID, 1, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrAlreadyReturned)
}

func TestViewReportsLiveFine(t *testing.T) {
	store := newMemStore()
	book := seedBook(store, 1, nil)
	borrowedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, borrowedAt)

	loan, err := svc.Borrow(context.Background(), 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	svc.SetClock(fixedClock(loan.DueAt.Add(2 * 24 * time.Hour)))
	view := svc.View(loan)
	assert.Equal(t, int64(140), view.CurrentFine)
	assert.Equal(t, int64(640), view.CurrentTotal)
}

func TestAdminUpdateForcedReturnSetsReturnedAt(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	book := seedBook(store, 1, nil)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	loan, err := svc.Borrow(ctx, 1, book.ID, models.PaymentDeferred)
	require.NoError(t, err)

	updated, err := svc.AdminUpdate(ctx, loan.ID, &models.AdminUpdateLoanRequest{
		Status: models.LoanStatusReturned,
		IsPaid: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, updated.Status)
	require.NotNil(t, updated.ReturnedAt)
	assert.Equal(t, now, *updated.ReturnedAt)
	assert.True(t, updated.IsPaid)
}

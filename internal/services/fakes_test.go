package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"library-backend/internal/gateway"
	"library-backend/internal/models"
)

// memStore is an in-memory stand-in for the pgx repositories. A single mutex
// guards all three tables so the cross-table invariants hold under the same
// concurrency the real transactions are exercised with.
type memStore struct {
	mu       sync.Mutex
	books    map[int]models.Book
	loans    map[int]models.Loan
	payments map[int]models.Payment
	users    map[int]models.User

	nextBookID    int
	nextLoanID    int
	nextPaymentID int
	nextUserID    int
}

func newMemStore() *memStore {
	return &memStore{
		books:    make(map[int]models.Book),
		loans:    make(map[int]models.Loan),
		payments: make(map[int]models.Payment),
		users:    make(map[int]models.User),
	}
}

// --- BookStore ---

func (m *memStore) Create(ctx context.Context, book *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookID++
	book.ID = m.nextBookID
	m.books[book.ID] = *book
	return nil
}

func (m *memStore) Get(ctx context.Context, id int) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, models.ErrBookNotFound
	}
	return &book, nil
}

func (m *memStore) List(ctx context.Context) ([]*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	books := make([]*models.Book, 0, len(m.books))
	for id := range m.books {
		book := m.books[id]
		books = append(books, &book)
	}
	return books, nil
}

// --- LoanStore ---

func (m *memStore) CreateBorrowed(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.loans {
		if existing.UserID == loan.UserID && existing.BookID == loan.BookID &&
			existing.Status != models.LoanStatusReturned {
			return models.ErrAlreadyBorrowed
		}
	}

	book, ok := m.books[loan.BookID]
	if !ok {
		return models.ErrBookNotFound
	}
	if book.AvailableCopies <= 0 {
		return models.ErrOutOfStock
	}
	book.AvailableCopies--
	m.books[loan.BookID] = book

	m.nextLoanID++
	loan.ID = m.nextLoanID
	m.loans[loan.ID] = *loan
	return nil
}

func (m *memStore) GetLoan(ctx context.Context, id int) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLoanLocked(id)
}

func (m *memStore) getLoanLocked(id int) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, models.ErrLoanNotFound
	}
	return &loan, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID int) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loans := make([]*models.Loan, 0)
	for id := range m.loans {
		if m.loans[id].UserID == userID {
			loan := m.loans[id]
			loans = append(loans, &loan)
		}
	}
	return loans, nil
}

func (m *memStore) ListLoans(ctx context.Context) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loans := make([]*models.Loan, 0, len(m.loans))
	for id := range m.loans {
		loan := m.loans[id]
		loans = append(loans, &loan)
	}
	return loans, nil
}

func (m *memStore) MarkAwaitingPayment(ctx context.Context, loanID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[loanID]
	if !ok {
		return models.ErrLoanNotFound
	}
	if loan.Status == models.LoanStatusBorrowed {
		loan.Status = models.LoanStatusAwaitingPayment
		m.loans[loanID] = loan
	}
	return nil
}

func (m *memStore) CompleteReturn(ctx context.Context, loanID int, returnedAt time.Time, fine int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeReturnLocked(loanID, returnedAt, fine)
}

func (m *memStore) completeReturnLocked(loanID int, returnedAt time.Time, fine int64) error {
	loan, ok := m.loans[loanID]
	if !ok {
		return models.ErrLoanNotFound
	}
	if loan.Status == models.LoanStatusReturned {
		return models.ErrAlreadyReturned
	}

	total := loan.Amount + fine
	loan.Status = models.LoanStatusReturned
	loan.ReturnedAt = &returnedAt
	loan.Fine = &fine
	loan.Total = &total
	m.loans[loanID] = loan

	if book, ok := m.books[loan.BookID]; ok && book.AvailableCopies < book.TotalCopies {
		book.AvailableCopies++
		m.books[loan.BookID] = book
	}
	return nil
}

func (m *memStore) AdminUpdate(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return models.ErrLoanNotFound
	}
	m.loans[loan.ID] = *loan
	return nil
}

func (m *memStore) Delete(ctx context.Context, loanID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loanID]; !ok {
		return models.ErrLoanNotFound
	}
	delete(m.loans, loanID)
	return nil
}

// --- PaymentStore ---

func (m *memStore) Capture(ctx context.Context, draft *models.Payment, capturedAt time.Time) (*models.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.loans[draft.LoanID]
	if !ok {
		return nil, false, models.ErrLoanNotFound
	}

	for id := range m.payments {
		if m.payments[id].LoanID == draft.LoanID && m.payments[id].Method == draft.Method {
			existing := m.payments[id]
			return &existing, false, nil
		}
	}

	loan.IsPaid = true
	m.loans[draft.LoanID] = loan
	if loan.Status == models.LoanStatusAwaitingPayment {
		if err := m.completeReturnLocked(loan.ID, capturedAt, draft.FineTotal); err != nil {
			return nil, false, err
		}
	}

	m.nextPaymentID++
	payment := *draft
	payment.ID = m.nextPaymentID
	payment.CreatedAt = capturedAt
	m.payments[payment.ID] = payment
	return &payment, true, nil
}

func (m *memStore) FindByLoanAndMethod(ctx context.Context, loanID int, method string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.payments {
		if m.payments[id].LoanID == loanID && m.payments[id].Method == method {
			payment := m.payments[id]
			return &payment, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (m *memStore) GetPayment(ctx context.Context, id int) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return &payment, nil
}

func (m *memStore) GetReceiptData(ctx context.Context, paymentID int) (*models.ReceiptData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	loan := m.loans[payment.LoanID]
	book := m.books[loan.BookID]
	user := m.users[payment.UserID]
	return &models.ReceiptData{
		Payment:   &payment,
		Loan:      &loan,
		BookTitle: book.Title,
		UserName:  user.Name,
		UserEmail: user.Email,
	}, nil
}

func (m *memStore) ListPaymentsByUser(ctx context.Context, userID int) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payments := make([]*models.Payment, 0)
	for id := range m.payments {
		if m.payments[id].UserID == userID {
			payment := m.payments[id]
			payments = append(payments, &payment)
		}
	}
	return payments, nil
}

// Adapters pinning the store to the service interfaces. The method sets
// collide on names (Get, List), so each facet gets a thin view type.

type loanFacet struct{ *memStore }

func (f loanFacet) Get(ctx context.Context, id int) (*models.Loan, error) {
	return f.GetLoan(ctx, id)
}

func (f loanFacet) List(ctx context.Context) ([]*models.Loan, error) {
	return f.ListLoans(ctx)
}

type paymentFacet struct{ *memStore }

func (f paymentFacet) Get(ctx context.Context, id int) (*models.Payment, error) {
	return f.GetPayment(ctx, id)
}

func (f paymentFacet) ListByUser(ctx context.Context, userID int) ([]*models.Payment, error) {
	return f.ListPaymentsByUser(ctx, userID)
}

// fakeGateway records checkout requests and can be forced to fail.
type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.CheckoutRequest
	fail     error
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	g.requests = append(g.requests, req)
	return &gateway.CheckoutSession{
		ID:          "plink_test",
		RedirectURL: "https://rzp.test/checkout",
	}, nil
}

func (g *fakeGateway) Method() string {
	return gateway.MethodRazorpay
}

func (g *fakeGateway) lastRequest() gateway.CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

var errGatewayDown = errors.New("gateway timeout")

var testTariff = Tariff{
	BorrowFee:  500,
	FinePerDay: 70,
	LoanPeriod: 14 * 24 * time.Hour,
	Currency:   "KES",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedBook(m *memStore, copies int, price *int64) *models.Book {
	book := &models.Book{
		Title:           "The Go Programming Language",
		Author:          "Donovan & Kernighan",
		TotalCopies:     copies,
		AvailableCopies: copies,
		BorrowPrice:     price,
	}
	m.Create(context.Background(), book)
	return book
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, loan_id, user_id, method, reference,
	borrow_fee, fine_per_day, fine_days, fine_total, total, created_at`

type PaymentRepository struct {
	DB    *pgxpool.Pool
	books *BookRepository
}

func NewPaymentRepository(db *pgxpool.Pool, books *BookRepository) *PaymentRepository {
	return &PaymentRepository{DB: db, books: books}
}

// Capture commits a settlement in one atomic unit of work: the loan row is
// locked, a prior payment for the same (loan, method) short-circuits the
// whole operation, the paid flag flips, a return pending on payment is
// completed, and exactly one payment row is inserted. Gateways redeliver
// success notifications; every call after the first returns the original
// payment with created=false.
func (r *PaymentRepository) Capture(ctx context.Context, draft *models.Payment, capturedAt time.Time) (*models.Payment, bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var bookID int
	var status models.LoanStatus
	err = tx.QueryRow(ctx,
		`SELECT book_id, status FROM loans WHERE id = $1 FOR UPDATE`,
		draft.LoanID,
	).Scan(&bookID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, models.ErrLoanNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("loan lock failed: %w", err)
	}

	existing := &models.Payment{}
	err = scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 AND method = $2`,
		draft.LoanID, draft.Method), existing)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("payment lookup failed: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE loans SET is_paid = TRUE, updated_at = NOW() WHERE id = $1`,
		draft.LoanID); err != nil {
		return nil, false, fmt.Errorf("mark paid failed: %w", err)
	}

	// A return blocked on this settlement completes now that it is captured.
	if status == models.LoanStatusAwaitingPayment {
		if _, err := tx.Exec(ctx, `
			UPDATE loans
			SET status = $1, returned_at = $2, fine = $3, total = amount + $3, updated_at = NOW()
			WHERE id = $4
		`, models.LoanStatusReturned, capturedAt, draft.FineTotal, draft.LoanID); err != nil {
			return nil, false, fmt.Errorf("pending return completion failed: %w", err)
		}
		if err := r.books.IncrementAvailable(ctx, tx, bookID); err != nil {
			return nil, false, err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO payments (loan_id, user_id, method, reference, borrow_fee, fine_per_day, fine_days, fine_total, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`,
		draft.LoanID,
		draft.UserID,
		draft.Method,
		draft.Reference,
		draft.BorrowFee,
		draft.FinePerDay,
		draft.FineDays,
		draft.FineTotal,
		draft.Total,
	).Scan(&draft.ID, &draft.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost a race on (loan_id, method) with another confirmation.
			return nil, false, models.ErrAlreadyPaid
		}
		return nil, false, fmt.Errorf("payment insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("tx commit failed: %w", err)
	}
	return draft, true, nil
}

// FindByLoanAndMethod returns the settlement for a loan, or ErrPaymentNotFound.
func (r *PaymentRepository) FindByLoanAndMethod(ctx context.Context, loanID int, method string) (*models.Payment, error) {
	payment := &models.Payment{}
	err := scanPayment(r.DB.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 AND method = $2`,
		loanID, method), payment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) Get(ctx context.Context, id int) (*models.Payment, error) {
	payment := &models.Payment{}
	err := scanPayment(r.DB.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id), payment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetReceiptData joins the payment with its loan, book and user for receipt
// rendering. Read-only.
func (r *PaymentRepository) GetReceiptData(ctx context.Context, paymentID int) (*models.ReceiptData, error) {
	payment := &models.Payment{}
	loan := &models.Loan{}
	data := &models.ReceiptData{Payment: payment, Loan: loan}

	err := r.DB.QueryRow(ctx, `
		SELECT p.id, p.loan_id, p.user_id, p.method, p.reference,
		       p.borrow_fee, p.fine_per_day, p.fine_days, p.fine_total, p.total, p.created_at,
		       l.id, l.user_id, l.book_id, l.borrowed_at, l.due_at, l.returned_at,
		       l.status, l.amount, l.is_paid, l.fine, l.total, l.created_at, l.updated_at,
		       b.title, u.name, u.email
		FROM payments p
		JOIN loans l ON l.id = p.loan_id
		JOIN books b ON b.id = l.book_id
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`, paymentID).Scan(
		&payment.ID, &payment.LoanID, &payment.UserID, &payment.Method, &payment.Reference,
		&payment.BorrowFee, &payment.FinePerDay, &payment.FineDays, &payment.FineTotal, &payment.Total, &payment.CreatedAt,
		&loan.ID, &loan.UserID, &loan.BookID, &loan.BorrowedAt, &loan.DueAt, &loan.ReturnedAt,
		&loan.Status, &loan.Amount, &loan.IsPaid, &loan.Fine, &loan.Total, &loan.CreatedAt, &loan.UpdatedAt,
		&data.BookTitle, &data.UserName, &data.UserEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int) ([]*models.Payment, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		if err := scanPayment(rows, payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row, p *models.Payment) error {
	return row.Scan(
		&p.ID,
		&p.LoanID,
		&p.UserID,
		&p.Method,
		&p.Reference,
		&p.BorrowFee,
		&p.FinePerDay,
		&p.FineDays,
		&p.FineTotal,
		&p.Total,
		&p.CreatedAt,
	)
}

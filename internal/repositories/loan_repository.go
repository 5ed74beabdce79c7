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

const loanColumns = `id, user_id, book_id, borrowed_at, due_at, returned_at,
	status, amount, is_paid, fine, total, created_at, updated_at`

type LoanRepository struct {
	DB    *pgxpool.Pool
	books *BookRepository
}

func NewLoanRepository(db *pgxpool.Pool, books *BookRepository) *LoanRepository {
	return &LoanRepository{DB: db, books: books}
}

// CreateBorrowed inserts a new borrowed loan and takes a copy off the shelf
// in a single transaction. Fails with ErrOutOfStock when no copy is
// available and ErrAlreadyBorrowed when the member already holds an active
// loan for the book (enforced by the partial unique index).
func (r *LoanRepository) CreateBorrowed(ctx context.Context, loan *models.Loan) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.books.DecrementAvailable(ctx, tx, loan.BookID); err != nil {
		return err
	}

	query := `
		INSERT INTO loans (user_id, book_id, borrowed_at, due_at, status, amount, is_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		loan.UserID,
		loan.BookID,
		loan.BorrowedAt,
		loan.DueAt,
		loan.Status,
		loan.Amount,
		loan.IsPaid,
	).Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrAlreadyBorrowed
		}
		return fmt.Errorf("loan insert failed: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *LoanRepository) Get(ctx context.Context, id int) (*models.Loan, error) {
	loan := &models.Loan{}
	err := scanLoan(r.DB.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id), loan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID int) ([]*models.Loan, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

func (r *LoanRepository) List(ctx context.Context) ([]*models.Loan, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLoans(rows)
}

// MarkAwaitingPayment parks a borrowed loan while its settlement is pending.
// A no-op when the loan is already awaiting payment or returned.
func (r *LoanRepository) MarkAwaitingPayment(ctx context.Context, loanID int) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE loans SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.LoanStatusAwaitingPayment, loanID, models.LoanStatusBorrowed)
	return err
}

// CompleteReturn finalizes a paid return in one transaction: marks the loan
// returned, freezes the fine snapshot, writes total = amount + fine, and puts
// the copy back on the shelf.
func (r *LoanRepository) CompleteReturn(ctx context.Context, loanID int, returnedAt time.Time, fine int64) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var bookID int
	err = tx.QueryRow(ctx, `
		UPDATE loans
		SET status = $1, returned_at = $2, fine = $3, total = amount + $3, updated_at = NOW()
		WHERE id = $4 AND status <> $1
		RETURNING book_id
	`, models.LoanStatusReturned, returnedAt, fine, loanID).Scan(&bookID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAlreadyReturned
	}
	if err != nil {
		return fmt.Errorf("return update failed: %w", err)
	}

	if err := r.books.IncrementAvailable(ctx, tx, bookID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AdminUpdate overwrites loan fields verbatim. No fine recomputation; the
// administrator's values are authoritative.
func (r *LoanRepository) AdminUpdate(ctx context.Context, loan *models.Loan) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE loans
		SET status = $1, due_at = $2, returned_at = $3, amount = $4, is_paid = $5,
		    fine = $6, total = $7, updated_at = NOW()
		WHERE id = $8
	`,
		loan.Status,
		loan.DueAt,
		loan.ReturnedAt,
		loan.Amount,
		loan.IsPaid,
		loan.Fine,
		loan.Total,
		loan.ID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return models.ErrLoanNotFound
	}
	return nil
}

func (r *LoanRepository) Delete(ctx context.Context, loanID int) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM loans WHERE id = $1`, loanID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return models.ErrLoanNotFound
	}
	return nil
}

func scanLoan(row pgx.Row, loan *models.Loan) error {
	return row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.BookID,
		&loan.BorrowedAt,
		&loan.DueAt,
		&loan.ReturnedAt,
		&loan.Status,
		&loan.Amount,
		&loan.IsPaid,
		&loan.Fine,
		&loan.Total,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
}

func collectLoans(rows pgx.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan := &models.Loan{}
		if err := scanLoan(rows, loan); err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

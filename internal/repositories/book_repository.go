package repositories

import (
	"context"
	"errors"

	"library-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookRepository struct {
	DB *pgxpool.Pool
}

func NewBookRepository(db *pgxpool.Pool) *BookRepository {
	return &BookRepository{DB: db}
}

func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (title, author, isbn, total_copies, available_copies, borrow_price)
		VALUES ($1, $2, $3, $4, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.DB.QueryRow(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.TotalCopies,
		book.BorrowPrice,
	).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
}

func (r *BookRepository) Get(ctx context.Context, id int) (*models.Book, error) {
	book := &models.Book{}
	query := `
		SELECT id, title, author, isbn, total_copies, available_copies, borrow_price, created_at, updated_at
		FROM books WHERE id = $1
	`
	err := r.DB.QueryRow(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.TotalCopies,
		&book.AvailableCopies,
		&book.BorrowPrice,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (r *BookRepository) List(ctx context.Context) ([]*models.Book, error) {
	query := `
		SELECT id, title, author, isbn, total_copies, available_copies, borrow_price, created_at, updated_at
		FROM books ORDER BY title
	`
	rows, err := r.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book := &models.Book{}
		err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Author,
			&book.ISBN,
			&book.TotalCopies,
			&book.AvailableCopies,
			&book.BorrowPrice,
			&book.CreatedAt,
			&book.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// DecrementAvailable takes one copy off the shelf within the caller's
// transaction. The availability guard lives in the statement itself, so two
// concurrent borrows of the last copy can never both succeed.
func (r *BookRepository) DecrementAvailable(ctx context.Context, tx pgx.Tx, bookID int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE books
		SET available_copies = available_copies - 1, updated_at = NOW()
		WHERE id = $1 AND available_copies > 0
	`, bookID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return models.ErrOutOfStock
	}
	return nil
}

// IncrementAvailable puts a copy back, capped at total_copies so a
// double-return race can never push availability above the shelf count.
func (r *BookRepository) IncrementAvailable(ctx context.Context, tx pgx.Tx, bookID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE books
		SET available_copies = LEAST(available_copies + 1, total_copies), updated_at = NOW()
		WHERE id = $1
	`, bookID)
	return err
}

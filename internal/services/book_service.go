package services

import (
	"context"
	"errors"

	"library-backend/internal/cache"
	"library-backend/internal/models"
)

type BookService struct {
	books BookStore
}

func NewBookService(books BookStore) *BookService {
	return &BookService{books: books}
}

func (s *BookService) Create(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	if req.Title == "" {
		return nil, errors.New("title is required")
	}
	if req.TotalCopies < 1 {
		return nil, errors.New("total_copies must be at least 1")
	}
	if req.BorrowPrice != nil && *req.BorrowPrice < 0 {
		return nil, errors.New("borrow_price must not be negative")
	}

	book := &models.Book{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		BorrowPrice:     req.BorrowPrice,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Get serves from the cache when possible; borrow and return invalidate it.
func (s *BookService) Get(ctx context.Context, id int) (*models.Book, error) {
	if book, ok := cache.GetCachedBook(ctx, id); ok {
		return book, nil
	}
	book, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cache.CacheBook(ctx, book)
	return book, nil
}

func (s *BookService) List(ctx context.Context) ([]*models.Book, error) {
	return s.books.List(ctx)
}

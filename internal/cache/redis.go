package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"library-backend/internal/config"
	"library-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const bookKeyFmt = "book:%d"
const bookTTL = 5 * time.Minute

var client *redis.Client

// Init initializes the Redis connection. The cache degrades gracefully: when
// Redis is unreachable every lookup is a miss and every write a no-op.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetCachedBook returns the cached book, if any.
func GetCachedBook(ctx context.Context, bookID int) (*models.Book, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, fmt.Sprintf(bookKeyFmt, bookID)).Bytes()
	if err != nil {
		return nil, false
	}
	var book models.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, false
	}
	return &book, true
}

// CacheBook stores a book for a short TTL.
func CacheBook(ctx context.Context, book *models.Book) {
	if client == nil || book == nil {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		return
	}
	client.Set(ctx, fmt.Sprintf(bookKeyFmt, book.ID), data, bookTTL)
}

// InvalidateBook drops the cached copy after availability changes.
func InvalidateBook(ctx context.Context, bookID int) {
	if client == nil {
		return
	}
	client.Del(ctx, fmt.Sprintf(bookKeyFmt, bookID))
}

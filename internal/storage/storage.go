// Package storage описывает контракты хранилища и общие ошибки бэкендов.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/models"
)

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

var (
	// ErrNotFound — запись не найдена (пользователь/цитата).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username).
	ErrAlreadyExists = errors.New("already exists")
)

// CredentialStore — узкий контракт учётных записей, достаточный для аутентификации.
type CredentialStore interface {
	// UserByUsername находит пользователя по нормализованному логину.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// CreateUser создаёт пользователя; ErrAlreadyExists при занятом логине.
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateRefreshToken перезаписывает хэш текущего refresh-токена.
	// Пустой hash завершает сессию.
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error
}

// QuoteStorage выполняет операции над цитатами.
type QuoteStorage interface {
	SaveQuote(ctx context.Context, quote *models.Quote) error
	QuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	DeleteQuote(ctx context.Context, id uuid.UUID) error
	// QuotesByOwner возвращает цитаты владельца, новые первыми.
	QuotesByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Quote, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	CredentialStore
	QuoteStorage
	// ClearExpiredRefreshTokens обнуляет просроченные сессии и возвращает их число.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

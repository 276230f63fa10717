package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/storage"
)

// CreateUser создает нового пользователя в БД.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.CreateUser"

	query := `
		INSERT INTO users(id, username, email, full_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByUsername находит пользователя по логину.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByUsername"

	query := `
		SELECT id, username, email, full_name, password_hash,
		       refresh_token_hash, refresh_expires_at, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	var (
		user      models.User
		refreshAt *time.Time
	)
	err := s.db.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.RefreshTokenHash,
		&refreshAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if refreshAt != nil {
		user.RefreshExpiresAt = refreshAt.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()

	return &user, nil
}

// UpdateRefreshToken перезаписывает хэш refresh-токена пользователя.
// Пустой hash завершает сессию и обнуляет срок.
func (s *Storage) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	const op = "storage.postgres.UpdateRefreshToken"

	var exp *time.Time
	if hash != "" && !expiresAt.IsZero() {
		exp = &expiresAt
	}

	query := `
		UPDATE users
		SET refresh_token_hash = $2, refresh_expires_at = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, userID, hash, exp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ClearExpiredRefreshTokens обнуляет сессии, срок которых наступил к now.
func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.ClearExpiredRefreshTokens"

	query := `
		UPDATE users
		SET refresh_token_hash = '', refresh_expires_at = NULL, updated_at = now()
		WHERE refresh_token_hash <> '' AND refresh_expires_at <= $1
	`

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

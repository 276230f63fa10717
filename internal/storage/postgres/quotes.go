package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/storage"
)

// SaveQuote сохраняет цитату.
func (s *Storage) SaveQuote(ctx context.Context, quote *models.Quote) error {
	const op = "storage.postgres.SaveQuote"

	query := `
		INSERT INTO quotes(id, owner_id, text, author, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, quote.ID, quote.OwnerID, quote.Text, quote.Author, quote.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			case pgerrcode.ForeignKeyViolation:
				// Владелец удалён.
				return fmt.Errorf("%s: owner: %w", op, storage.ErrNotFound)
			}
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// QuoteByID находит цитату по ID.
func (s *Storage) QuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	const op = "storage.postgres.QuoteByID"

	query := `
		SELECT id, owner_id, text, author, created_at
		FROM quotes
		WHERE id = $1
	`

	var q models.Quote
	err := s.db.QueryRow(ctx, query, id).Scan(&q.ID, &q.OwnerID, &q.Text, &q.Author, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q.CreatedAt = q.CreatedAt.UTC()
	return &q, nil
}

// DeleteQuote удаляет цитату.
func (s *Storage) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteQuote"

	tag, err := s.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// QuotesByOwner возвращает цитаты владельца, новые первыми.
func (s *Storage) QuotesByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Quote, error) {
	const op = "storage.postgres.QuotesByOwner"

	query := `
		SELECT id, owner_id, text, author, created_at
		FROM quotes
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	// LIMIT NULL — без ограничения.
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.db.Query(ctx, query, ownerID, lim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Quote, 0)
	for rows.Next() {
		var q models.Quote
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Text, &q.Author, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		q.CreatedAt = q.CreatedAt.UTC()
		out = append(out, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

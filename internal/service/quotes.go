package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/events"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/pkg/log"
	"github.com/pribylovaa/quotes-service/internal/storage"
)

const (
	defaultQuotesLimit = 20
	maxQuotesLimit     = 100
)

// AddQuote сохраняет цитату от имени аутентифицированного пользователя.
func (s *Service) AddQuote(ctx context.Context, p models.Principal, in models.QuoteInput) (*models.Quote, error) {
	const op = "service.quotes.AddQuote"

	text := strings.TrimSpace(in.Text)
	author := strings.TrimSpace(in.Author)

	if text == "" || utf8.RuneCountInString(text) > maxQuoteLength ||
		utf8.RuneCountInString(author) > maxAuthorLength {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuote)
	}

	q := &models.Quote{
		ID:        uuid.New(),
		OwnerID:   p.UserID,
		Text:      text,
		Author:    author,
		CreatedAt: s.now(),
	}

	if err := s.storage.SaveQuote(ctx, q); err != nil {
		return nil, storageErr(op, err)
	}

	log.From(ctx).Info("quote_added",
		slog.String("user_id", p.UserID.String()),
		slog.String("quote_id", q.ID.String()),
	)
	s.publish(ctx, events.Event{Type: events.QuoteAdded, UserID: p.UserID, QuoteID: q.ID.String()})

	return q, nil
}

// DeleteQuote удаляет цитату. Удалить можно только свою цитату.
func (s *Service) DeleteQuote(ctx context.Context, p models.Principal, id uuid.UUID) error {
	const op = "service.quotes.DeleteQuote"

	if id == uuid.Nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidQuote)
	}

	q, err := s.storage.QuoteByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrQuoteNotFound)
		}

		return storageErr(op, err)
	}

	if q.OwnerID != p.UserID {
		log.From(ctx).Warn("quote_delete_forbidden",
			slog.String("user_id", p.UserID.String()),
			slog.String("quote_id", id.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.storage.DeleteQuote(ctx, id); err != nil {
		// Цитату успели удалить параллельным запросом.
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrQuoteNotFound)
		}

		return storageErr(op, err)
	}

	log.From(ctx).Info("quote_deleted",
		slog.String("user_id", p.UserID.String()),
		slog.String("quote_id", id.String()),
	)
	s.publish(ctx, events.Event{Type: events.QuoteDeleted, UserID: p.UserID, QuoteID: id.String()})

	return nil
}

// ListQuotes возвращает цитаты пользователя, новые первыми.
// limit <= 0 означает значение по умолчанию; значения больше 100 урезаются.
func (s *Service) ListQuotes(ctx context.Context, p models.Principal, limit int) ([]models.Quote, error) {
	const op = "service.quotes.ListQuotes"

	list, err := s.storage.QuotesByOwner(ctx, p.UserID, clampLimit(limit))
	if err != nil {
		return nil, storageErr(op, err)
	}

	if list == nil {
		list = []models.Quote{}
	}

	return list, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultQuotesLimit
	case limit > maxQuotesLimit:
		return maxQuotesLimit
	default:
		return limit
	}
}

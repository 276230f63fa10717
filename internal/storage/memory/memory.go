// Package memory — хранилище в памяти процесса. Используется для локального
// запуска (DATABASE_URL=memory://) и в тестах верхних слоёв.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/storage"
)

// Storage реализует storage.Storage поверх map под RWMutex.
// Наружу отдаются копии, поэтому вызывающий не может изменить состояние в обход методов.
type Storage struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]models.User
	byName map[string]uuid.UUID
	quotes map[uuid.UUID]models.Quote
	closed bool
}

var _ storage.Storage = (*Storage)(nil)

var errClosed = errors.New("memory: storage closed")

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:  make(map[uuid.UUID]models.User),
		byName: make(map[string]uuid.UUID),
		quotes: make(map[uuid.UUID]models.Quote),
	}
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, storage.ErrNotFound
	}

	u := s.users[id]
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[user.Username]; ok {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.users[user.ID]; ok {
		return storage.ErrAlreadyExists
	}

	s.users[user.ID] = *user
	s.byName[user.Username] = user.ID
	return nil
}

func (s *Storage) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}

	u.RefreshTokenHash = hash
	u.RefreshExpiresAt = expiresAt
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, u := range s.users {
		if u.RefreshTokenHash == "" || u.RefreshExpiresAt.After(now) {
			continue
		}

		u.RefreshTokenHash = ""
		u.RefreshExpiresAt = time.Time{}
		s.users[id] = u
		n++
	}

	return n, nil
}

func (s *Storage) SaveQuote(ctx context.Context, quote *models.Quote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotes[quote.ID]; ok {
		return storage.ErrAlreadyExists
	}

	s.quotes[quote.ID] = *quote
	return nil
}

func (s *Storage) QuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &q, nil
}

func (s *Storage) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotes[id]; !ok {
		return storage.ErrNotFound
	}

	delete(s.quotes, id)
	return nil
}

func (s *Storage) QuotesByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.Quote, 0)
	for _, q := range s.quotes {
		if q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Storage) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Package events публикует доменные события сервиса (вход, сессии, цитаты)
// для внешних потребителей. Публикация необязательна: без брокеров
// используется Nop.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type — тип события.
type Type string

const (
	UserRegistered   Type = "user_registered"
	UserLoggedIn     Type = "user_logged_in"
	SessionRefreshed Type = "session_refreshed"
	SessionRevoked   Type = "session_revoked"
	QuoteAdded       Type = "quote_added"
	QuoteDeleted     Type = "quote_deleted"
)

// Event — полезная нагрузка сообщения. Секреты и хэши сюда не попадают.
type Event struct {
	Type       Type      `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	QuoteID    string    `json:"quote_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher — контракт публикации событий.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop ничего не публикует.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

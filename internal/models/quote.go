package models

import (
	"time"

	"github.com/google/uuid"
)

// Quote — цитата, принадлежащая пользователю.
type Quote struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Text      string
	Author    string
	CreatedAt time.Time
}

// QuoteInput — данные для создания цитаты.
type QuoteInput struct {
	Text   string
	Author string
}

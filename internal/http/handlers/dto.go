package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/models"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
	Email    string `json:"email" validate:"omitempty,max=254"`
	FullName string `json:"fullName" validate:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest — запасной канал для refresh-токена, если cookie недоступна.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type addQuoteRequest struct {
	Text   string `json:"text" validate:"required,max=1000"`
	Author string `json:"author" validate:"max=200"`
}

type deleteQuoteRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u models.PublicUser) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

type loginResponse struct {
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
	User            userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

type quoteResponse struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toQuoteResponse(q models.Quote) quoteResponse {
	return quoteResponse{
		ID:        q.ID,
		OwnerID:   q.OwnerID,
		Text:      q.Text,
		Author:    q.Author,
		CreatedAt: q.CreatedAt,
	}
}

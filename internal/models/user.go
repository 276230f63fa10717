// Package models содержит доменные сущности сервиса цитат.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись.
// Важно:
//   - Username — уникальный логин, хранится в нормализованном виде (trim + lower);
//   - PasswordHash — bcrypt-хэш, открытый пароль нигде не хранится;
//   - RefreshTokenHash — sha256 текущего refresh-токена (base64url), пустая строка
//     означает отсутствие активной сессии. У пользователя не больше одной сессии;
//   - RefreshExpiresAt — срок действия сохранённого refresh-токена (UTC).
type User struct {
	ID               uuid.UUID
	Username         string
	Email            string
	FullName         string
	PasswordHash     string
	RefreshTokenHash string
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Public возвращает публичное представление пользователя без секретов.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

// PublicUser — данные пользователя, которые можно отдавать наружу.
type PublicUser struct {
	ID        uuid.UUID
	Username  string
	Email     string
	FullName  string
	CreatedAt time.Time
}

// RegisterInput — входные данные регистрации. Email и FullName необязательны.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	FullName string
}

// Principal — аутентифицированный субъект запроса (из access-токена).
type Principal struct {
	UserID   uuid.UUID
	Username string
}

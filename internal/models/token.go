package models

import "time"

// TokenPair — токены, выдаваемые при входе и обновлении.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT для выпуска новых access-токенов;
//     пустой, если обновление не ротирует refresh-токен;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Session — результат успешного входа.
type Session struct {
	Tokens TokenPair
	User   PublicUser
}

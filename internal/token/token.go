// Package token выпускает и проверяет JWT сервиса.
//
// Access- и refresh-токены подписываются HS256 разными секретами и
// различаются claim'ом typ, поэтому один тип нельзя предъявить вместо другого.
// Refresh-токен несёт случайный jti: два токена, выпущенные в одну секунду,
// всё равно различаются.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/config"
)

// Kind — тип токена (claim typ).
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const leeway = 5 * time.Second

var (
	// ErrConfig — не задан секрет подписи или TTL некорректны.
	ErrConfig = errors.New("token: invalid configuration")
	// ErrInvalid — общий предок ошибок проверки.
	ErrInvalid = errors.New("token: invalid")
	// ErrExpired — срок действия истёк.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
	// ErrMalformed — подпись, формат, издатель, аудитория или тип не сходятся.
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
)

// Claims — набор claim'ов токенов сервиса. Subject — username.
type Claims struct {
	UserID string `json:"uid"`
	Kind   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены.
type Issuer struct {
	cfg config.AuthConfig
	now func() time.Time
}

// New проверяет конфигурацию и создаёт Issuer.
func New(cfg config.AuthConfig) (*Issuer, error) {
	const op = "token.New"

	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, fmt.Errorf("%s: %w: signing secret is empty", op, ErrConfig)
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("%s: %w: ttl must be positive", op, ErrConfig)
	}

	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("%s: %w: access ttl must be shorter than refresh ttl", op, ErrConfig)
	}

	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// WithClock подменяет источник времени (для тестов истечения).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// AccessTTL возвращает срок жизни access-токена.
func (i *Issuer) AccessTTL() time.Duration { return i.cfg.AccessTokenTTL }

// RefreshTTL возвращает срок жизни refresh-токена.
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTokenTTL }

// IssueAccess выпускает короткоживущий access-токен.
func (i *Issuer) IssueAccess(userID uuid.UUID, username string) (string, time.Time, error) {
	return i.issue(KindAccess, userID, username)
}

// IssueRefresh выпускает долгоживущий refresh-токен.
func (i *Issuer) IssueRefresh(userID uuid.UUID, username string) (string, time.Time, error) {
	return i.issue(KindRefresh, userID, username)
}

// VerifyAccess проверяет access-токен.
func (i *Issuer) VerifyAccess(tok string) (*Claims, error) {
	return i.verify(KindAccess, tok)
}

// VerifyRefresh проверяет refresh-токен.
func (i *Issuer) VerifyRefresh(tok string) (*Claims, error) {
	return i.verify(KindRefresh, tok)
}

func (i *Issuer) issue(kind Kind, userID uuid.UUID, username string) (string, time.Time, error) {
	const op = "token.issue"

	if i == nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrConfig)
	}

	secret, ttl := i.params(kind)
	if secret == "" {
		return "", time.Time{}, fmt.Errorf("%s: %w: %s secret is empty", op, ErrConfig, kind)
	}

	now := i.clock()
	exp := now.Add(ttl)

	claims := Claims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	// exp в токене хранится с точностью до секунды.
	return signed, claims.ExpiresAt.Time.UTC(), nil
}

func (i *Issuer) verify(kind Kind, tok string) (*Claims, error) {
	const op = "token.verify"

	if i == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrConfig)
	}

	secret, _ := i.params(kind)
	if secret == "" {
		return nil, fmt.Errorf("%s: %w: %s secret is empty", op, ErrConfig, kind)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	if len(i.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience...))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return claims, nil
}

func (i *Issuer) params(kind Kind) (string, time.Duration) {
	if kind == KindRefresh {
		return i.cfg.RefreshSecret, i.cfg.RefreshTokenTTL
	}

	return i.cfg.AccessSecret, i.cfg.AccessTokenTTL
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now().UTC()
	}

	return i.now().UTC()
}

// HashToken возвращает sha256 токена в base64url без паддинга.
// В хранилище попадает только хэш.
func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Equal сравнивает хэши за постоянное время.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// service содержит бизнес-логику сервиса цитат:
// регистрацию/вход пользователей, выпуск и проверку токенов, ведение
// единственной refresh-сессии пользователя и операции над цитатами.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования при условии, что хранилище потокобезопасно.
//   - Конкурентные входы одного пользователя разрешаются по принципу
//     last-write-wins: действительным остаётся последний сохранённый refresh.
//   - Ошибки возвращаются как сентинелы ниже и маппятся в HTTP-статусы
//     в пакете internal/errors (см. комментарии к переменным).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/quotes-service/internal/config"
	"github.com/pribylovaa/quotes-service/internal/events"
	"github.com/pribylovaa/quotes-service/internal/pkg/log"
	"github.com/pribylovaa/quotes-service/internal/storage"
	"github.com/pribylovaa/quotes-service/internal/token"
)

var (
	// ErrValidation — некорректные входные данные. HTTP 400.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidUsername — логин пустой, слишком длинный или содержит
	// недопустимые символы. HTTP 400.
	ErrInvalidUsername = fmt.Errorf("%w: invalid username", ErrValidation)

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = fmt.Errorf("%w: password is empty", ErrValidation)

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = fmt.Errorf("%w: password is too weak", ErrValidation)

	// ErrPasswordTooLong — bcrypt учитывает только первые 72 байта. HTTP 400.
	ErrPasswordTooLong = fmt.Errorf("%w: password is too long", ErrValidation)

	// ErrInvalidEmail — e-mail указан, но имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", ErrValidation)

	// ErrInvalidProfile — поля профиля превышают допустимую длину. HTTP 400.
	ErrInvalidProfile = fmt.Errorf("%w: invalid profile", ErrValidation)

	// ErrInvalidQuote — пустой или слишком длинный текст цитаты. HTTP 400.
	ErrInvalidQuote = fmt.Errorf("%w: invalid quote", ErrValidation)

	// ErrDuplicateUser — логин уже занят. HTTP 409.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrUserNotFound — пользователь не найден.
	// На входе транспорт отвечает так же, как на ErrInvalidCredentials (HTTP 401).
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials — неверный пароль. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTooManyAttempts — превышен лимит попыток входа. HTTP 429.
	ErrTooManyAttempts = errors.New("too many login attempts")

	// ErrMissingToken — токен не предъявлен. HTTP 401.
	ErrMissingToken = errors.New("token is missing")

	// ErrInvalidToken — общий предок ошибок проверки токена. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedToken — подпись/формат/тип токена некорректны. HTTP 401.
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrTokenMismatch — refresh-токен валиден, но не совпадает с сохранённым:
	// сессия отозвана новым входом, выходом или ротацией. HTTP 401.
	ErrTokenMismatch = fmt.Errorf("%w: refresh token mismatch", ErrInvalidToken)

	// ErrQuoteNotFound — цитата не найдена. HTTP 404.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrForbidden — операция над чужой цитатой. HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrConfig — сервис сконфигурирован некорректно (нет секретов). HTTP 500.
	ErrConfig = errors.New("service misconfigured")

	// ErrStorage — хранилище недоступно или вернуло неожиданную ошибку. HTTP 500.
	ErrStorage = errors.New("storage failure")
)

// LoginLimiter ограничивает число попыток входа.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Service описывает бизнес-логику сервиса.
type Service struct {
	storage storage.Storage
	tokens  *token.Issuer
	cfg     config.AuthConfig

	limiter   LoginLimiter     // может быть nil, если Redis не сконфигурирован
	publisher events.Publisher // никогда не nil

	dummyOnce sync.Once
	dummyHash string
	now       func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, tokens *token.Issuer, cfg config.AuthConfig) *Service {
	return &Service{
		storage:   storage,
		tokens:    tokens,
		cfg:       cfg,
		publisher: events.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLoginLimiter устанавливает лимитер попыток входа (опционально).
func (s *Service) SetLoginLimiter(l LoginLimiter) {
	s.limiter = l
}

// SetPublisher устанавливает публикатор событий (опционально).
func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}

	s.publisher = p
}

// storageErr помечает неожиданную ошибку хранилища как ErrStorage,
// сохраняя исходную причину в цепочке.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// tokenErr переводит ошибки пакета token в ошибки сервиса.
func tokenErr(op string, err error) error {
	switch {
	case errors.Is(err, token.ErrConfig):
		return fmt.Errorf("%s: %w", op, ErrConfig)
	case errors.Is(err, token.ErrExpired):
		return fmt.Errorf("%s: %w", op, ErrTokenExpired)
	default:
		return fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}
}

// publish отправляет событие; сбой публикации не влияет на результат операции.
func (s *Service) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = s.now()

	if err := s.publisher.Publish(ctx, e); err != nil {
		log.From(ctx).Warn("event_publish_failed",
			slog.String("type", string(e.Type)),
			log.Err(err),
		)
	}
}

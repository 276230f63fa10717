package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/events"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/pkg/log"
	"github.com/pribylovaa/quotes-service/internal/pkg/redact"
	"github.com/pribylovaa/quotes-service/internal/storage"
	"github.com/pribylovaa/quotes-service/internal/token"
)

// Register регистрирует нового пользователя без открытия сессии.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.PublicUser, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fullName, err := normalizeFullName(in.FullName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByUsername(ctx, username)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateUser)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageErr(op, err)
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		// Гонка двух регистраций: проверка выше прошла у обоих.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateUser)
		}

		return nil, storageErr(op, err)
	}

	lg.Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", redact.Username(username)),
	)
	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID})

	pub := user.Public()
	return &pub, nil
}

// Login проверяет пароль, выпускает пару токенов и сохраняет хэш refresh-токена,
// перезаписывая предыдущую сессию пользователя.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Session, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	name := strings.ToLower(strings.TrimSpace(username))
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	if password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, name)
		switch {
		case err != nil:
			// Лимитер недоступен — вход не блокируем.
			lg.Warn("login_limiter_failed", log.Err(err))
		case !ok:
			lg.Warn("login_rate_limited", slog.String("username", redact.Username(name)))
			return nil, fmt.Errorf("%s: %w", op, ErrTooManyAttempts)
		}
	}

	user, err := s.storage.UserByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.burnPasswordCheck(password)
			lg.Info("login_failed", slog.String("reason", "not_found"),
				slog.String("username", redact.Username(name)))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, storageErr(op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Info("login_failed", slog.String("reason", "bad_password"),
			slog.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, name); err != nil {
			lg.Warn("login_limiter_reset_failed", log.Err(err))
		}
	}

	lg.Info("user_logged_in", slog.String("user_id", user.ID.String()))
	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: user.ID})

	return &models.Session{Tokens: *pair, User: user.Public()}, nil
}

// Refresh выпускает новый access-токен по действующему refresh-токену.
// При cfg.RotateRefresh выпускается и сохраняется новый refresh-токен,
// а предъявленный перестаёт быть действительным.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	user, err := s.sessionUser(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pair *models.TokenPair
	if s.cfg.RotateRefresh {
		pair, err = s.issueSession(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Username)
		if err != nil {
			return nil, tokenErr(op, err)
		}

		pair = &models.TokenPair{
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: user.RefreshExpiresAt,
		}
	}

	log.From(ctx).Debug("session_refreshed",
		slog.String("user_id", user.ID.String()),
		slog.Bool("rotated", s.cfg.RotateRefresh),
	)
	s.publish(ctx, events.Event{Type: events.SessionRefreshed, UserID: user.ID})

	return pair, nil
}

// Logout завершает сессию, которой принадлежит refresh-токен.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	user, err := s.sessionUser(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateRefreshToken(ctx, user.ID, "", time.Time{}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return storageErr(op, err)
	}

	log.From(ctx).Info("session_revoked", slog.String("user_id", user.ID.String()))
	s.publish(ctx, events.Event{Type: events.SessionRevoked, UserID: user.ID})

	return nil
}

// Authenticate проверяет access-токен и возвращает субъекта запроса.
// Хранилище не используется: access-токен самодостаточен.
func (s *Service) Authenticate(_ context.Context, accessToken string) (*models.Principal, error) {
	const op = "service.auth.Authenticate"

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	if s.tokens == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrConfig)
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, tokenErr(op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	return &models.Principal{UserID: uid, Username: claims.Subject}, nil
}

// ClearExpiredSessions обнуляет сохранённые refresh-токены с истёкшим сроком.
func (s *Service) ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const op = "service.auth.ClearExpiredSessions"

	n, err := s.storage.ClearExpiredRefreshTokens(ctx, now)
	if err != nil {
		return 0, storageErr(op, err)
	}

	return n, nil
}

// sessionUser проверяет refresh-токен и его совпадение с сохранённым значением.
func (s *Service) sessionUser(ctx context.Context, raw string) (*models.User, error) {
	const op = "service.auth.sessionUser"

	lg := log.From(ctx)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}

	if s.tokens == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrConfig)
	}

	claims, err := s.tokens.VerifyRefresh(raw)
	if err != nil {
		return nil, tokenErr(op, err)
	}

	user, err := s.storage.UserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_user_not_found", slog.String("user_id", claims.UserID))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, storageErr(op, err)
	}

	// Логин мог быть освобождён и занят заново: uid в токене обязан совпасть.
	if user.ID.String() != claims.UserID ||
		user.RefreshTokenHash == "" ||
		!token.Equal(user.RefreshTokenHash, token.HashToken(raw)) {
		lg.Warn("refresh_token_mismatch", slog.String("user_id", claims.UserID))
		return nil, fmt.Errorf("%s: %w", op, ErrTokenMismatch)
	}

	return user, nil
}

// issueSession выпускает access+refresh и сохраняет хэш refresh-токена.
func (s *Service) issueSession(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.auth.issueSession"

	if s.tokens == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrConfig)
	}

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed", log.Err(err))
		return nil, tokenErr(op, err)
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, user.Username)
	if err != nil {
		log.From(ctx).Error("refresh_token_sign_failed", log.Err(err))
		return nil, tokenErr(op, err)
	}

	if err := s.storage.UpdateRefreshToken(ctx, user.ID, token.HashToken(refresh), refreshExp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, storageErr(op, err)
	}

	return &models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

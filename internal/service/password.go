package service

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// hashPassword хэширует пароль с помощью bcrypt; соль генерируется на каждый вызов.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.password.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

func (s *Service) bcryptCost() int {
	cost := s.cfg.BcryptCost
	if cost == 0 {
		return bcrypt.DefaultCost
	}

	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}

	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}

	return cost
}

// checkPassword сравнивает пароль с хэшем. Несовпадение — просто false.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// burnPasswordCheck выполняет сравнение с фиктивным хэшем, чтобы вход
// несуществующего пользователя занимал столько же времени, сколько неверный пароль.
func (s *Service) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), s.bcryptCost())
		if err == nil {
			s.dummyHash = string(h)
		}
	})

	if s.dummyHash != "" {
		_ = checkPassword(s.dummyHash, password)
	}
}

// validatePassword проверяет пароль при регистрации.
// Базовая политика: непустой и не длиннее 72 байт. При cfg.StrongPasswords
// дополнительно: длина >= 8, строчная, заглавная, цифра и спецсимвол.
func (s *Service) validatePassword(pw string) error {
	const op = "service.password.validatePassword"

	if pw == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}

	if !s.cfg.StrongPasswords {
		return nil
	}

	if utf8.RuneCountInString(pw) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}

package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	maxFullNameLength = 100
	maxQuoteLength    = 1000
	maxAuthorLength   = 200
)

// normalizeUsername обрезает пробелы, приводит к нижнему регистру и проверяет
// длину и алфавит: буквы, цифры и . _ - @ +.
func normalizeUsername(raw string) (string, error) {
	const op = "service.validate.normalizeUsername"

	name := strings.ToLower(strings.TrimSpace(raw))

	n := utf8.RuneCountInString(name)
	if n < minUsernameLength || n > maxUsernameLength {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._-@+", r) {
			continue
		}

		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	return name, nil
}

// normalizeEmail проверяет необязательный e-mail. Пустая строка допустима.
func normalizeEmail(raw string) (string, error) {
	const op = "service.validate.normalizeEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", nil
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// normalizeFullName обрезает пробелы и ограничивает длину имени.
func normalizeFullName(raw string) (string, error) {
	const op = "service.validate.normalizeFullName"

	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidProfile)
	}

	return name, nil
}

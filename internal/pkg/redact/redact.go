// Package redact маскирует персональные данные перед записью в лог.
package redact

import "strings"

const mask = "***"

// Username оставляет первые два символа логина.
// Логины короче трёх символов скрываются целиком.
func Username(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return mask
	}

	return string(r[:2]) + mask
}

// Email маскирует локальную часть адреса, домен сохраняется.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return mask
	}

	return Username(parts[0]) + "@" + parts[1]
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }

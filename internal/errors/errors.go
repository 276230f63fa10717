// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервиса (сентинелы internal/service),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - стабильный машиночитаемый code;
//   - краткое безопасное message без утечки деталей (op-цепочек, хэшей, причин из БД).
//
// Ответ об ошибке повторяет конверт успешного ответа: statusCode/message/success,
// плюс code, errors (ошибки по полям) и requestId.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/quotes-service/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// RequestIDHeader — заголовок с идентификатором запроса.
const RequestIDHeader = "X-Request-Id"

// FieldError — ошибка конкретного поля запроса.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse — тело ответа об ошибке.
type ErrorResponse struct {
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Code       string       `json:"code"`
	Errors     []FieldError `json:"errors"`
	Success    bool         `json:"success"`
	RequestID  string       `json:"requestId,omitempty"`
}

// ValidationError — ошибка разбора/валидации тела запроса на транспортном уровне.
// Является service.ErrValidation для errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return service.ErrValidation.Error()
	}
	return service.ErrValidation.Error() + ": " + e.Fields[0].Field + ": " + e.Fields[0].Message
}

func (e *ValidationError) Unwrap() error { return service.ErrValidation }

// Invalid — короткий конструктор ValidationError для одного поля.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// validationFields сопоставляет сентинелы валидации с полями запроса.
var validationFields = []struct {
	err   error
	field string
}{
	{service.ErrInvalidUsername, "username"},
	{service.ErrEmptyPassword, "password"},
	{service.ErrWeakPassword, "password"},
	{service.ErrPasswordTooLong, "password"},
	{service.ErrInvalidEmail, "email"},
	{service.ErrInvalidProfile, "fullName"},
	{service.ErrInvalidQuote, "text"},
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal, чтобы не послать
//     "200 OK" с телом ошибки и не маскировать баг;
//   - ErrUserNotFound и ErrInvalidCredentials неразличимы снаружи;
//   - неизвестные ошибки, ErrStorage, ErrConfig — 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	resp := ErrorResponse{
		StatusCode: status,
		Message:    msg,
		Code:       code,
		Errors:     []FieldError{},
		Success:    false,
	}

	if status == http.StatusBadRequest {
		resp.Errors = fieldErrors(err)
	}

	return status, resp
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус/тело и добавляет requestId из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get(RequestIDHeader); rid != "" {
		resp.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case stderrors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation_failed", validationMessage(err)
	case stderrors.Is(err, service.ErrDuplicateUser):
		return http.StatusConflict, "user_exists", "username is already taken"
	case stderrors.Is(err, service.ErrUserNotFound), stderrors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid username or password"
	case stderrors.Is(err, service.ErrMissingToken):
		return http.StatusUnauthorized, "missing_token", "authentication token is missing"
	case stderrors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token has expired"
	case stderrors.Is(err, service.ErrTokenMismatch):
		return http.StatusUnauthorized, "session_revoked", "session is no longer valid"
	case stderrors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "invalid token"
	case stderrors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden", "forbidden"
	case stderrors.Is(err, service.ErrQuoteNotFound):
		return http.StatusNotFound, "not_found", "quote not found"
	case stderrors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_attempts", "too many login attempts, try again later"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// validationMessage возвращает текст сентинела без op-префиксов.
func validationMessage(err error) string {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return "validation failed"
	}

	for _, v := range validationFields {
		if stderrors.Is(err, v.err) {
			return v.err.Error()
		}
	}

	return service.ErrValidation.Error()
}

func fieldErrors(err error) []FieldError {
	var ve *ValidationError
	if stderrors.As(err, &ve) && len(ve.Fields) > 0 {
		return ve.Fields
	}

	for _, v := range validationFields {
		if stderrors.Is(err, v.err) {
			// Сообщение — часть сентинела после "validation failed: ".
			msg := v.err.Error()
			if p := service.ErrValidation.Error() + ": "; len(msg) > len(p) && msg[:len(p)] == p {
				msg = msg[len(p):]
			}
			return []FieldError{{Field: v.field, Message: msg}}
		}
	}

	return []FieldError{}
}

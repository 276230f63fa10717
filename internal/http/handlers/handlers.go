// Package handlers — HTTP-обработчики сервиса цитат.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/config"
	apierrors "github.com/pribylovaa/quotes-service/internal/errors"
	"github.com/pribylovaa/quotes-service/internal/models"
)

// Service — операции бизнес-логики, используемые обработчиками.
type Service interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	AddQuote(ctx context.Context, p models.Principal, in models.QuoteInput) (*models.Quote, error)
	DeleteQuote(ctx context.Context, p models.Principal, id uuid.UUID) error
	ListQuotes(ctx context.Context, p models.Principal, limit int) ([]models.Quote, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc      Service
	cookie   config.CookieConfig
	validate *validator.Validate
}

// New создаёт обработчики.
func New(svc Service, cookie config.CookieConfig) *Handlers {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В ошибках валидации поле называется так же, как в JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handlers{svc: svc, cookie: cookie, validate: v}
}

// Response — конверт успешного ответа.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeOK(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{StatusCode: status, Data: data, Message: message, Success: true})
}

// decode читает тело запроса в dst и валидирует его.
// Поддерживаются JSON (неизвестные поля запрещены) и application/x-www-form-urlencoded.
// Пустое тело допустимо: обязательность полей проверяет валидатор.
func (h *Handlers) decode(r *http.Request, dst any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var err error
	if ct == "application/x-www-form-urlencoded" {
		err = decodeForm(r, dst)
	} else {
		err = decodeStrict(r, dst)
	}
	if err != nil {
		return err
	}

	return h.validateStruct(dst)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return bodyError(err)
	}

	if dec.More() {
		return apierrors.Invalid("body", "unexpected data after json object")
	}

	return nil
}

// decodeForm заполняет строковые поля dst значениями формы по имени json-тега.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return bodyError(err)
	}

	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" || f.Type.Kind() != reflect.String {
			continue
		}
		if val, ok := r.PostForm[name]; ok && len(val) > 0 {
			v.Field(i).SetString(val[0])
		}
	}

	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return apierrors.Invalid("body", "request body is too large")
	}

	var unknown *json.UnmarshalTypeError
	if stderrors.As(err, &unknown) {
		return apierrors.Invalid(unknown.Field, "invalid type")
	}

	if strings.HasPrefix(err.Error(), "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apierrors.Invalid(field, "unknown field")
	}

	return apierrors.Invalid("body", "malformed request body")
}

func (h *Handlers) validateStruct(dst any) error {
	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return apierrors.Invalid("body", "invalid request")
	}

	out := &apierrors.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, apierrors.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}

	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "uuid":
		return "must be a valid uuid"
	default:
		return "is invalid"
	}
}

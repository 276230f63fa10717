package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pribylovaa/quotes-service/internal/service"
	"github.com/stretchr/testify/require"
)

func TestToHTTP_Mapping(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("service.auth.Op: %w", err) }

	tcs := []struct {
		name       string
		in         error
		wantStatus int
		wantCode   string
	}{
		{"validation", wrap(service.ErrInvalidUsername), http.StatusBadRequest, "validation_failed"},
		{"transport_validation", Invalid("body", "malformed json"), http.StatusBadRequest, "validation_failed"},
		{"duplicate", wrap(service.ErrDuplicateUser), http.StatusConflict, "user_exists"},
		{"user_not_found", wrap(service.ErrUserNotFound), http.StatusUnauthorized, "invalid_credentials"},
		{"bad_password", wrap(service.ErrInvalidCredentials), http.StatusUnauthorized, "invalid_credentials"},
		{"missing_token", wrap(service.ErrMissingToken), http.StatusUnauthorized, "missing_token"},
		{"malformed_token", wrap(service.ErrMalformedToken), http.StatusUnauthorized, "invalid_token"},
		{"expired_token", wrap(service.ErrTokenExpired), http.StatusUnauthorized, "token_expired"},
		{"mismatch", wrap(service.ErrTokenMismatch), http.StatusUnauthorized, "session_revoked"},
		{"forbidden", wrap(service.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"quote_not_found", wrap(service.ErrQuoteNotFound), http.StatusNotFound, "not_found"},
		{"rate_limited", wrap(service.ErrTooManyAttempts), http.StatusTooManyRequests, "too_many_attempts"},
		{"canceled", wrap(context.Canceled), StatusClientClosedRequest, "canceled"},
		{"deadline", wrap(context.DeadlineExceeded), http.StatusGatewayTimeout, "deadline_exceeded"},
		{"storage", fmt.Errorf("op: %w: %w", service.ErrStorage, errors.New("pq: secret detail")), http.StatusInternalServerError, "internal"},
		{"config", wrap(service.ErrConfig), http.StatusInternalServerError, "internal"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			gotStatus, resp := ToHTTP(tc.in)
			require.Equal(t, tc.wantStatus, gotStatus)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			require.Equal(t, tc.wantCode, resp.Code)
			require.NotEmpty(t, resp.Message)
			require.False(t, resp.Success)
			require.NotContains(t, resp.Message, "service.auth")
			require.NotContains(t, resp.Message, "secret")
		})
	}
}

// TestToHTTP_NoEnumeration — неизвестный логин и неверный пароль неотличимы.
func TestToHTTP_NoEnumeration(t *testing.T) {
	s1, r1 := ToHTTP(service.ErrUserNotFound)
	s2, r2 := ToHTTP(service.ErrInvalidCredentials)
	require.Equal(t, s1, s2)
	require.Equal(t, r1, r2)
}

func TestToHTTP_NilError_Returns500Internal(t *testing.T) {
	gotStatus, resp := ToHTTP(nil)
	require.Equal(t, http.StatusInternalServerError, gotStatus)
	require.Equal(t, "internal", resp.Code)
	require.Equal(t, "internal error", resp.Message)
}

func TestToHTTP_FieldErrors(t *testing.T) {
	_, resp := ToHTTP(fmt.Errorf("op: %w", service.ErrEmptyPassword))
	require.Equal(t, []FieldError{{Field: "password", Message: "password is empty"}}, resp.Errors)
	require.Equal(t, "validation failed: password is empty", resp.Message)

	_, resp = ToHTTP(&ValidationError{Fields: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}})
	require.Len(t, resp.Errors, 2)

	_, resp = ToHTTP(service.ErrForbidden)
	require.NotNil(t, resp.Errors)
	require.Empty(t, resp.Errors)
}

func TestWriteError_Envelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.Header.Set(RequestIDHeader, "rid-1")
	w := httptest.NewRecorder()

	WriteError(w, r, service.ErrInvalidCredentials)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, float64(401), body["statusCode"])
	require.Equal(t, "invalid_credentials", body["code"])
	require.Equal(t, false, body["success"])
	require.Equal(t, "rid-1", body["requestId"])
	require.Equal(t, []any{}, body["errors"])
}

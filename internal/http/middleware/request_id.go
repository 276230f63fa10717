package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	apierrors "github.com/pribylovaa/quotes-service/internal/errors"
)

type requestIDKey struct{}

// maxRequestIDLen ограничивает длину входящего X-Request-Id.
const maxRequestIDLen = 128

// RequestID обеспечивает наличие X-Request-Id:
//  1. читает заголовок X-Request-Id, если он есть и разумной длины;
//  2. иначе генерирует случайный hex id (32 символа);
//  3. кладёт id в заголовки ответа и запроса (его читает errors.WriteError) и в контекст.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(apierrors.RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = genID()
				r.Header.Set(apierrors.RequestIDHeader, id)
			}
			w.Header().Set(apierrors.RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFrom возвращает идентификатор запроса из контекста.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

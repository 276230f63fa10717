package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/quotes-service/internal/errors"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/pkg/log"
	"github.com/pribylovaa/quotes-service/internal/service"
)

// Authenticator проверяет access-токен.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Principal, error)
}

type principalKey struct{}

// RequireAuth извлекает Bearer-токен из Authorization, проверяет его и кладёт
// субъекта в контекст. Без валидного токена отвечает 401.
func RequireAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.WriteError(w, r, service.ErrMissingToken)
				return
			}

			p, err := a.Authenticate(r.Context(), tok)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, *p)
			ctx = log.With(ctx, "user_id", p.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom возвращает субъекта, положенного RequireAuth.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

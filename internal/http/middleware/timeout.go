package middleware

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/quotes-service/internal/pkg/log"
)

// Timeout задаёт бюджет timeouts.service на обработку запроса: bcrypt, токены
// и хранилище работают в этом контексте. Дедлайн клиента короче бюджета
// остаётся в силе. Хэндлер, получивший context.DeadlineExceeded, отвечает
// через errors.WriteError кодом 504 deadline_exceeded.
//
// Запрос, вышедший за бюджет, логируется событием request_budget_exceeded.
// budget <= 0 отключает мидлвар.
func Timeout(budget time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if budget <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), budget)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.From(ctx).Warn("request_budget_exceeded",
					slog.String("path", r.URL.Path),
					slog.Duration("budget", budget),
				)
			}
		})
	}
}

// Package log переносит request-scoped *slog.Logger через context
// и задаёт единый вид атрибута ошибки.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into кладёт логгер в контекст. nil-логгер не сохраняется.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер запроса; без него — slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// With дополняет логгер из контекста атрибутами и кладёт результат обратно.
// Так мидлвары добавляют request_id/user_id, не зная друг о друге.
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}

// Err — атрибут "err" с текстом ошибки. Для nil возвращает пустой атрибут,
// который slog не выводит.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("err", err.Error())
}

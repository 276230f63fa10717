package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому t.Parallel() не используется.

func silent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withDefault(t *testing.T) *slog.Logger {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := silent()
	slog.SetDefault(def)
	return def
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	def := withDefault(t)

	var nilLogger *slog.Logger
	ctxs := map[string]context.Context{
		"empty":      context.Background(),
		"wrong_type": context.WithValue(context.Background(), ctxKey{}, "not-a-logger"),
		"nil_logger": context.WithValue(context.Background(), ctxKey{}, nilLogger),
	}

	for name, ctx := range ctxs {
		require.Same(t, def, From(ctx), name)
	}
}

func TestInto_RoundTripAndShadowing(t *testing.T) {
	withDefault(t)

	parentL, childL := silent(), silent()
	parent := Into(context.Background(), parentL)
	child := Into(parent, childL)

	require.Same(t, parentL, From(parent))
	require.Same(t, childL, From(child))
}

// TestInto_KeepsValuesAndDeadline — Into не теряет прочие значения и дедлайн.
func TestInto_KeepsValuesAndDeadline(t *testing.T) {
	type key struct{}

	base, cancel := context.WithTimeout(context.WithValue(context.Background(), key{}, "v"), time.Second)
	defer cancel()

	ctx := Into(base, silent())
	require.Equal(t, "v", ctx.Value(key{}))

	want, _ := base.Deadline()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	require.Equal(t, want, got)

	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

// TestWith_AddsAttrs — With дополняет логгер из контекста, не трогая родителя.
func TestWith_AddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	parent := Into(context.Background(), base)
	child := With(parent, "user_id", "u-1")

	From(child).Info("evt")
	require.Contains(t, buf.String(), "user_id=u-1")

	buf.Reset()
	From(parent).Info("evt")
	require.NotContains(t, buf.String(), "user_id")
}

func TestInto_NilLoggerKeepsParent(t *testing.T) {
	withDefault(t)

	l := silent()
	ctx := Into(context.Background(), l)
	require.Same(t, l, From(Into(ctx, nil)))
}

func TestErr(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	l.Info("evt", Err(io.ErrUnexpectedEOF))
	require.Contains(t, buf.String(), `err="unexpected EOF"`)

	buf.Reset()
	l.Info("evt", Err(nil))
	require.NotContains(t, buf.String(), "err=")
}

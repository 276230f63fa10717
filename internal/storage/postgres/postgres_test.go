package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты пакета postgres:
// - поднимают PostgreSQL через testcontainers-go (postgres:16-alpine);
// - применяют встроенные миграции через Migrate;
// - проверяют уникальность логина, обновление/очистку сессий и операции над цитатами.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -count=1

// startPostgres поднимает временный PostgreSQL, применяет миграции и возвращает хранилище.
// Без GO_TEST_INTEGRATION тест пропускается.
func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	// Порт может открыться раньше, чем сервер примет подключения.
	require.Eventually(t, func() bool {
		return Migrate(ctx, dsn) == nil
	}, 30*time.Second, 500*time.Millisecond)

	// Повторный прогон миграций — no-op.
	require.NoError(t, Migrate(ctx, dsn))

	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	return st
}

func newUser(name string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Username:     name,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestIntegration_Postgres(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		u := newUser("alice")
		u.Email = "alice@example.com"
		require.NoError(t, st.CreateUser(ctx, u))
		require.ErrorIs(t, st.CreateUser(ctx, newUser("alice")), storage.ErrAlreadyExists)

		got, err := st.UserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, "alice@example.com", got.Email)
		require.True(t, got.RefreshExpiresAt.IsZero())

		_, err = st.UserByUsername(ctx, "ghost")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("refresh_tokens", func(t *testing.T) {
		live, dead := newUser("live"), newUser("dead")
		require.NoError(t, st.CreateUser(ctx, live))
		require.NoError(t, st.CreateUser(ctx, dead))

		now := time.Now().UTC()
		require.NoError(t, st.UpdateRefreshToken(ctx, live.ID, "h1", now.Add(time.Hour)))
		require.NoError(t, st.UpdateRefreshToken(ctx, dead.ID, "h2", now.Add(-time.Minute)))
		require.ErrorIs(t, st.UpdateRefreshToken(ctx, uuid.New(), "h", now), storage.ErrNotFound)

		got, err := st.UserByUsername(ctx, "live")
		require.NoError(t, err)
		require.Equal(t, "h1", got.RefreshTokenHash)
		require.WithinDuration(t, now.Add(time.Hour), got.RefreshExpiresAt, time.Millisecond)

		n, err := st.ClearExpiredRefreshTokens(ctx, now)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		got, err = st.UserByUsername(ctx, "dead")
		require.NoError(t, err)
		require.Empty(t, got.RefreshTokenHash)

		require.NoError(t, st.UpdateRefreshToken(ctx, live.ID, "", time.Time{}))
		got, err = st.UserByUsername(ctx, "live")
		require.NoError(t, err)
		require.Empty(t, got.RefreshTokenHash)
		require.True(t, got.RefreshExpiresAt.IsZero())
	})

	t.Run("quotes", func(t *testing.T) {
		owner := newUser("owner")
		require.NoError(t, st.CreateUser(ctx, owner))

		base := time.Now().UTC().Truncate(time.Microsecond)
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			q := &models.Quote{ID: uuid.New(), OwnerID: owner.ID, Text: fmt.Sprintf("q%d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, st.SaveQuote(ctx, q))
			ids = append(ids, q.ID)
		}

		err := st.SaveQuote(ctx, &models.Quote{ID: uuid.New(), OwnerID: uuid.New(), Text: "orphan", CreatedAt: base})
		require.ErrorIs(t, err, storage.ErrNotFound)

		list, err := st.QuotesByOwner(ctx, owner.ID, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, ids[2], list[0].ID)

		got, err := st.QuoteByID(ctx, ids[0])
		require.NoError(t, err)
		require.Equal(t, "q0", got.Text)

		require.NoError(t, st.DeleteQuote(ctx, ids[0]))
		require.ErrorIs(t, st.DeleteQuote(ctx, ids[0]), storage.ErrNotFound)
		_, err = st.QuoteByID(ctx, ids[0])
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("canceled_context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := st.UserByUsername(cctx, "alice")
		require.ErrorIs(t, err, context.Canceled)
	})
}

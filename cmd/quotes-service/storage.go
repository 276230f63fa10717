package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pribylovaa/quotes-service/internal/storage"
	"github.com/pribylovaa/quotes-service/internal/storage/memory"
	"github.com/pribylovaa/quotes-service/internal/storage/mongo"
	"github.com/pribylovaa/quotes-service/internal/storage/postgres"
)

// backend определяет бэкенд хранилища по схеме DATABASE_URL.
func backend(dbURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(dbURL))
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return "mongo", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "memory":
		return "memory", nil
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
}

// openStorage подключает хранилище; для postgres предварительно накатывает миграции.
func openStorage(ctx context.Context, dbURL string, log *slog.Logger) (storage.Storage, error) {
	kind, err := backend(dbURL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "mongo":
		m, err := mongo.New(ctx, dbURL)
		if err != nil {
			return nil, err
		}
		log.Info("mongo_connected")
		return m, nil

	case "postgres":
		if err := postgres.Migrate(ctx, dbURL); err != nil {
			return nil, err
		}
		log.Info("postgres_migrated")

		p, err := postgres.New(ctx, dbURL)
		if err != nil {
			return nil, err
		}
		log.Info("postgres_connected")
		return p, nil

	default:
		log.Warn("memory_storage_in_use", slog.String("note", "data is lost on restart"))
		return memory.New(), nil
	}
}

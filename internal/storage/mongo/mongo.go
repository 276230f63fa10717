// Package mongo — основной бэкенд хранилища на MongoDB.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/quotes-service/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection  = "users"
	quotesCollection = "quotes"
	defaultDBName    = "quotes"
)

// Mongo — тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	users  *mongodriver.Collection
	quotes *mongodriver.Collection
}

var _ storage.Storage = (*Mongo)(nil)

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
func New(ctx context.Context, uri string) (*Mongo, error) {
	const op = "storage.mongo.New"

	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%s: empty database url", op)
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := cli.Database(databaseFromURI(uri))

	m := &Mongo{
		client: cli,
		db:     db,
		users:  db.Collection(usersCollection),
		quotes: db.Collection(quotesCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes создаёт индексы:
// - уникальный username — гарантия единственности логина при гонке регистраций;
// - refresh_expires_at — выборка просроченных сессий janitor'ом;
// - owner_id + created_at(desc) — список цитат пользователя.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "refresh_expires_at", Value: 1}},
			Options: options.Index().SetName("refresh_expires_at").SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure users indexes: %w", err)
	}

	_, err = m.quotes.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("owner_created_desc"),
	})
	if err != nil {
		return fmt.Errorf("ensure quotes indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из пути URI.
// Если имя отсутствует, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// toMS приводит время к точности BSON DateTime.
func toMS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

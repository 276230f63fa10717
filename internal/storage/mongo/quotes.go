package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/quotes-service/internal/models"
	"github.com/pribylovaa/quotes-service/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type quoteDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Text      string    `bson:"text"`
	Author    string    `bson:"author,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d quoteDoc) model() (*models.Quote, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad quote id %q: %w", d.ID, err)
	}

	owner, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("bad owner id %q: %w", d.OwnerID, err)
	}

	return &models.Quote{
		ID:        id,
		OwnerID:   owner,
		Text:      d.Text,
		Author:    d.Author,
		CreatedAt: d.CreatedAt.UTC(),
	}, nil
}

// SaveQuote вставляет цитату.
func (m *Mongo) SaveQuote(ctx context.Context, quote *models.Quote) error {
	const op = "storage.mongo.SaveQuote"

	doc := quoteDoc{
		ID:        quote.ID.String(),
		OwnerID:   quote.OwnerID.String(),
		Text:      quote.Text,
		Author:    quote.Author,
		CreatedAt: toMS(quote.CreatedAt),
	}

	if _, err := m.quotes.InsertOne(ctx, doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// QuoteByID возвращает цитату; при отсутствии — storage.ErrNotFound.
func (m *Mongo) QuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	const op = "storage.mongo.QuoteByID"

	var doc quoteDoc
	if err := m.quotes.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return q, nil
}

// DeleteQuote удаляет цитату физически.
func (m *Mongo) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	const op = "storage.mongo.DeleteQuote"

	res, err := m.quotes.DeleteOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// QuotesByOwner возвращает до limit цитат владельца, новые первыми.
func (m *Mongo) QuotesByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Quote, error) {
	const op = "storage.mongo.QuotesByOwner"

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := m.quotes.Find(ctx, bson.D{{Key: "owner_id", Value: ownerID.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]models.Quote, 0)
	for cur.Next(ctx) {
		var doc quoteDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		q, err := doc.model()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *q)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

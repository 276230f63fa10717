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
)

// userDoc — представление пользователя в коллекции users.
// _id хранится строкой UUID, чтобы не зависеть от бинарных подтипов BSON.
type userDoc struct {
	ID               string    `bson:"_id"`
	Username         string    `bson:"username"`
	Email            string    `bson:"email,omitempty"`
	FullName         string    `bson:"full_name,omitempty"`
	PasswordHash     string    `bson:"password_hash"`
	RefreshTokenHash string    `bson:"refresh_token_hash"`
	RefreshExpiresAt time.Time `bson:"refresh_expires_at,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toUserDoc(u *models.User) userDoc {
	d := userDoc{
		ID:               u.ID.String(),
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.FullName,
		PasswordHash:     u.PasswordHash,
		RefreshTokenHash: u.RefreshTokenHash,
		CreatedAt:        toMS(u.CreatedAt),
		UpdatedAt:        toMS(u.UpdatedAt),
	}
	if !u.RefreshExpiresAt.IsZero() {
		d.RefreshExpiresAt = toMS(u.RefreshExpiresAt)
	}
	return d
}

func (d userDoc) model() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", d.ID, err)
	}

	u := &models.User{
		ID:               id,
		Username:         d.Username,
		Email:            d.Email,
		FullName:         d.FullName,
		PasswordHash:     d.PasswordHash,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if !d.RefreshExpiresAt.IsZero() {
		u.RefreshExpiresAt = d.RefreshExpiresAt.UTC()
	}
	return u, nil
}

// CreateUser вставляет пользователя. Занятый логин — storage.ErrAlreadyExists.
func (m *Mongo) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.CreateUser"

	if _, err := m.users.InsertOne(ctx, toUserDoc(user)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByUsername находит пользователя по логину.
func (m *Mongo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.mongo.UserByUsername"

	var doc userDoc
	if err := m.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateRefreshToken перезаписывает хэш refresh-токена одним атомарным $set.
// Пустой hash снимает и срок действия.
func (m *Mongo) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	const op = "storage.mongo.UpdateRefreshToken"

	set := bson.D{
		{Key: "refresh_token_hash", Value: hash},
		{Key: "updated_at", Value: toMS(time.Now())},
	}

	var update bson.D
	if hash == "" || expiresAt.IsZero() {
		update = bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "refresh_expires_at", Value: ""}}},
		}
	} else {
		set = append(set, bson.E{Key: "refresh_expires_at", Value: toMS(expiresAt)})
		update = bson.D{{Key: "$set", Value: set}}
	}

	res, err := m.users.UpdateByID(ctx, userID.String(), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ClearExpiredRefreshTokens снимает сессии, срок которых наступил к now.
func (m *Mongo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.mongo.ClearExpiredRefreshTokens"

	filter := bson.D{
		{Key: "refresh_token_hash", Value: bson.D{{Key: "$ne", Value: ""}}},
		{Key: "refresh_expires_at", Value: bson.D{{Key: "$lte", Value: toMS(now)}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "refresh_token_hash", Value: ""},
			{Key: "updated_at", Value: toMS(time.Now())},
		}},
		{Key: "$unset", Value: bson.D{{Key: "refresh_expires_at", Value: ""}}},
	}

	res, err := m.users.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.ModifiedCount, nil
}

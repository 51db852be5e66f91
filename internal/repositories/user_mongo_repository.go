package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"farmmarket/internal/models"
)

const usersCollection = "users"

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository создаёт репозиторий и уникальный индекс по phone.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (UserRepository, error) {
	coll := db.Collection(usersCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_phone"),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure users phone index: %w", err)
	}
	return &mongoUserRepository{coll: coll}, nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *mongoUserRepository) UpdateLogin(ctx context.Context, phone, name string, at time.Time) (*models.User, error) {
	set := bson.M{"last_login_at": at}
	if name != "" {
		set["name"] = name
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"phone": phone}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user login: %w", err)
	}
	return &u, nil
}

func (r *mongoUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

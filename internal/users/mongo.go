package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	UserType     Type      `bson:"user_type"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d userDoc) user() User { return User(d) }

// MongoStore relies on the unique email index from mongox.UserIndexes.
type MongoStore struct{ C *mongo.Collection }

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{C: db.Collection("users")}
}

func (s *MongoStore) Create(ctx context.Context, u User) (User, error) {
	if _, err := s.C.InsertOne(ctx, userDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, apperr.ErrConflict
		}
		return User{}, apperr.Unavailable("user-store", err)
	}
	return u, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (User, error) {
	var d userDoc
	err := s.C.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, apperr.ErrNotFound
	}
	if err != nil {
		return User{}, apperr.Unavailable("user-store", err)
	}
	return d.user(), nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) Update(ctx context.Context, id string, upd Update) (User, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if upd.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *upd.Username})
	}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *upd.Email})
	}
	var d userDoc
	err := s.C.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return User{}, apperr.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return User{}, apperr.ErrConflict
	case err != nil:
		return User{}, apperr.Unavailable("user-store", err)
	}
	return d.user(), nil
}

func (s *MongoStore) ListByType(ctx context.Context, t Type) ([]User, error) {
	cur, err := s.C.Find(ctx, bson.D{{Key: "user_type", Value: t}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, apperr.Unavailable("user-store", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Unavailable("user-store", err)
	}
	out := make([]User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.user())
	}
	return out, nil
}

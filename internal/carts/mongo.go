package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
)

type lineDoc struct {
	ProductID string          `bson:"product_id"`
	Quantity  int             `bson:"quantity"`
	Price     bson.Decimal128 `bson:"price"`
	Name      string          `bson:"name"`
}

type cartDoc struct {
	UserID      string          `bson:"_id"`
	Items       []lineDoc       `bson:"items"`
	TotalAmount bson.Decimal128 `bson:"total_amount"`
	Version     int64           `bson:"version"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type MongoStore struct{ C *mongo.Collection }

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{C: db.Collection("carts")}
}

func (s *MongoStore) Get(ctx context.Context, userID string) (Cart, error) {
	var doc cartDoc
	err := s.C.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Empty(userID), nil
	}
	if err != nil {
		return Cart{}, apperr.Unavailable("cart-store", err)
	}
	c := Empty(userID)
	c.Version, c.UpdatedAt = doc.Version, doc.UpdatedAt
	for _, l := range doc.Items {
		p, err := decimal.NewFromString(l.Price.String())
		if err != nil {
			return Cart{}, fmt.Errorf("cart %s price: %w", userID, err)
		}
		c.Items = append(c.Items, Line{ProductID: l.ProductID, Quantity: l.Quantity, Price: p, Name: l.Name})
	}
	c.recompute()
	return c, nil
}

func (s *MongoStore) Save(ctx context.Context, c Cart) (Cart, error) {
	doc := cartDoc{UserID: c.UserID, Items: []lineDoc{}, Version: c.Version + 1, UpdatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	c.recompute()
	total, err := mongox.Decimal(c.TotalAmount.String())
	if err != nil {
		return Cart{}, err
	}
	doc.TotalAmount = total
	for _, l := range c.Items {
		p, err := mongox.Decimal(l.Price.String())
		if err != nil {
			return Cart{}, err
		}
		doc.Items = append(doc.Items, lineDoc{ProductID: l.ProductID, Quantity: l.Quantity, Price: p, Name: l.Name})
	}

	if c.Version == 0 {
		if _, err := s.C.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return Cart{}, apperr.ErrConflict
			}
			return Cart{}, apperr.Unavailable("cart-store", err)
		}
	} else {
		res, err := s.C.ReplaceOne(ctx, bson.D{{Key: "_id", Value: c.UserID}, {Key: "version", Value: c.Version}}, doc)
		if err != nil {
			return Cart{}, apperr.Unavailable("cart-store", err)
		}
		if res.MatchedCount == 0 {
			return Cart{}, apperr.ErrConflict
		}
	}
	c.Version, c.UpdatedAt = doc.Version, doc.UpdatedAt
	return c, nil
}

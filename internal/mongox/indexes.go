package mongox

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var (
	OrderIndexes = []IndexConfig{
		{
			CollectionName: "orders",
			IndexModel: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("idx_user_orders"),
			},
		},
		{
			CollectionName: "orders",
			IndexModel: mongo.IndexModel{
				Keys:    bson.D{{Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_status"),
			},
		},
	}

	// carts are keyed by user id in _id, nothing else is queried
	CartIndexes = []IndexConfig{}

	UserIndexes = []IndexConfig{
		{
			CollectionName: "users",
			IndexModel: mongo.IndexModel{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("idx_user_email_unique"),
			},
		},
		{
			CollectionName: "users",
			IndexModel: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_type", Value: 1}},
				Options: options.Index().SetName("idx_user_type"),
			},
		},
	}
)

func EnsureIndexes(ctx context.Context, db *mongo.Database, indexes []IndexConfig) error {
	for _, idx := range indexes {
		if _, err := db.Collection(idx.CollectionName).Indexes().CreateOne(ctx, idx.IndexModel); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.CollectionName, err)
		}
	}
	return nil
}

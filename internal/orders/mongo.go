package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
)

type lineDoc struct {
	ProductID string          `bson:"product_id"`
	Quantity  int             `bson:"quantity"`
	Price     bson.Decimal128 `bson:"price"`
	Name      string          `bson:"name"`
}

type statusChangeDoc struct {
	From Status    `bson:"from,omitempty"`
	To   Status    `bson:"to"`
	At   time.Time `bson:"at"`
}

type orderDoc struct {
	ID          string            `bson:"_id"`
	UserID      string            `bson:"user_id"`
	Items       []lineDoc         `bson:"items"`
	TotalAmount bson.Decimal128   `bson:"total_amount"`
	Status      Status            `bson:"status"`
	History     []statusChangeDoc `bson:"history"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toDoc(o Order) (orderDoc, error) {
	total, err := mongox.Decimal(o.TotalAmount.String())
	if err != nil {
		return orderDoc{}, fmt.Errorf("total: %w", err)
	}
	d := orderDoc{
		ID: o.ID, UserID: o.UserID, TotalAmount: total, Status: o.Status,
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
	for _, l := range o.Items {
		p, err := mongox.Decimal(l.Price.String())
		if err != nil {
			return orderDoc{}, fmt.Errorf("price of %s: %w", l.ProductID, err)
		}
		d.Items = append(d.Items, lineDoc{ProductID: l.ProductID, Quantity: l.Quantity, Price: p, Name: l.Name})
	}
	for _, h := range o.History {
		d.History = append(d.History, statusChangeDoc(h))
	}
	return d, nil
}

func fromDoc(d orderDoc) (Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount.String())
	if err != nil {
		return Order{}, fmt.Errorf("order %s total: %w", d.ID, err)
	}
	o := Order{
		ID: d.ID, UserID: d.UserID, TotalAmount: total, Status: d.Status,
		Items: []Line{}, History: []StatusChange{},
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	for _, l := range d.Items {
		p, err := decimal.NewFromString(l.Price.String())
		if err != nil {
			return Order{}, fmt.Errorf("order %s price: %w", d.ID, err)
		}
		o.Items = append(o.Items, Line{ProductID: l.ProductID, Quantity: l.Quantity, Price: p, Name: l.Name})
	}
	for _, h := range d.History {
		o.History = append(o.History, StatusChange(h))
	}
	return o, nil
}

type MongoStore struct{ C *mongo.Collection }

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{C: db.Collection("orders")}
}

func (s *MongoStore) Create(ctx context.Context, orderID, userID string, lines []Line, total decimal.Decimal) (Order, error) {
	if err := Validate(userID, lines, total); err != nil {
		return Order{}, err
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := Order{
		ID: orderID, UserID: userID, Items: append([]Line(nil), lines...),
		TotalAmount: total, Status: StatusPending,
		History:   []StatusChange{{To: StatusPending, At: now}},
		CreatedAt: now, UpdatedAt: now,
	}
	doc, err := toDoc(o)
	if err != nil {
		return Order{}, err
	}
	if _, err := s.C.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Order{}, apperr.ErrConflict
		}
		return Order{}, apperr.Unavailable("order-store", err)
	}
	return o, nil
}

// SetStatus writes only if the status is still the one the transition was
// checked against, so concurrent updates cannot both apply.
func (s *MongoStore) SetStatus(ctx context.Context, orderID string, to Status) (Order, error) {
	cur, err := s.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(cur.Status, to) {
		return Order{}, apperr.ErrInvalidTransition
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.D{{Key: "_id", Value: orderID}, {Key: "status", Value: cur.Status}}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: to}, {Key: "updated_at", Value: now}}},
		{Key: "$push", Value: bson.D{{Key: "history", Value: statusChangeDoc{From: cur.Status, To: to, At: now}}}},
	}
	var doc orderDoc
	err = s.C.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// someone else moved it between the read and the write
		return Order{}, apperr.ErrInvalidTransition
	}
	if err != nil {
		return Order{}, apperr.Unavailable("order-store", err)
	}
	return fromDoc(doc)
}

func (s *MongoStore) GetByID(ctx context.Context, orderID string) (Order, error) {
	var doc orderDoc
	err := s.C.FindOne(ctx, bson.D{{Key: "_id", Value: orderID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Order{}, apperr.ErrNotFound
	}
	if err != nil {
		return Order{}, apperr.Unavailable("order-store", err)
	}
	return fromDoc(doc)
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	cur, err := s.C.Find(ctx, bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, apperr.Unavailable("order-store", err)
	}
	defer cur.Close(ctx)

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperr.Unavailable("order-store", err)
	}
	out := make([]Order, 0, len(docs))
	for _, d := range docs {
		o, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

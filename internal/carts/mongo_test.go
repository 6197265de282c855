package carts

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
)

func TestMongoStoreVersionConflict(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongox.Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("carts_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	s := NewMongoStore(db)

	c, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, c.Add(Line{ProductID: "A", Quantity: 2, Price: decimal.RequireFromString("10.50"), Name: "Keyboard"}))
	saved, err := s.Save(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	// a second writer still holding version 0 loses
	_, err = s.Save(ctx, c)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("21.00")))

	stale := got
	got.Clear()
	_, err = s.Save(ctx, got)
	require.NoError(t, err)
	_, err = s.Save(ctx, stale)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

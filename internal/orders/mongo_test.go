package orders

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
)

// mongoStore runs against MONGO_URI in a throwaway database and skips the
// test when it is unset.
func mongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongox.Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("orders_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return NewMongoStore(db)
}

func TestMongoStoreLifecycle(t *testing.T) {
	s := mongoStore(t)
	ctx := context.Background()

	o, err := s.Create(ctx, "order-1", "u1", lines(), dec("30.00"))
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	_, err = s.Create(ctx, "order-1", "u1", lines(), dec("30.00"))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.GetByID(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("30")))
	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].Price.Equal(dec("10")))

	_, err = s.SetStatus(ctx, "order-1", StatusConfirmed)
	require.NoError(t, err)
	_, err = s.SetStatus(ctx, "order-1", Status("shipped"))
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = s.SetStatus(ctx, "order-1", StatusPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Create(ctx, "", "u1", lines(), dec("30"))
	require.NoError(t, err)
	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	statuses := map[string]Status{list[0].ID: list[0].Status, list[1].ID: list[1].Status}
	assert.Equal(t, StatusConfirmed, statuses["order-1"])
}

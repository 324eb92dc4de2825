package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopmirror/internal/database/dbtest"
	"shopmirror/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimIsFIFO(t *testing.T) {
	q := New(dbtest.New(t))
	ctx := context.Background()

	for _, topic := range []string{"products/create", "products/update", "products/delete"} {
		_, err := q.Enqueue(ctx, topic, []byte(`{"id":1}`))
		require.NoError(t, err)
	}

	var order []string
	for {
		item, err := q.Claim(ctx)
		if errors.Is(err, ErrEmpty) {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, item.ClaimedAt)
		order = append(order, item.Topic)
		require.NoError(t, q.Delete(ctx, item.ID))
	}
	assert.Equal(t, []string{"products/create", "products/update", "products/delete"}, order)
}

func TestClaimedItemIsNotClaimedTwice(t *testing.T) {
	q := New(dbtest.New(t))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "products/update", nil)
	require.NoError(t, err)

	_, err = q.Claim(ctx)
	require.NoError(t, err)
	_, err = q.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReleaseMakesItemClaimableAgain(t *testing.T) {
	db := dbtest.New(t)
	q := New(db)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "products/update", nil)
	require.NoError(t, err)
	item, err := q.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Release(ctx, item.ID, errors.New("remote down")))

	again, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, item.ID, again.ID)
	assert.Equal(t, 1, again.Attempts)
	assert.Equal(t, "remote down", again.LastError)
}

func TestEnqueueUniqueAndPending(t *testing.T) {
	q := New(dbtest.New(t))
	ctx := context.Background()

	ok, err := q.EnqueueUnique(ctx, "sync/products", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.EnqueueUnique(ctx, "sync/products", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = q.Claim(ctx)
	require.NoError(t, err)
	ok, err = q.EnqueueUnique(ctx, "sync/products", nil)
	require.NoError(t, err)
	assert.False(t, ok, "a claimed item still counts as pending")

	_, err = q.Enqueue(ctx, "sync/collections", nil)
	require.NoError(t, err)

	n, err := q.Pending(ctx, "sync/products")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = q.Pending(ctx, "sync/")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSyncTopicIsUniqueInStorage(t *testing.T) {
	db := dbtest.New(t)
	q := New(db)
	ctx := context.Background()

	ok, err := q.EnqueueUnique(ctx, "sync/products", nil)
	require.NoError(t, err)
	require.True(t, ok)

	// a racing caller that passed the count check still cannot add a second row
	err = db.Create(&models.QueueItem{Topic: "sync/products", EnqueuedAt: time.Now()}).Error
	assert.Error(t, err)

	n, err := q.Pending(ctx, "sync/products")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for i := 0; i < 2; i++ {
		_, err = q.Enqueue(ctx, "products/update", nil)
		require.NoError(t, err, "webhook topics repeat freely")
	}
}

func TestReclaimStale(t *testing.T) {
	db := dbtest.New(t)
	q := New(db)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "products/update", nil)
	require.NoError(t, err)
	item, err := q.Claim(ctx)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&models.QueueItem{}).Where("id = ?", item.ID).Update("claimed_at", old).Error)

	n, err := q.ReclaimStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = q.Claim(ctx)
	assert.NoError(t, err)
}

package lock

import (
	"context"
	"regexp"
	"testing"
	"time"

	"shopmirror/internal/database/dbtest"
	"shopmirror/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLockerMutualExclusion(t *testing.T) {
	db := dbtest.New(t)
	a := NewDBLocker(db, time.Minute)
	b := NewDBLocker(db, time.Minute)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	// releasing someone else's lock is a no-op
	require.NoError(t, b.Release(ctx, WebhookProcessing))
	ok, err = b.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, WebhookProcessing))
	ok, err = b.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, WebhookProcessing))
}

func TestDBLockerTakesOverExpiredLock(t *testing.T) {
	db := dbtest.New(t)
	a := NewDBLocker(db, time.Minute)
	b := NewDBLocker(db, time.Minute)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, "sync")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Model(&models.Lock{}).Where("name = ?", "sync").
		Update("expires_at", time.Now().UTC().Add(-time.Second)).Error)

	ok, err = b.Acquire(ctx, "sync")
	require.NoError(t, err)
	assert.True(t, ok)

	held, err := a.Renew(ctx, "sync")
	require.NoError(t, err)
	assert.False(t, held, "a lock taken over is not renewed by its old owner")
	require.NoError(t, a.Release(ctx, "sync"))
	require.NoError(t, b.Release(ctx, "sync"))
}

func TestDBLockerRenewsHeldLock(t *testing.T) {
	db := dbtest.New(t)
	a := NewDBLocker(db, 90*time.Millisecond)
	b := NewDBLocker(db, 90*time.Millisecond)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	// several ttls pass while a still holds the lock
	time.Sleep(300 * time.Millisecond)
	ok, err = b.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, WebhookProcessing))
	ok, err = b.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, WebhookProcessing))
}

func TestPgAdvisoryLocker(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	locker := NewPgAdvisoryLockerFromDB(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock(hashtext($1))")).
		WithArgs(WebhookProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

	ok, err := locker.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second acquire in the same process does not hit the database
	ok, err = locker.Acquire(ctx, WebhookProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock(hashtext($1))")).
		WithArgs(WebhookProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, locker.Release(ctx, WebhookProcessing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAdvisoryLockerBusy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	locker := NewPgAdvisoryLockerFromDB(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock(hashtext($1))")).
		WithArgs(WebhookProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := locker.Acquire(context.Background(), WebhookProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(context.Background(), WebhookProcessing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

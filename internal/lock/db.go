package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopmirror/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBLocker stores locks as rows with an owner token and expiry. An expired
// row can be taken over, so a crashed holder never blocks forever. A held
// lock is renewed every ttl/3 until Release, however long the holder runs.
type DBLocker struct {
	db    *gorm.DB
	owner string
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	leases map[string]*lease
}

type lease struct {
	stop chan struct{}
	done chan struct{}
}

func NewDBLocker(db *gorm.DB, ttl time.Duration) *DBLocker {
	return &DBLocker{
		db:     db,
		owner:  uuid.NewString(),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		leases: map[string]*lease{},
	}
}

func (l *DBLocker) Acquire(ctx context.Context, name string) (bool, error) {
	now := l.now()
	db := l.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Lock{
		Name:      name,
		Owner:     l.owner,
		ExpiresAt: now.Add(l.ttl),
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, res.Error)
	}
	if res.RowsAffected == 1 {
		l.keepAlive(name)
		return true, nil
	}

	res = db.Model(&models.Lock{}).
		Where("name = ? AND expires_at < ?", name, now).
		Updates(map[string]interface{}{"owner": l.owner, "expires_at": now.Add(l.ttl)})
	if res.Error != nil {
		return false, fmt.Errorf("failed to take over lock %s: %w", name, res.Error)
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	l.keepAlive(name)
	return true, nil
}

// Renew pushes the expiry of a held lock forward. It reports false when the
// lock is no longer owned by this locker.
func (l *DBLocker) Renew(ctx context.Context, name string) (bool, error) {
	res := l.db.WithContext(ctx).Model(&models.Lock{}).
		Where("name = ? AND owner = ?", name, l.owner).
		Update("expires_at", l.now().Add(l.ttl))
	if res.Error != nil {
		return false, fmt.Errorf("failed to renew lock %s: %w", name, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *DBLocker) keepAlive(name string) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ls := &lease{stop: make(chan struct{}), done: make(chan struct{})}

	l.mu.Lock()
	if old, ok := l.leases[name]; ok {
		close(old.stop)
	}
	l.leases[name] = ls
	l.mu.Unlock()

	go func() {
		defer close(ls.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ls.stop:
				return
			case <-ticker.C:
				// transient errors are retried on the next tick
				if held, err := l.Renew(context.Background(), name); err == nil && !held {
					return
				}
			}
		}
	}()
}

func (l *DBLocker) stopRenewal(name string) {
	l.mu.Lock()
	ls, ok := l.leases[name]
	delete(l.leases, name)
	l.mu.Unlock()
	if ok {
		close(ls.stop)
		<-ls.done
	}
}

func (l *DBLocker) Release(ctx context.Context, name string) error {
	l.stopRenewal(name)
	err := l.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, l.owner).
		Delete(&models.Lock{}).Error
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}

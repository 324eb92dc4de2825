// Package worker runs the scheduled jobs of the worker process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopmirror/internal/catalog"
	"shopmirror/internal/config"
	"shopmirror/internal/logger"
	apperrors "shopmirror/pkg/errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Drainer interface {
	Drain(ctx context.Context, max int) (int, error)
}

type SyncRequester interface {
	RequestSync(ctx context.Context, kind catalog.Kind) error
}

type CartPurger interface {
	PurgeIdle(ctx context.Context, idle time.Duration) (int64, error)
}

// FullSyncKinds are requested by the nightly job, products first so the
// vendor pass and collection membership see fresh products.
var FullSyncKinds = []catalog.Kind{
	catalog.KindProducts,
	catalog.KindCollections,
	catalog.KindCustomers,
}

type Worker struct {
	config    config.WorkerConfig
	logger    *logger.Logger
	cron      *cron.Cron
	processor Drainer
	syncer    SyncRequester
	carts     CartPurger
}

func New(cfg config.WorkerConfig, processor Drainer, syncer SyncRequester, carts CartPurger, log *logger.Logger) *Worker {
	log = log.Named("worker")
	clog := cronLogger{log}
	return &Worker{
		config:    cfg,
		logger:    log,
		cron:      cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog))),
		processor: processor,
		syncer:    syncer,
		carts:     carts,
	}
}

// Start registers the schedules and starts the cron runner.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.config.QueueSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		w.DrainQueue(ctx)
	}); err != nil {
		return fmt.Errorf("invalid QUEUE_SCHEDULE %q: %w", w.config.QueueSchedule, err)
	}

	if _, err := w.cron.AddFunc(w.config.FullSyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.RequestFullSyncs(ctx)
	}); err != nil {
		return fmt.Errorf("invalid FULL_SYNC_SCHEDULE %q: %w", w.config.FullSyncSchedule, err)
	}

	if w.carts != nil && w.config.CartIdleTTL > 0 {
		if _, err := w.cron.AddFunc("@hourly", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			w.PurgeCarts(ctx)
		}); err != nil {
			return err
		}
	}

	w.cron.Start()
	w.logger.Info("worker started",
		zap.String("queue_schedule", w.config.QueueSchedule),
		zap.String("full_sync_schedule", w.config.FullSyncSchedule),
	)
	return nil
}

// Stop stops scheduling and waits for running jobs to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("worker stopped")
}

// DrainQueue processes up to one batch. Stale claims are returned by the
// processor itself once it holds the processing lock.
func (w *Worker) DrainQueue(ctx context.Context) {
	n, err := w.processor.Drain(ctx, w.config.Batch)
	if err != nil {
		w.logger.Error("queue drain stopped", zap.Int("processed", n), zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("queue drained", zap.Int("processed", n))
	}
}

// RequestFullSyncs queues a full sync of every kind, skipping kinds whose
// previous sync is still queued or running.
func (w *Worker) RequestFullSyncs(ctx context.Context) {
	for _, kind := range FullSyncKinds {
		err := w.syncer.RequestSync(ctx, kind)
		var busy *apperrors.ErrConcurrentSync
		switch {
		case err == nil:
			w.logger.Info("full sync queued", zap.String("kind", string(kind)))
		case errors.As(err, &busy):
			w.logger.Info("full sync already queued", zap.String("kind", string(kind)))
		default:
			w.logger.Error("failed to queue full sync", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func (w *Worker) PurgeCarts(ctx context.Context) {
	n, err := w.carts.PurgeIdle(ctx, w.config.CartIdleTTL)
	if err != nil {
		w.logger.Error("failed to purge idle carts", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("idle carts purged", zap.Int64("count", n))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

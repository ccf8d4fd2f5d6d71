package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"importer_server/adapter/in/worker"
	"importer_server/adapter/out/messaging"
	"importer_server/config"
	"importer_server/core/port/out"
	"importer_server/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	consumerGroup    = "contact-importers"
	poolStopTimeout  = 20 * time.Second
	pendingIdleSlack = 5 * time.Minute
)

type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := logger.Component("worker")

	processor := worker.NewImportProcessor(deps.ImportRunner, deps.Sealer)
	handler := worker.NewHandler(processor)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMax > 0 {
		poolConfig.Workers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.WorkerChanSize = cfg.WorkerQueueSize
	}
	pool := worker.NewPool(handler, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	// A claimed job may still be running on another worker, so pending
	// messages are only reclaimed well after the longest job timeout.
	idle := poolConfig.JobTimeoutByType[worker.JobContactImport] + pendingIdleSlack

	w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:                consumerGroup,
		Consumer:             cfg.WorkerID,
		Streams:              []string{out.StreamContactImport},
		Handler:              worker.NewStreamHandler(pool),
		Logger:               zlog,
		Count:                int64(cfg.ConsumerBatchSize),
		Block:                time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		PendingIdleTime:      idle,
		MaxRetries:           cfg.ConsumerMaxRetries,
	})
	logger.Info("Redis Stream Consumer configured for %s (group %s)", out.StreamContactImport, consumerGroup)

	return w, cleanup, nil
}

// Start runs the pool and the stream consumer, blocking until Stop is called.
func (w *Worker) Start() error {
	if err := w.pool.Start(); err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.zlog.Info().Msg("Starting Redis Stream Consumer...")
		if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.zlog.Error().Err(err).Msg("Redis Stream Consumer error")
		}
	}()

	<-w.ctx.Done()
	return nil
}

// Stop halts the consumer first so nothing is submitted to a closing pool.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.pool.Stop(poolStopTimeout)
}

func (w *Worker) Metrics() worker.PoolMetrics {
	return w.pool.Metrics()
}

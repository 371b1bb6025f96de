// Package downloader implements the download subsystem contract: a worker
// pool that accepts requests synchronously, executes them concurrently, and
// reports lifecycle changes on an event feed correlated by handle.
package downloader

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/models"
	"imgharvest/pkg/ratelimit"
)

// RemoteFetcher pulls bytes for URL-addressed requests
type RemoteFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// FileStorage lands completed downloads
type FileStorage interface {
	Save(r io.Reader, filename string, overwrite bool) (string, error)
}

// job pairs an accepted request with its handle
type job struct {
	handle  models.DownloadHandle
	request models.DownloadRequest
}

// WorkerPool manages concurrent download workers. Request either accepts a
// job and returns its handle or rejects it outright; every accepted handle
// eventually produces exactly one terminal event.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan job
	events      chan models.DownloadEvent
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     RemoteFetcher
	storage     FileStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
	nextHandle  atomic.Int64
	stopped     atomic.Bool
	// stopMu serializes in-flight Request sends against Stop closing the
	// job queue, so Request never sends on a closed channel.
	stopMu sync.RWMutex
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(
	numWorkers int,
	queueSize int,
	fetcher RemoteFetcher,
	storage FileStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 2
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan job, queueSize),
		events:      make(chan models.DownloadEvent, queueSize+numWorkers*4),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     storage,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool. Queued jobs still run to a
// terminal state before the event feed closes, so the consumer must keep
// reading Events until the close.
func (wp *WorkerPool) Stop() {
	wp.logger.Info("stopping worker pool")

	wp.stopMu.Lock()
	wp.stopped.Store(true)
	close(wp.jobQueue)
	wp.stopMu.Unlock()

	wp.wg.Wait()

	close(wp.events)
	wp.cancel()

	wp.logger.Info("worker pool stopped")
}

// Request submits a download. The decision is synchronous: a returned
// handle means the download was accepted and will reach a terminal state;
// an error means it was rejected and no events will follow.
func (wp *WorkerPool) Request(ctx context.Context, req models.DownloadRequest) (models.DownloadHandle, error) {
	if req.URL == "" && len(req.Payload) == 0 {
		return 0, errs.New(errs.ErrorTypeSubsystemRejected, "request has neither url nor payload")
	}
	if req.Filename == "" {
		return 0, errs.New(errs.ErrorTypeSubsystemRejected, "request has no filename")
	}
	wp.stopMu.RLock()
	defer wp.stopMu.RUnlock()
	if wp.stopped.Load() {
		return 0, errs.New(errs.ErrorTypeSubsystemRejected, "worker pool is shutting down")
	}

	handle := models.DownloadHandle(wp.nextHandle.Add(1))

	select {
	case wp.jobQueue <- job{handle: handle, request: req}:
		wp.emit(handle, models.StateQueued)
		wp.logger.DebugWithFields("download accepted", map[string]interface{}{
			"handle":   int64(handle),
			"filename": req.Filename,
		})
		return handle, nil
	case <-ctx.Done():
		return 0, errs.Wrap(errs.ErrorTypeSubsystemRejected, "request cancelled", ctx.Err())
	case <-wp.ctx.Done():
		return 0, errs.New(errs.ErrorTypeSubsystemRejected, "worker pool is shutting down")
	default:
		return 0, errs.New(errs.ErrorTypeSubsystemRejected, "download queue is full")
	}
}

// Events returns the state-change feed. Consumers receive queued, active
// and exactly one terminal state per accepted handle.
func (wp *WorkerPool) Events() <-chan models.DownloadEvent {
	return wp.events
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.DebugWithFields("worker started", map[string]interface{}{
		"worker_id": id,
	})

	for j := range wp.jobQueue {
		wp.processJob(j, id)
	}

	wp.logger.DebugWithFields("worker stopping, job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// processJob runs one accepted download to its terminal state
func (wp *WorkerPool) processJob(j job, workerID int) {
	start := time.Now()
	wp.emit(j.handle, models.StateActive)

	data := j.request.Payload
	if len(data) == 0 {
		if !wp.rateLimiter.Allow() {
			wp.logger.DebugWithFields("worker waiting for rate limit", map[string]interface{}{
				"worker_id": workerID,
				"handle":    int64(j.handle),
			})
			wp.rateLimiter.Wait()
		}

		fetched, err := wp.fetcher.FetchBytes(wp.ctx, j.request.URL)
		if err != nil {
			wp.logger.ErrorWithFields("worker failed to fetch", map[string]interface{}{
				"worker_id": workerID,
				"handle":    int64(j.handle),
				"url":       j.request.URL,
				"error":     err.Error(),
				"duration":  time.Since(start),
			})
			wp.emit(j.handle, models.StateInterrupted)
			return
		}
		data = fetched
	}

	if _, err := wp.storage.Save(bytes.NewReader(data), j.request.Filename, j.request.OverwriteOnConflict); err != nil {
		wp.logger.ErrorWithFields("worker failed to save", map[string]interface{}{
			"worker_id": workerID,
			"handle":    int64(j.handle),
			"filename":  j.request.Filename,
			"error":     err.Error(),
		})
		wp.emit(j.handle, models.StateInterrupted)
		return
	}

	wp.logger.DebugWithFields("worker completed download", map[string]interface{}{
		"worker_id": workerID,
		"handle":    int64(j.handle),
		"size":      len(data),
		"duration":  time.Since(start),
	})
	wp.emit(j.handle, models.StateComplete)
}

// emit delivers an event to the feed. The feed is buffered; if a consumer
// falls far enough behind to fill it, the worker blocks rather than drop a
// terminal state.
func (wp *WorkerPool) emit(handle models.DownloadHandle, state models.DownloadState) {
	wp.events <- models.DownloadEvent{Handle: handle, State: state}
}

// QueueSize returns the current number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

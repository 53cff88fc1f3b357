package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	errs "wallgrab/pkg/errors"
	"wallgrab/pkg/httpclient"
	"wallgrab/pkg/imaging"
	"wallgrab/pkg/logger"
	"wallgrab/pkg/ratelimit"
	"wallgrab/pkg/sources"
	"wallgrab/pkg/storage"
)

// Status is the outcome of a download job
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// DownloadJob represents a single download task
type DownloadJob struct {
	Candidate sources.Candidate
	Query     string
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job    DownloadJob
	Status Status
	// Error explains a rejection or failure
	Error    error
	Path     string
	FinalURL string
	Size     int64
	Width    int
	Height   int
	Format   string
	Duration time.Duration
}

// ImageDownloader starts image GETs
type ImageDownloader interface {
	Download(ctx context.Context, url string) (*httpclient.Response, error)
}

// ImageStorage stages and commits downloaded files
type ImageStorage interface {
	Stage(r io.Reader) (*storage.Staged, error)
	Discard(s *storage.Staged) error
	Commit(s *storage.Staged, source, query, ext string) (string, error)
}

// Thresholds are the quality gates an image must pass
type Thresholds struct {
	MinFileSize int64
	MinWidth    int
	MinHeight   int
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers     int
	jobQueue       chan DownloadJob
	resultQueue    chan DownloadResult
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	client         ImageDownloader
	storageManager ImageStorage
	limiters       *ratelimit.Group
	thresholds     Thresholds
	logger         logger.Logger
}

// NewWorkerPool creates a new download worker pool. Jobs wait on the
// limiter of their candidate's source.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	client ImageDownloader,
	storageManager ImageStorage,
	limiters *ratelimit.Group,
	thresholds Thresholds,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if limiters == nil {
		limiters = ratelimit.NewGroup(func() ratelimit.Limiter { return ratelimit.Unlimited{} })
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:     numWorkers,
		jobQueue:       make(chan DownloadJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue:    make(chan DownloadResult, numWorkers),
		ctx:            poolCtx,
		cancel:         cancel,
		client:         client,
		storageManager: storageManager,
		limiters:       limiters,
		thresholds:     thresholds,
		logger:         log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs and shuts the pool down. Results not yet
// consumed are dropped if the parent context was cancelled.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	if wp.ctx.Err() != nil {
		return fmt.Errorf("worker pool is shutting down")
	}
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"source": job.Candidate.Source,
			"url":    job.Candidate.URL,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob downloads one candidate and applies the quality gates
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) (result DownloadResult) {
	start := time.Now()
	c := job.Candidate
	result = DownloadResult{Job: job, Status: StatusFailed}

	defer func() {
		result.Duration = time.Since(start)
		fields := map[string]interface{}{
			"worker_id": workerID,
			"source":    c.Source,
			"url":       c.URL,
			"status":    string(result.Status),
			"size":      result.Size,
			"duration":  result.Duration,
		}
		if result.Error != nil {
			fields["reason"] = result.Error.Error()
		}
		wp.logger.DebugWithFields("Download job finished", fields)
	}()

	if err := wp.limiters.For(c.Source).Wait(wp.ctx); err != nil {
		result.Error = fmt.Errorf("rate limit wait: %w", err)
		return result
	}

	resp, err := wp.client.Download(wp.ctx, c.URL)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Close()
	result.FinalURL = resp.FinalURL

	if !imaging.IsImageContentType(resp.ContentType) {
		result.Status = StatusRejected
		result.Error = errs.New(errs.ErrorTypeNotImage, fmt.Sprintf("content type %q", resp.ContentType))
		return result
	}

	staged, err := wp.storageManager.Stage(resp.Body)
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeStorage, "failed to stage image", err)
		return result
	}
	result.Size = staged.Size

	if staged.Size < wp.thresholds.MinFileSize {
		wp.discard(staged)
		result.Status = StatusRejected
		result.Error = errs.New(errs.ErrorTypeTooSmall,
			fmt.Sprintf("%d bytes is below the %d byte minimum", staged.Size, wp.thresholds.MinFileSize))
		return result
	}

	if info, err := imaging.Inspect(staged.Path); err == nil {
		result.Width, result.Height, result.Format = info.Width, info.Height, info.Format
		if info.Width < wp.thresholds.MinWidth || info.Height < wp.thresholds.MinHeight {
			wp.discard(staged)
			result.Status = StatusRejected
			result.Error = errs.New(errs.ErrorTypeLowRes,
				fmt.Sprintf("%dx%d is below %dx%d", info.Width, info.Height, wp.thresholds.MinWidth, wp.thresholds.MinHeight))
			return result
		}
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = c.URL
	}
	path, err := wp.storageManager.Commit(staged, c.Source, job.Query, imaging.ExtensionFor(resp.ContentType, finalURL))
	if err != nil {
		result.Error = errs.Wrap(errs.ErrorTypeStorage, "failed to save image", err)
		return result
	}

	result.Status = StatusAccepted
	result.Path = path
	return result
}

func (wp *WorkerPool) discard(s *storage.Staged) {
	if err := wp.storageManager.Discard(s); err != nil {
		wp.logger.WarnWithFields("Failed to remove rejected download", map[string]interface{}{
			"path":  s.Path,
			"error": err.Error(),
		})
	}
}

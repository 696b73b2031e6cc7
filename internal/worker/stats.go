package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/cvideo/internal/observability"
	"github.com/PaulBabatuyi/cvideo/internal/service"
)

// Lister is the part of the video service the worker polls.
type Lister interface {
	List(ctx context.Context, req service.ListRequest) (*service.ListResponse, error)
}

// Sweeper removes leftovers of uploads that never finished.
type Sweeper interface {
	RemoveStaleUploads(ctx context.Context, olderThan time.Duration) (int, error)
}

type WorkerConfig struct {
	Videos       Lister
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	PollInterval time.Duration

	// Sweeper is optional; it runs on every poll.
	Sweeper        Sweeper
	StaleUploadAge time.Duration
}

// StatsWorker periodically counts the stored videos and publishes the
// totals as gauges.
type StatsWorker struct {
	config   *WorkerConfig
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStatsWorker(config *WorkerConfig) *StatsWorker {
	if config.PollInterval == 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.StaleUploadAge == 0 {
		config.StaleUploadAge = time.Hour
	}
	return &StatsWorker{
		config: config,
		done:   make(chan struct{}),
	}
}

func (sw *StatsWorker) Start(ctx context.Context) {
	sw.wg.Add(1)
	go sw.run(ctx)
	sw.config.Logger.Info("stats worker started", zap.Duration("poll_interval", sw.config.PollInterval))
}

// Stop waits for the current poll to finish. It is safe to call more than once.
func (sw *StatsWorker) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.done)
		sw.wg.Wait()
		sw.config.Logger.Info("stats worker stopped")
	})
}

func (sw *StatsWorker) run(ctx context.Context) {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.config.PollInterval)
	defer ticker.Stop()

	sw.poll(ctx)
	for {
		select {
		case <-sw.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *StatsWorker) poll(ctx context.Context) {
	sw.sweep(ctx)
	sw.collect(ctx)
}

func (sw *StatsWorker) sweep(ctx context.Context) {
	if sw.config.Sweeper == nil {
		return
	}
	removed, err := sw.config.Sweeper.RemoveStaleUploads(ctx, sw.config.StaleUploadAge)
	if err != nil {
		sw.config.Logger.Warn("failed to remove stale uploads", zap.Error(err))
	}
	if removed > 0 {
		sw.config.Logger.Info("removed stale uploads", zap.Int("count", removed))
	}
}

func (sw *StatsWorker) collect(ctx context.Context) {
	resp, err := sw.config.Videos.List(ctx, service.ListRequest{WithMeta: true})
	if err != nil {
		sw.config.Logger.Warn("failed to collect video stats", zap.Error(err))
		return
	}

	var total int64
	for _, v := range resp.Videos {
		total += v.Size
	}
	sw.config.Metrics.SetInventory(len(resp.Videos), total)
	sw.config.Logger.Debug("collected video stats",
		zap.Int("videos", len(resp.Videos)),
		zap.Int64("bytes", total),
	)
}

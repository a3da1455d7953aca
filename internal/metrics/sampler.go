package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tensorkv/tensorkv/internal/store"
)

// DefaultSampleInterval is how often the sampler refreshes the per-store
// gauges when no interval is configured.
const DefaultSampleInterval = 10 * time.Second

// Sampler periodically snapshots the store registry and pushes the result
// into the per-store gauges. Counting keys and bytes walks every stripe of
// every table, so it runs on a timer instead of inline with requests.
type Sampler struct {
	metrics  *Metrics
	source   func() []store.Info
	interval time.Duration
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSampler creates a sampler reading snapshots from source every
// interval. A non-positive interval falls back to DefaultSampleInterval;
// a nil logger falls back to slog.Default.
func NewSampler(m *Metrics, source func() []store.Info, interval time.Duration, logger *slog.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		metrics:  m,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "metrics-sampler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start takes an initial sample, so gauges are populated before Start
// returns, then launches the sampling loop in its own goroutine. The loop
// runs until ctx or Stop cancels it. Start must be called at most once.
func (s *Sampler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.metrics.SetStoreGauges(s.source())
	s.logger.Info("sampler started", "interval", s.interval)

	// Registering before the goroutine is spawned keeps Stop honest: once
	// Start has returned, Stop always waits for the loop to exit.
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.metrics.SetStoreGauges(s.source())
		case <-ctx.Done():
			s.logger.Info("sampler stopping")
			return
		case <-s.ctx.Done():
			s.logger.Info("sampler stopping")
			return
		}
	}
}

// Stop cancels the sampling loop and waits for it to exit. Calling Stop on
// a sampler that was never started returns immediately.
func (s *Sampler) Stop() {
	s.cancel()
	s.wg.Wait()
}

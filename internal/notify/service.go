package notify

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"kanabot/internal/transport"
	"kanabot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

// Service implements Sink as an async pipeline:
// queue + worker pool + rate limit + bounded retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan Notification

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

var _ Sink = (*Service)(nil)

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.applyLocked(cfg)
	return s
}

// Apply updates rate/retry knobs at runtime. Queue size and worker count take
// effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Notification, s.cfg.QueueSize)
	s.accepting = true
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	workers := s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		i := i
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in notifier worker", logx.Int("worker", i),
						logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.workerLoop()
		}()
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(q)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Service) Notify(ctx context.Context, n Notification) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.mu.Unlock()

	select {
	case q <- n:
		return nil
	default:
		s.log.Warn("notification dropped", logx.Int64("chat", n.ChatID))
		return ErrQueueFull
	}
}

func (s *Service) workerLoop() {
	s.mu.Lock()
	q := s.queue
	runCtx := s.runCtx
	s.mu.Unlock()

	for n := range q {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		s.sendWithRetry(runCtx, n)
	}
}

func (s *Service) sendWithRetry(runCtx context.Context, n Notification) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	s.mu.Unlock()

	if ad == nil || n.Text == "" {
		return
	}

	opt := &transport.SendOptions{}
	if n.ReplyTo != 0 {
		opt.ReplyTo = n.ReplyTo
	}

	maxAttempts := 1 + cfg.RetryMax
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(runCtx); err != nil {
				return
			}
		}

		// Bound per-send call. Keep tight to avoid hanging workers.
		callCtx, cancel := context.WithTimeout(runCtx, 10*time.Second)
		_, err := ad.SendText(callCtx, transport.ChatTarget{ChatID: n.ChatID}, n.Text, opt)
		cancel()
		if err == nil {
			return
		}
		s.log.Debug("notify send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			s.log.Warn("notification delivery failed", logx.Int64("chat", n.ChatID), logx.Err(err))
			return
		}

		// Exponential backoff between attempts.
		delay := cfg.RetryBase << (attempt - 1)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-runCtx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}
}

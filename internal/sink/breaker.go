package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/resilience"
)

// State represents the current phase of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSink short-circuits uploads once the wrapped sink has failed
// FailureThreshold times in a row. After ResetTimeout a single probe upload is
// let through; its result closes or re-opens the circuit. Rejected uploads
// fail with ErrCircuitOpen and are reported like any other upload failure.
// An upload running longer than CallTimeout counts as a failure.
type BreakerSink struct {
	next    Sink
	cfg     config.BreakerConfig
	onState func(State)
	now     func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	probing             bool
	logger              *slog.Logger
}

// NewBreaker wraps next. onState, when non-nil, is called on every state
// change (used to export the state as a metric).
func NewBreaker(next Sink, cfg config.BreakerConfig, onState func(State)) *BreakerSink {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &BreakerSink{
		next:    next,
		cfg:     cfg,
		onState: onState,
		now:     time.Now,
		state:   StateClosed,
		logger:  logger.WithComponent("sink-breaker"),
	}
}

func (b *BreakerSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}
	_, err := resilience.Call(ctx, b.cfg.CallTimeout, "sink put "+key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.next.Put(ctx, key, body, contentType)
	})
	if err != nil && !errors.Is(err, apperrors.ErrUpload) {
		err = fmt.Errorf("%w: %w", apperrors.ErrUpload, err)
	}
	b.afterRequest(err)
	return err
}

// State returns the current state of the breaker.
func (b *BreakerSink) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BreakerSink) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailureTime)
		if elapsed < b.cfg.ResetTimeout {
			return fmt.Errorf("%w: %w (retry after %v)", apperrors.ErrUpload, apperrors.ErrCircuitOpen, b.cfg.ResetTimeout-elapsed)
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%w: %w (probe in flight)", apperrors.ErrUpload, apperrors.ErrCircuitOpen)
		}
		b.probing = true
	}
	return nil
}

func (b *BreakerSink) afterRequest(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.consecutiveFailures = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
			b.logger.Info("sink circuit closed (recovered)")
		}
		return
	}
	b.lastFailureTime = b.now()
	b.consecutiveFailures++
	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.setState(StateOpen)
			b.logger.Warn("sink circuit opened",
				"consecutive_failures", b.consecutiveFailures,
				"threshold", b.cfg.FailureThreshold,
			)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
		b.logger.Warn("sink circuit re-opened (probe failed)")
	}
}

func (b *BreakerSink) setState(s State) {
	b.state = s
	if b.onState != nil {
		b.onState(s)
	}
}

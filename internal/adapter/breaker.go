package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/logging"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	// BreakerClosed means requests flow normally
	BreakerClosed BreakerState = "closed"
	// BreakerOpen means requests are rejected without calling upstream
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen means a limited number of probe requests are allowed
	BreakerHalfOpen BreakerState = "half_open"
)

// ErrCircuitOpen is returned while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker guards one upstream provider. It opens after a run of consecutive
// failures, rejects calls for a cooldown period, then lets probe calls
// through until enough succeed to close again.
type Breaker struct {
	name         string
	maxFailures  int
	cooldown     time.Duration
	probeQuorum  int
	logger       *logging.Logger

	mu           sync.Mutex
	state        BreakerState
	consecutive  int
	probeSuccess int
	openedAt     time.Time
}

// NewBreaker creates a circuit breaker for the named provider.
func NewBreaker(name string, maxFailures int, cooldown time.Duration, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		probeQuorum: 2,
		logger:      logger.WithField("breaker", name),
		state:       BreakerClosed,
	}
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probeSuccess = 0
		b.logger.Info("Circuit breaker transitioning to half-open")
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.consecutive++
		switch b.state {
		case BreakerHalfOpen:
			b.open()
		case BreakerClosed:
			if b.consecutive >= b.maxFailures {
				b.open()
			}
		}
		return
	}

	b.consecutive = 0
	if b.state == BreakerHalfOpen {
		b.probeSuccess++
		if b.probeSuccess >= b.probeQuorum {
			b.state = BreakerClosed
			b.logger.Info("Circuit breaker closed after successful recovery")
		}
	}
}

func (b *Breaker) open() {
	b.state = BreakerOpen
	b.openedAt = time.Now()
	b.logger.WithField("consecutiveFailures", b.consecutive).Warn("Circuit breaker opened")
}

package nlu

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"partnerbot/internal/domain"
	"partnerbot/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultMaxFailures uint32        = 5
	defaultTimeout     time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// BreakerService wraps an NLUService with circuit breaker protection. When
// the classifier fails repeatedly, the circuit opens and subsequent calls
// fail fast without reaching it, so the dispatcher's Q&A and help paths
// stay responsive instead of waiting out classifier timeouts.
type BreakerService struct {
	inner   domain.NLUService
	breaker *gobreaker.CircuitBreaker[domain.NLUResult]
	logger  *slog.Logger
}

// NewBreakerService wraps inner with a circuit breaker.
func NewBreakerService(inner domain.NLUService, cfg config.NLUConfig, logger *slog.Logger) *BreakerService {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	cb := gobreaker.NewCircuitBreaker[domain.NLUResult](gobreaker.Settings{
		Name:        "nlu",
		MaxRequests: 1, // one probe in half-open state
		Interval:    defaultInterval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerService{inner: inner, breaker: cb, logger: logger}
}

// Classify implements domain.NLUService. Calls route through the breaker.
func (b *BreakerService) Classify(ctx context.Context, text string) (domain.NLUResult, error) {
	result, err := b.breaker.Execute(func() (domain.NLUResult, error) {
		return b.inner.Classify(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.NLUResult{}, domain.NewDomainError("NLU.Classify", domain.ErrServiceFailure,
				fmt.Sprintf("classifier circuit open: %v", err))
		}
		return domain.NLUResult{}, err
	}
	return result, nil
}

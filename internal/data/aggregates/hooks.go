package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/promptchain-backend/internal/observability"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

// Hooks receives one signal per write outcome. Implementations must be safe
// for concurrent use.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
	// ObserveEmission reports the outcome of the post-commit audit call.
	ObserveEmission(name, status string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) ObserveEmission(string, string)                 {}

func hookLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks reports write outcomes to prometheus. A nil metrics
// set yields no-op hooks.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(hookLabel(name), hookLabel(status), dur)
}

func (h metricsHooks) IncConflict(name string) { h.metrics.IncAggregateConflict(hookLabel(name)) }
func (h metricsHooks) IncRetry(name string)    { h.metrics.IncAggregateRetry(hookLabel(name)) }

func (h metricsHooks) ObserveEmission(name, status string) {
	h.metrics.ObserveActivityEmission(hookLabel(name), hookLabel(status))
}

type logHooks struct {
	log *logger.Logger
}

// NewLogHooks logs contention and failed audit emissions. Successful
// operations are only logged at debug level.
func NewLogHooks(log *logger.Logger) Hooks {
	if log == nil {
		return noopHooks{}
	}
	return logHooks{log: log.With("component", "AggregateHooks")}
}

func (h logHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.log.Debug("aggregate write finished", "op", name, "status", status, "duration_ms", dur.Milliseconds())
}

func (h logHooks) IncConflict(name string) {
	h.log.Info("aggregate write conflict", "op", name)
}

func (h logHooks) IncRetry(name string) {
	h.log.Info("aggregate write retry", "op", name)
}

func (h logHooks) ObserveEmission(name, status string) {
	if status == "success" {
		return
	}
	h.log.Warn("activity emission failed", "op", name, "status", status)
}

type chainHooks []Hooks

// ChainHooks fans every signal out to each non-nil hook in order.
func ChainHooks(hooks ...Hooks) Hooks {
	out := make(chainHooks, 0, len(hooks))
	for _, h := range hooks {
		if h == nil {
			continue
		}
		if _, ok := h.(noopHooks); ok {
			continue
		}
		out = append(out, h)
	}
	switch len(out) {
	case 0:
		return noopHooks{}
	case 1:
		return out[0]
	}
	return out
}

func (c chainHooks) ObserveOperation(name, status string, dur time.Duration) {
	for _, h := range c {
		h.ObserveOperation(name, status, dur)
	}
}

func (c chainHooks) IncConflict(name string) {
	for _, h := range c {
		h.IncConflict(name)
	}
}

func (c chainHooks) IncRetry(name string) {
	for _, h := range c {
		h.IncRetry(name)
	}
}

func (c chainHooks) ObserveEmission(name, status string) {
	for _, h := range c {
		h.ObserveEmission(name, status)
	}
}

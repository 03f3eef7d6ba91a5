package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"market-gateway/src/helpers"
	"market-gateway/src/logger"
	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Rate-Limited Fetcher
//
// Every upstream call (feed polls, analyzer backends) goes through Do.
// Admission is a per-source token bucket; availability is a per-source
// circuit breaker. Sources are fully independent of each other.
// -----------------------------------------------------------------------------

type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// -----------------------------------------------------------------------------

// sourceState is the bucket + breaker for one source. All mutation happens
// under its own mutex so callers on different sources never contend.
type sourceState struct {
	mu                  sync.Mutex
	tokens              float64
	lastRefill          time.Time
	circuit             CircuitState
	consecutiveFailures int
	lastFailure         time.Time
	openedUntil         time.Time
	probing             bool // a HalfOpen trial call is in flight
}

// -----------------------------------------------------------------------------

type Fetcher struct {
	cfg    models.MRateLimitConfig
	logger *logger.Logger

	mu      sync.RWMutex
	sources map[string]*sourceState

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewFetcher(cfg models.MRateLimitConfig, log *logger.Logger) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		logger:  log,
		sources: make(map[string]*sourceState),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

func (f *Fetcher) state(source string) *sourceState {
	f.mu.RLock()
	st, ok := f.sources[source]
	f.mu.RUnlock()
	if ok {
		return st
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok = f.sources[source]; ok {
		return st
	}
	st = &sourceState{
		tokens:     float64(f.cfg.Burst),
		lastRefill: f.now(),
	}
	f.sources[source] = st
	return st
}

// -----------------------------------------------------------------------------

// Do admits one call to source and executes it. Fails immediately with
// rate_limited when the bucket is empty (callers decide whether to retry)
// and with circuit_open while the breaker cools down. The call's context
// carries the deadline; an expired deadline surfaces as a timeout error
// and counts as a failure against the source.
func (f *Fetcher) Do(ctx context.Context, source string, call func(context.Context) (interface{}, error)) (interface{}, error) {
	st := f.state(source)

	if err := f.admit(st, source); err != nil {
		return nil, err
	}

	res, err := call(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = helpers.WrapError(helpers.KindTimeout, err, "call to %s timed out", source)
		}
		f.recordFailure(st, source)
		return nil, err
	}

	f.recordSuccess(st, source)
	return res, nil
}

// -----------------------------------------------------------------------------

// admit consumes one token and enforces the breaker. Never queues.
func (f *Fetcher) admit(st *sourceState, source string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := f.now()

	// Refill the bucket for the time elapsed since the last admission.
	elapsed := now.Sub(st.lastRefill).Seconds()
	if elapsed > 0 {
		st.tokens += elapsed * f.cfg.RefillPerSec
		if st.tokens > float64(f.cfg.Burst) {
			st.tokens = float64(f.cfg.Burst)
		}
		st.lastRefill = now
	}

	switch st.circuit {
	case CircuitOpen:
		if now.Before(st.openedUntil) {
			return helpers.NewError(helpers.KindCircuitOpen,
				"source %s unavailable, circuit open for another %s",
				source, st.openedUntil.Sub(now).Round(time.Millisecond))
		}
		// Cool-down elapsed: allow a single trial call.
		st.circuit = CircuitHalfOpen
		st.probing = false
		f.logger.Info("Circuit for %s entering half-open probe", source)

	case CircuitHalfOpen:
		if st.probing {
			return helpers.NewError(helpers.KindCircuitOpen,
				"source %s unavailable, probe in flight", source)
		}
	}

	if st.tokens < 1 {
		return helpers.NewError(helpers.KindRateLimited,
			"source %s rate limited, no tokens available", source)
	}
	st.tokens--

	if st.circuit == CircuitHalfOpen {
		st.probing = true
	}
	return nil
}

// -----------------------------------------------------------------------------

func (f *Fetcher) recordSuccess(st *sourceState, source string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.circuit != CircuitClosed {
		f.logger.Info("Circuit for %s closed after successful call", source)
	}
	st.circuit = CircuitClosed
	st.consecutiveFailures = 0
	st.probing = false
}

// -----------------------------------------------------------------------------

func (f *Fetcher) recordFailure(st *sourceState, source string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := f.now()
	st.consecutiveFailures++
	st.lastFailure = now

	cooldown := time.Duration(f.cfg.CooldownSeconds) * time.Second

	if st.circuit == CircuitHalfOpen {
		// Probe failed: straight back to open for another cool-down.
		st.circuit = CircuitOpen
		st.openedUntil = now.Add(cooldown)
		st.probing = false
		f.logger.Warning("Circuit for %s reopened, probe failed", source)
		return
	}

	if st.circuit == CircuitClosed && st.consecutiveFailures >= f.cfg.FailureThreshold {
		st.circuit = CircuitOpen
		st.openedUntil = now.Add(cooldown)
		f.logger.Warning("Circuit for %s opened after %d consecutive failures",
			source, st.consecutiveFailures)
	}
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

type SourceSnapshot struct {
	Source              string  `json:"source"`
	Tokens              float64 `json:"tokens"`
	Circuit             string  `json:"circuit"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	OpenedUntil         int64   `json:"opened_until,omitempty"`
}

// Snapshot reports every known source's bucket and breaker state.
func (f *Fetcher) Snapshot() []SourceSnapshot {
	f.mu.RLock()
	names := make([]string, 0, len(f.sources))
	states := make([]*sourceState, 0, len(f.sources))
	for name, st := range f.sources {
		names = append(names, name)
		states = append(states, st)
	}
	f.mu.RUnlock()

	out := make([]SourceSnapshot, 0, len(states))
	for i, st := range states {
		st.mu.Lock()
		snap := SourceSnapshot{
			Source:              names[i],
			Tokens:              st.tokens,
			Circuit:             st.circuit.String(),
			ConsecutiveFailures: st.consecutiveFailures,
		}
		if st.circuit == CircuitOpen {
			snap.OpenedUntil = st.openedUntil.UnixMilli()
		}
		st.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

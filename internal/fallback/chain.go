package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Options configures a Chain.
type Options struct {
	// Service names the chain in logs and metrics.
	Service string
	// Timeout bounds each primary and secondary attempt. Zero means the
	// caller's context is the only bound.
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
	// Breaker wraps every non-fallback handler in a circuit breaker when set.
	Breaker *BreakerConfig
}

// Chain tries its handlers in tier order and returns the first success.
// A Chain is immutable after New and safe for concurrent use.
type Chain[Req, Resp any] struct {
	service  string
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
	handlers []Handler[Req, Resp]
	breakers []*gobreaker.CircuitBreaker
}

// New validates the handler order and builds a chain. Tiers must strictly
// increase and the last handler must be the fallback tier.
func New[Req, Resp any](opts Options, handlers ...Handler[Req, Resp]) (*Chain[Req, Resp], error) {
	if opts.Service == "" {
		return nil, errors.New("fallback: service name is required")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("fallback: %s: no handlers", opts.Service)
	}

	prev := TierNone
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("fallback: %s: handler %d is nil", opts.Service, i)
		}
		if h.Tier() <= prev || h.Tier() > TierFallback {
			return nil, fmt.Errorf("fallback: %s: handler %q has tier %s after %s",
				opts.Service, h.Name(), h.Tier(), prev)
		}
		prev = h.Tier()
	}
	if prev != TierFallback {
		return nil, fmt.Errorf("fallback: %s: last handler must be the fallback tier", opts.Service)
	}

	c := &Chain[Req, Resp]{
		service:  opts.Service,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		observer: opts.Observer,
		handlers: handlers,
		breakers: make([]*gobreaker.CircuitBreaker, len(handlers)),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("service", opts.Service))
	if c.observer == nil {
		c.observer = nopObserver{}
	}

	if opts.Breaker != nil {
		for i, h := range handlers {
			if h.Tier() == TierFallback {
				continue
			}
			c.breakers[i] = newBreaker(opts.Service+"/"+h.Name(), *opts.Breaker, c.logger)
		}
	}

	return c, nil
}

// Service returns the chain's service name.
func (c *Chain[Req, Resp]) Service() string {
	return c.service
}

// Tiers lists every handler with its current availability.
func (c *Chain[Req, Resp]) Tiers() []TierStatus {
	out := make([]TierStatus, 0, len(c.handlers))
	for i, h := range c.handlers {
		st := TierStatus{Tier: h.Tier(), Provider: h.Name(), Available: true}
		if err := h.Available(); err != nil {
			st.Available = false
			st.Reason = err.Error()
		}
		if cb := c.breakers[i]; cb != nil {
			st.Breaker = cb.State().String()
		}
		out = append(out, st)
	}
	return out
}

// TierStatus describes one handler for status reports.
type TierStatus struct {
	Tier      Tier   `json:"tier"`
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Breaker   string `json:"breaker,omitempty"`
}

// Do runs the request through the chain. It never panics and never returns
// an error: every outcome is encoded in the Result.
func (c *Chain[Req, Resp]) Do(ctx context.Context, req Req) Result[Resp] {
	state := StateNotStarted
	move := func(to State) {
		if to > state {
			c.observer.Transition(c.service, state, to)
			state = to
		}
	}

	var (
		attempts []Attempt
		failed   []string
		last     = TierNone
	)

	for i, h := range c.handlers {
		if err := h.Available(); err != nil {
			c.logger.Debug("tier skipped",
				zap.String("tier", h.Tier().String()),
				zap.String("provider", h.Name()),
				zap.Error(err))
			a := Attempt{Tier: h.Tier(), Provider: h.Name(), Status: StatusSkipped, Err: err}
			attempts = append(attempts, a)
			c.observer.Attempted(c.service, a)
			continue
		}

		if ctx.Err() != nil && h.Tier() != TierFallback {
			a := Attempt{Tier: h.Tier(), Provider: h.Name(), Status: StatusFailed,
				Kind: Classify(ctx.Err()), Err: ctx.Err()}
			attempts = append(attempts, a)
			c.observer.Attempted(c.service, a)
			failed = append(failed, fmt.Sprintf("%s (%s)", h.Name(), a.Kind))
			last = h.Tier()
			continue
		}

		move(stateFor(h.Tier()))
		last = h.Tier()

		actx := ctx
		if ctx.Err() != nil {
			// Only the local fallback tier gets here after the caller is gone.
			actx = context.WithoutCancel(ctx)
		}
		start := time.Now()
		reply, err := c.attempt(actx, i, h, req)
		a := Attempt{Tier: h.Tier(), Provider: h.Name(), Duration: time.Since(start)}

		if err != nil {
			a.Status = StatusFailed
			a.Kind = Classify(err)
			a.Err = err
			attempts = append(attempts, a)
			c.observer.Attempted(c.service, a)
			c.logger.Warn("tier failed",
				zap.String("tier", h.Tier().String()),
				zap.String("provider", h.Name()),
				zap.String("kind", string(a.Kind)),
				zap.Duration("duration", a.Duration),
				zap.Error(err))
			failed = append(failed, fmt.Sprintf("%s (%s)", h.Name(), a.Kind))
			continue
		}

		a.Status = StatusSucceeded
		attempts = append(attempts, a)
		c.observer.Attempted(c.service, a)
		move(StateSucceeded)

		res := Result[Resp]{
			Outcome:  OutcomeSuccess,
			Payload:  reply.Value,
			Tier:     h.Tier(),
			Provider: h.Name(),
			Attempts: attempts,
		}
		if len(failed) > 0 || reply.Warning != "" {
			res.Outcome = OutcomeDegraded
			var prior string
			if len(failed) > 0 {
				prior = "served by " + h.Name() + " after " + strings.Join(failed, ", ") + " failed"
			}
			res.Warning = joinWarnings(prior, reply.Warning)
		}
		c.observer.Finished(c.service, res.Outcome, res.Tier)
		return res
	}

	move(StateExhausted)
	res := Result[Resp]{
		Outcome:  OutcomeFailure,
		Tier:     last,
		Kind:     KindAllTiersExhausted,
		Detail:   strings.Join(failed, ", "),
		Attempts: attempts,
	}
	if ctx.Err() != nil {
		res.Kind = KindCallerCanceled
		c.logger.Debug("request canceled", zap.Strings("failed", failed))
	} else {
		c.logger.Warn("all tiers exhausted", zap.Strings("failed", failed))
	}
	c.observer.Finished(c.service, res.Outcome, res.Tier)
	return res
}

type attemptResult[Resp any] struct {
	reply Reply[Resp]
	err   error
}

// attempt runs one handler. The handler runs on its own goroutine so a
// backend that ignores its context still cannot hold the chain past the
// timeout.
func (c *Chain[Req, Resp]) attempt(ctx context.Context, i int, h Handler[Req, Resp], req Req) (Reply[Resp], error) {
	if h.Tier() != TierFallback && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan attemptResult[Resp], 1)
	go func() {
		var out attemptResult[Resp]
		defer func() {
			if r := recover(); r != nil {
				out.err = &TierError{Kind: KindPanic, Provider: h.Name(), Err: fmt.Errorf("panic: %v", r)}
			}
			done <- out
		}()
		out.reply, out.err = c.call(ctx, i, h, req)
	}()

	select {
	case out := <-done:
		return out.reply, out.err
	case <-ctx.Done():
		return Reply[Resp]{}, &TierError{Kind: Classify(ctx.Err()), Provider: h.Name(), Err: ctx.Err()}
	}
}

func (c *Chain[Req, Resp]) call(ctx context.Context, i int, h Handler[Req, Resp], req Req) (Reply[Resp], error) {
	cb := c.breakers[i]
	if cb == nil {
		return h.Attempt(ctx, req)
	}

	out, err := cb.Execute(func() (interface{}, error) {
		return h.Attempt(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Reply[Resp]{}, &TierError{Kind: KindBreakerOpen, Provider: h.Name(), Err: err}
		}
		return Reply[Resp]{}, err
	}
	return out.(Reply[Resp]), nil
}

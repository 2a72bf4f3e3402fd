package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

type stubHandler struct {
	name    string
	tier    Tier
	missing bool
	err     error
	warning string
	delay   time.Duration
	panics  bool
	calls   int
	mu      sync.Mutex
}

func (s *stubHandler) Name() string { return s.name }
func (s *stubHandler) Tier() Tier   { return s.tier }

func (s *stubHandler) Available() error {
	if s.missing {
		return Unconfigured(s.name + " key")
	}
	return nil
}

func (s *stubHandler) Attempt(ctx context.Context, req string) (Reply[string], error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Reply[string]{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Reply[string]{}, s.err
	}
	return Warn(s.name+":"+req, s.warning), nil
}

func (s *stubHandler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]State
	attempts    []Attempt
	finished    []Outcome
}

func (r *recordingObserver) Transition(_ string, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recordingObserver) Attempted(_ string, a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *recordingObserver) Finished(_ string, o Outcome, _ Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, o)
}

func newChain(t *testing.T, opts Options, hs ...*stubHandler) *Chain[string, string] {
	t.Helper()
	if opts.Service == "" {
		opts.Service = "test"
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	handlers := make([]Handler[string, string], len(hs))
	for i, h := range hs {
		handlers[i] = h
	}
	c, err := New(opts, handlers...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadOrder(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"empty", nil},
		{"no fallback", []Tier{TierPrimary, TierSecondary}},
		{"reversed", []Tier{TierFallback, TierPrimary}},
		{"duplicate tier", []Tier{TierPrimary, TierPrimary, TierFallback}},
		{"none tier", []Tier{TierNone, TierFallback}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hs []Handler[string, string]
			for i, tier := range tt.tiers {
				hs = append(hs, &stubHandler{name: fmt.Sprintf("h%d", i), tier: tier})
			}
			_, err := New(Options{Service: "x"}, hs...)
			assert.Error(t, err)
		})
	}

	_, err := New[string, string](Options{}, &stubHandler{name: "f", tier: TierFallback})
	assert.Error(t, err, "service name required")
}

func TestDoPrimarySuccess(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c := newChain(t, Options{}, primary, fb)

	res := c.Do(context.Background(), "hi")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, TierPrimary, res.Tier)
	assert.Equal(t, "p:hi", res.Payload)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 0, fb.Calls())
}

func TestDoSkipsUnconfiguredTiers(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary, missing: true}
	secondary := &stubHandler{name: "s", tier: TierSecondary, missing: true}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c := newChain(t, Options{}, primary, secondary, fb)

	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, TierFallback, res.Tier)
	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, 0, secondary.Calls())
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, StatusSkipped, res.Attempts[0].Status)
	assert.Equal(t, StatusSkipped, res.Attempts[1].Status)
	assert.Equal(t, StatusSucceeded, res.Attempts[2].Status)
}

func TestDoDegradesAfterTimeout(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary, delay: time.Second}
	secondary := &stubHandler{name: "s", tier: TierSecondary, missing: true}
	fb := &stubHandler{name: "f", tier: TierFallback}
	obs := &recordingObserver{}
	c := newChain(t, Options{Timeout: 20 * time.Millisecond, Observer: obs}, primary, secondary, fb)

	start := time.Now()
	res := c.Do(context.Background(), "img")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, TierFallback, res.Tier)
	assert.Contains(t, res.Warning, "p (timeout)")
	assert.Equal(t, KindTimeout, res.Attempts[0].Kind)

	assert.Equal(t, [][2]State{
		{StateNotStarted, StateTryingPrimary},
		{StateTryingPrimary, StateTryingFallback},
		{StateTryingFallback, StateSucceeded},
	}, obs.transitions)
	assert.Equal(t, []Outcome{OutcomeDegraded}, obs.finished)
}

func TestDoTimeoutIgnoredByHandler(t *testing.T) {
	// A handler that never looks at its context.
	stuck := Func[string, string]{
		Provider: "stuck",
		Rank:     TierPrimary,
		AttemptFn: func(context.Context, string) (Reply[string], error) {
			time.Sleep(300 * time.Millisecond)
			return OK("late"), nil
		},
	}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c, err := New[string, string](Options{Service: "t", Timeout: 10 * time.Millisecond}, stuck, fb)
	require.NoError(t, err)

	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "f:x", res.Payload)
}

func TestDoHandlerWarningDegrades(t *testing.T) {
	fb := &stubHandler{name: "f", tier: TierFallback, warning: "partial"}
	c := newChain(t, Options{}, fb)

	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, "partial", res.Warning)
	assert.Equal(t, "partial", res.Message())
}

func TestDoPanicIsTierFailure(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary, panics: true}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c := newChain(t, Options{}, primary, fb)

	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, KindPanic, res.Attempts[0].Kind)
}

func TestDoExhausted(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary, err: &TierError{Kind: KindAuth, Provider: "p", StatusCode: 401}}
	fb := &stubHandler{name: "f", tier: TierFallback, err: errors.New("no template")}
	obs := &recordingObserver{}
	c := newChain(t, Options{Observer: obs}, primary, fb)

	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, KindAllTiersExhausted, res.Kind)
	assert.Equal(t, TierFallback, res.Tier)
	assert.Equal(t, UnavailableMessage, res.Message())
	assert.False(t, res.OK())
	assert.Equal(t, KindAuth, res.Attempts[0].Kind)
	assert.Equal(t, StateExhausted, obs.transitions[len(obs.transitions)-1][1])
}

func TestDoBreakerOpens(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary, err: &TierError{Kind: KindUnavailable, Provider: "p", StatusCode: 503}}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c := newChain(t, Options{Breaker: &BreakerConfig{Threshold: 2, Cooldown: time.Minute}}, primary, fb)

	for range 2 {
		res := c.Do(context.Background(), "x")
		assert.Equal(t, KindUnavailable, res.Attempts[0].Kind)
	}
	res := c.Do(context.Background(), "x")
	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, KindBreakerOpen, res.Attempts[0].Kind)
	assert.Equal(t, 2, primary.Calls())

	tiers := c.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, "open", tiers[0].Breaker)
	assert.Empty(t, tiers[1].Breaker)
}

func TestDoCanceledContextSkipsExternalTiers(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary}
	fb := &stubHandler{name: "f", tier: TierFallback}
	c := newChain(t, Options{}, primary, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 50 {
		res := c.Do(ctx, "x")
		assert.Equal(t, 0, primary.Calls())
		assert.Equal(t, KindCanceled, res.Attempts[0].Kind)
		assert.Equal(t, OutcomeDegraded, res.Outcome)
		assert.Equal(t, TierFallback, res.Tier)
		assert.Equal(t, "f:x", res.Payload)
	}
	assert.Equal(t, 50, fb.Calls())
}

func TestDoCanceledCallerIsNotExhaustion(t *testing.T) {
	primary := &stubHandler{name: "p", tier: TierPrimary}
	fb := &stubHandler{name: "f", tier: TierFallback, err: errors.New("no match")}
	c := newChain(t, Options{}, primary, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Do(ctx, "x")
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, KindCallerCanceled, res.Kind)
	assert.Equal(t, CanceledMessage, res.Message())

	res = c.Do(context.Background(), "x")
	assert.Equal(t, KindAllTiersExhausted, res.Kind)
}

func TestInvalidAndMap(t *testing.T) {
	res := Invalid[string]("text is empty")
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, TierNone, res.Tier)
	assert.Equal(t, KindInvalidRequest, res.Kind)
	assert.Equal(t, "text is empty", res.Message())

	ok := Result[int]{Outcome: OutcomeSuccess, Payload: 2, Tier: TierPrimary}
	mapped := Map(ok, func(n int) string { return fmt.Sprint(n * 2) })
	assert.Equal(t, "4", mapped.Payload)
	assert.Equal(t, TierPrimary, mapped.Tier)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{context.DeadlineExceeded, KindTimeout},
		{fmt.Errorf("wrap: %w", context.Canceled), KindCanceled},
		{&TierError{Kind: KindQuota}, KindQuota},
		{fmt.Errorf("wrap: %w", &TierError{Kind: KindAuth}), KindAuth},
		{errors.New("plain"), KindOther},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

// Every result names exactly one source tier, tiers are tried in order and an
// unconfigured chain is served by its fallback.
func TestChainProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tiers := []Tier{TierPrimary, TierSecondary, TierFallback}
		var hs []Handler[string, string]
		stubs := map[Tier]*stubHandler{}
		for _, tier := range tiers {
			if tier != TierFallback && !rapid.Bool().Draw(t, "present-"+tier.String()) {
				continue
			}
			s := &stubHandler{
				name:    tier.String(),
				tier:    tier,
				missing: tier != TierFallback && rapid.Bool().Draw(t, "missing-"+tier.String()),
			}
			if rapid.Bool().Draw(t, "fails-"+tier.String()) {
				s.err = errors.New("down")
			}
			stubs[tier] = s
			hs = append(hs, s)
		}

		c, err := New(Options{Service: "prop"}, hs...)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		res := c.Do(context.Background(), "q")

		prev := TierNone
		for _, a := range res.Attempts {
			if a.Tier <= prev {
				t.Fatalf("attempts out of order: %v", res.Attempts)
			}
			prev = a.Tier
		}

		switch res.Outcome {
		case OutcomeSuccess, OutcomeDegraded:
			if res.Tier == TierNone {
				t.Fatalf("ok result without tier")
			}
			if stubs[res.Tier].err != nil || stubs[res.Tier].missing {
				t.Fatalf("result served by a failing or missing tier")
			}
			for tier, s := range stubs {
				if tier > res.Tier && s.Calls() != 0 {
					t.Fatalf("tier %s attempted after success", tier)
				}
			}
		case OutcomeFailure:
			if stubs[TierFallback].err == nil {
				t.Fatalf("failure although fallback works")
			}
		}

		allMissing := true
		for tier, s := range stubs {
			if tier != TierFallback && !s.missing {
				allMissing = false
			}
		}
		if allMissing && stubs[TierFallback].err == nil {
			if res.Tier != TierFallback || res.Outcome != OutcomeSuccess {
				t.Fatalf("unconfigured chain: got %s from %s", res.Outcome, res.Tier)
			}
		}
	})
}

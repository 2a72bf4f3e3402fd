package fallback

// State is the position of a request in the chain's state machine.
// States only ever move forward.
type State int

const (
	StateNotStarted State = iota
	StateTryingPrimary
	StateTryingSecondary
	StateTryingFallback
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateTryingPrimary:
		return "trying_primary"
	case StateTryingSecondary:
		return "trying_secondary"
	case StateTryingFallback:
		return "trying_fallback"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func stateFor(t Tier) State {
	switch t {
	case TierPrimary:
		return StateTryingPrimary
	case TierSecondary:
		return StateTryingSecondary
	default:
		return StateTryingFallback
	}
}

// Observer receives chain events. Implementations must be safe for
// concurrent use.
type Observer interface {
	Transition(service string, from, to State)
	Attempted(service string, attempt Attempt)
	Finished(service string, outcome Outcome, tier Tier)
}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) Transition(service string, from, to State) {
	for _, obs := range o {
		obs.Transition(service, from, to)
	}
}

func (o Observers) Attempted(service string, attempt Attempt) {
	for _, obs := range o {
		obs.Attempted(service, attempt)
	}
}

func (o Observers) Finished(service string, outcome Outcome, tier Tier) {
	for _, obs := range o {
		obs.Finished(service, outcome, tier)
	}
}

type nopObserver struct{}

func (nopObserver) Transition(string, State, State) {}
func (nopObserver) Attempted(string, Attempt)       {}
func (nopObserver) Finished(string, Outcome, Tier)  {}

package fallback

import "context"

// Handler is one tier of a chain.
type Handler[Req, Resp any] interface {
	// Name identifies the concrete backend, e.g. "google-translate".
	Name() string
	Tier() Tier
	// Available returns an error wrapping ErrTierUnavailable when the
	// handler lacks configuration. Fallback handlers always return nil.
	Available() error
	Attempt(ctx context.Context, req Req) (Reply[Resp], error)
}

// Func adapts plain functions to the Handler interface.
type Func[Req, Resp any] struct {
	Provider  string
	Rank      Tier
	Check     func() error
	AttemptFn func(ctx context.Context, req Req) (Reply[Resp], error)
}

func (f Func[Req, Resp]) Name() string { return f.Provider }

func (f Func[Req, Resp]) Tier() Tier { return f.Rank }

func (f Func[Req, Resp]) Available() error {
	if f.Check == nil {
		return nil
	}
	return f.Check()
}

func (f Func[Req, Resp]) Attempt(ctx context.Context, req Req) (Reply[Resp], error) {
	return f.AttemptFn(ctx, req)
}

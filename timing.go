package weave

import (
	"context"

	"github.com/gburgyan/go-timing"
)

// TimingInterceptor records the duration of every invocation that passes
// through it as a child of a timing context, typically one created with
// timing.Root. Attach it early in the chain (low order key) so it observes
// the full cost of the links after it:
//
//	tCtx := timing.Root(context.Background())
//	weave.Bind[Ingredient](k).
//	    To(&Sauce{}).
//	    Intercept(weave.NewTimingInterceptor(tCtx)).InOrder(0)
type TimingInterceptor struct {
	ctx context.Context
}

// NewTimingInterceptor creates an interceptor that parents its measurements
// on the given timing context.
func NewTimingInterceptor(ctx context.Context) *TimingInterceptor {
	return &TimingInterceptor{ctx: ctx}
}

func (t *TimingInterceptor) Intercept(inv *Invocation) error {
	_, complete := timing.Start(t.ctx, inv.Method)
	defer complete()
	return inv.Proceed()
}

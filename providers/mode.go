package providers

import (
	"context"
	"slices"
)

// Mode controls how a collection constructs its providers
type Mode struct {
	analysis bool
	required []string
}

// ModeRun constructs every provider with its real factory
var ModeRun = Mode{}

// ModeAnalysis is used to enumerate tests without running any real setup.
// Core providers and the services named in required run their real factory,
// which must produce its value synchronously. Every other provider resolves to
// a Pending placeholder.
func ModeAnalysis(required ...string) Mode {
	return Mode{analysis: true, required: slices.Clone(required)}
}

// IsAnalysis reports whether m is an analysis mode
func (m Mode) IsAnalysis() bool {
	return m.analysis
}

// Required returns the services required for analysis
func (m Mode) Required() []string {
	return slices.Clone(m.required)
}

func (m Mode) stubs(p Provider) bool {
	if !m.analysis || p.Core {
		return false
	}
	return p.Kind != Service || !slices.Contains(m.required, p.Name)
}

// Deferred is implemented by values that are only available once some
// asynchronous work completes.
type Deferred interface {
	Await(ctx context.Context) (any, error)
}

// Pending stands in for a provider that is not constructed during test analysis.
// It never resolves.
type Pending struct {
	ref Ref
}

var _ Deferred = (*Pending)(nil)

// Ref returns the provider the placeholder stands in for
func (p *Pending) Ref() Ref {
	return p.ref
}

// Await blocks until ctx is done
func (p *Pending) Await(ctx context.Context) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// IsPending reports whether v is an analysis placeholder
func IsPending(v any) bool {
	_, ok := v.(*Pending)
	return ok
}

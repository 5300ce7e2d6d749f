package ports

import (
	"context"

	"github.com/aretw0/tabula/pkg/domain"
)

// Consultant is the decision-maker. It is a remote, possibly slow, call: the engine
// treats it as opaque and applies no timeout or retry of its own.
type Consultant interface {
	// Consult returns the next decision for the transcript. A decision without a call
	// ends the session; its narration is the final answer.
	Consult(ctx context.Context, transcript *domain.Transcript) (domain.Decision, error)
}

// ConsultantFunc adapts a function to the Consultant interface.
type ConsultantFunc func(ctx context.Context, transcript *domain.Transcript) (domain.Decision, error)

// Consult calls f.
func (f ConsultantFunc) Consult(ctx context.Context, transcript *domain.Transcript) (domain.Decision, error) {
	return f(ctx, transcript)
}

package runtime

import (
	"context"
	"time"

	"github.com/aretw0/tabula/pkg/domain"
)

func (e *Engine) base(t domain.EventType, s *domain.Session) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: s.ID}
}

func (e *Engine) emitSessionStart(ctx context.Context, s *domain.Session) {
	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, &domain.SessionEvent{EventBase: e.base(domain.EventSessionStart, s), Source: s.Source})
	}
}

func (e *Engine) emitSessionFinish(ctx context.Context, s *domain.Session) {
	if e.hooks.OnSessionFinish != nil {
		e.hooks.OnSessionFinish(ctx, &domain.SessionEvent{EventBase: e.base(domain.EventSessionFinish, s), Source: s.Source, Steps: len(s.Steps)})
	}
}

func (e *Engine) emitConsult(ctx context.Context, s *domain.Session, d time.Duration, decision domain.Decision, err error) {
	if e.hooks.OnConsult != nil {
		e.hooks.OnConsult(ctx, &domain.ConsultEvent{
			EventBase:  e.base(domain.EventConsult, s),
			Duration:   d,
			HasCommand: err == nil && decision.Call != nil,
			Err:        err,
		})
	}
}

// emitCommand fires OnCommand and returns the event, reused for the result.
func (e *Engine) emitCommand(ctx context.Context, s *domain.Session, call *domain.Call, cmd domain.Command) domain.CommandEvent {
	ev := domain.CommandEvent{
		EventBase: e.base(domain.EventCommand, s),
		Tool:      call.Name,
		Function:  functionName(cmd),
	}
	if e.hooks.OnCommand != nil {
		e.hooks.OnCommand(ctx, &ev)
	}
	return ev
}

func (e *Engine) emitResult(ctx context.Context, ev domain.CommandEvent, outcome domain.Outcome, d time.Duration, err error) {
	if e.hooks.OnResult == nil {
		return
	}
	ev.Type = domain.EventResult
	ev.Timestamp = time.Now()
	ev.Outcome = outcome
	ev.Duration = d
	if err != nil {
		ev.Error = err.Error()
	}
	e.hooks.OnResult(ctx, &ev)
}

func functionName(cmd domain.Command) string {
	switch c := cmd.(type) {
	case domain.TableOp:
		return c.FunctionName
	case domain.SeriesOp:
		return c.FunctionName
	}
	return ""
}

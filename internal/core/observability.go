package core

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed exactly once with the operation outcome.
type TraceSpan interface {
	End(err error)
}

// instrument wraps a service operation with metrics and tracing. Both hooks
// are optional.
func (s *Service) instrument(ctx context.Context, operation string, fn func(context.Context) error) error {
	started := s.now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	err := fn(ctx)
	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, s.now().Sub(started))
	}
	return err
}

package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/frontctl/chain"
)

// Span attribute keys.
const (
	AttrRequest     = attribute.Key("frontctl.request")
	AttrCommand     = attribute.Key("frontctl.command")
	AttrCommandType = attribute.Key("frontctl.command.type")
	AttrSignal      = attribute.Key("frontctl.signal")
	AttrCached      = attribute.Key("frontctl.cached")
	AttrDepth       = attribute.Key("frontctl.forward_depth")
)

// Instrument traces and measures dispatches and command executions.
// It implements chain.Hook. A nil *Instrument is a valid no-op.
type Instrument struct {
	tracer  trace.Tracer
	metrics *metrics
	now     func() time.Time
}

var _ chain.Hook = (*Instrument)(nil)

// NewInstrument creates an Instrument from obs.
func NewInstrument(obs Observer) (*Instrument, error) {
	m, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return &Instrument{tracer: obs.Tracer(), metrics: m, now: time.Now}, nil
}

// StartCommand implements chain.Hook.
func (i *Instrument) StartCommand(ctx context.Context, request string, d chain.Descriptor) (context.Context, func(chain.Signal)) {
	if i == nil {
		return ctx, nil
	}
	ctx, span := i.tracer.Start(ctx, "command "+d.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrRequest.String(request),
			AttrCommand.String(d.Name),
			AttrCommandType.String(d.Type),
		),
	)
	start := i.now()

	return ctx, func(sig chain.Signal) {
		span.SetAttributes(AttrSignal.String(sig.Kind.String()))
		switch sig.Kind {
		case chain.KindRecoverable, chain.KindFatalAbort:
			span.RecordError(sig.Cause)
			span.SetStatus(codes.Error, sig.Kind.String())
		case chain.KindForward:
			span.AddEvent("forward", trace.WithAttributes(AttrRequest.String(sig.Destination)))
			span.SetStatus(codes.Ok, "")
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		opt := metric.WithAttributes(
			AttrRequest.String(request),
			AttrCommand.String(d.Name),
			AttrSignal.String(sig.Kind.String()),
		)
		i.metrics.commandTotal.Add(ctx, 1, opt)
		i.metrics.commandDuration.Record(ctx, float64(i.now().Sub(start).Microseconds())/1000, opt)
	}
}

// DispatchDone is called once when a dispatch finishes.
type DispatchDone func(kind chain.Kind, cached bool, err error)

// StartDispatch opens a span covering one (possibly forwarded) dispatch.
func (i *Instrument) StartDispatch(ctx context.Context, request string, depth int) (context.Context, DispatchDone) {
	if i == nil {
		return ctx, func(chain.Kind, bool, error) {}
	}
	ctx, span := i.tracer.Start(ctx, "dispatch "+request,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrRequest.String(request), AttrDepth.Int(depth)),
	)
	start := i.now()

	return ctx, func(kind chain.Kind, cached bool, err error) {
		outcome := kind.String()
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if kind == chain.KindFatalAbort {
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(AttrSignal.String(outcome), AttrCached.Bool(cached))
		span.End()

		opt := metric.WithAttributes(
			AttrRequest.String(request),
			AttrSignal.String(outcome),
			AttrCached.Bool(cached),
		)
		i.metrics.dispatchTotal.Add(ctx, 1, opt)
		i.metrics.dispatchDuration.Record(ctx, float64(i.now().Sub(start).Microseconds())/1000, opt)
	}
}

// CacheLookup records a response cache hit or miss.
func (i *Instrument) CacheLookup(ctx context.Context, request string, hit bool) {
	if i == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	i.metrics.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		AttrRequest.String(request),
		attribute.String("result", result),
	))
}

// LogFailure records a failing logger backend.
func (i *Instrument) LogFailure(ctx context.Context, backend string, _ error) {
	if i == nil {
		return
	}
	i.metrics.logFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

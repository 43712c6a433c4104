package flow

import (
	"context"

	"github.com/rs/zerolog"
)

// loggerCtxKey is the context key under which a *zerolog.Logger travels,
// mirroring sam-fredrickson-flow/context.go's single-key flowCtx pattern.
type loggerCtxKey struct{}

// WithLogger returns a context carrying logger, retrievable with
// LoggerFrom. The Flow core itself never reads from context — stages are
// plain closures over Go values — but the optional tracing helpers below
// and caller-supplied stage closures can pull a logger out of whatever
// context they were handed.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// LoggerFrom returns the logger carried by ctx, or zerolog's disabled
// no-op logger if none was installed.
func LoggerFrom(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// traceCtxKey carries a per-run trace flag: when set, stage-level events
// that would otherwise log at Debug are promoted to Info, for a caller who
// wants to watch one pipeline run closely without globally raising the
// log level.
type traceCtxKey struct{}

// WithTrace marks ctx for Info-level stage tracing. A hot pipeline must
// not be log-spammed by default (see SPEC_FULL.md §1.2); this is the
// explicit opt-in.
func WithTrace(ctx context.Context) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, true)
}

func isTracing(ctx context.Context) bool {
	v, _ := ctx.Value(traceCtxKey{}).(bool)
	return v
}

// traceEvent returns the zerolog.Event to log a stage-dispatch line on,
// Debug normally or Info under WithTrace.
func traceEvent(ctx context.Context) *zerolog.Event {
	l := LoggerFrom(ctx)
	if isTracing(ctx) {
		return l.Info()
	}
	return l.Debug()
}

// logStageDispatch logs one stage's dispatch, by tag, grounded on
// kbukum-gokit/logger.Logger's WithComponent/WithFields shape translated
// to zerolog's native chained-event API.
func logStageDispatch(ctx context.Context, kind stageKind, index int) {
	traceEvent(ctx).Str("component", "flow.runner").Str("stage", stageKindName(kind)).Int("index", index).Msg("stage dispatch")
}

func stageKindName(k stageKind) string {
	switch k {
	case stageCalc:
		return "calc"
	case stageVia:
		return "via"
	case stageAsync:
		return "async"
	case stageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// logControllerTransition logs a controller lock/unlock/cancel event.
func logControllerTransition(ctx context.Context, event string, kind CancelKind) {
	traceEvent(ctx).Str("component", "flow.controller").Str("event", event).Str("kind", kind.String()).Msg("controller transition")
}

// logAggregatorResolution logs an aggregator's terminal outcome.
func logAggregatorResolution(ctx context.Context, kind string, outcome string) {
	traceEvent(ctx).Str("component", "flow.aggregator").Str("kind", kind).Str("outcome", outcome).Msg("aggregator resolved")
}

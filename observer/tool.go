package observer

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/reef"
)

// ObservedTool wraps a reef.Tool so every Execute call produces a span and
// dispatch metrics.
type ObservedTool struct {
	inner reef.Tool
	inst  *Instruments
}

var _ reef.Tool = (*ObservedTool)(nil)

// WrapTool returns an instrumented tool.
func WrapTool(inner reef.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

func (o *ObservedTool) Definitions() []reef.ToolDeclaration {
	return o.inner.Definitions()
}

// Execute implements reef.Tool with a span per dispatch.
func (o *ObservedTool) Execute(ctx context.Context, name string, args json.RawMessage) (reef.ToolResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolNames.String(name),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Execute(ctx, name, args)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	switch {
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.Error != "":
		status = "error"
	}

	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(len(result.Content)),
	)

	attrs := metric.WithAttributes(
		AttrToolNames.String(name),
		AttrToolStatus.String(status),
	)
	o.inst.ToolDispatches.Add(ctx, 1, attrs)
	o.inst.ToolDuration.Record(ctx, durationMs, attrs)

	return result, err
}

package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	reeflog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/reef"
)

// ObservedTransport wraps a reef.Transport with OTEL instrumentation.
type ObservedTransport struct {
	inner reef.Transport
	inst  *Instruments
}

var _ reef.Transport = (*ObservedTransport)(nil)

// WrapTransport returns an instrumented transport that emits traces,
// metrics, and logs for every Send and Stream call.
func WrapTransport(inner reef.Transport, inst *Instruments) *ObservedTransport {
	return &ObservedTransport{inner: inner, inst: inst}
}

func (o *ObservedTransport) Name() string { return o.inner.Name() }

// Send implements reef.Transport with a span and metrics per call.
func (o *ObservedTransport) Send(ctx context.Context, req *reef.RequestPayload) (*reef.ModelResponse, error) {
	spanAttrs := []trace.SpanStartOption{
		trace.WithAttributes(
			AttrLLMModel.String(req.Model),
			AttrLLMProvider.String(o.inner.Name()),
		),
	}
	spanName := "llm.send"
	method := "send"
	if len(req.Tools) > 0 {
		toolNames := make([]string, len(req.Tools))
		for i, t := range req.Tools {
			toolNames[i] = t.Name
		}
		spanAttrs = append(spanAttrs, trace.WithAttributes(
			AttrToolCount.Int(len(req.Tools)),
			AttrToolNames.StringSlice(toolNames),
		))
		spanName = "llm.send_with_tools"
		method = "send_with_tools"
	}

	ctx, span := o.inst.Tracer.Start(ctx, spanName, spanAttrs...)
	defer span.End()
	start := time.Now()

	resp, err := o.inner.Send(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.record(ctx, span, req.Model, method, status, durationMs, usageOf(resp))
	return resp, err
}

// Stream implements reef.Transport with a span covering the full stream and
// a fragment count attribute.
func (o *ObservedTransport) Stream(ctx context.Context, req *reef.RequestPayload, emit func(text string)) (*reef.ModelResponse, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.stream", trace.WithAttributes(
		AttrLLMModel.String(req.Model),
		AttrLLMProvider.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	fragments := 0
	resp, err := o.inner.Stream(ctx, req, func(text string) {
		fragments++
		emit(text)
	})

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(AttrStreamChunks.Int(fragments))
	o.record(ctx, span, req.Model, "stream", status, durationMs, usageOf(resp))
	return resp, err
}

func usageOf(resp *reef.ModelResponse) reef.Usage {
	if resp == nil {
		return reef.Usage{}
	}
	return resp.Usage
}

func (o *ObservedTransport) record(ctx context.Context, span trace.Span, model, method, status string, durationMs float64, usage reef.Usage) {
	cost := o.inst.Cost.Calculate(model, usage.InputTokens, usage.OutputTokens)

	attrs := metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrLLMMethod.String(method),
	)

	span.SetAttributes(
		AttrTokensInput.Int(usage.InputTokens),
		AttrTokensOutput.Int(usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)

	o.inst.TokenUsage.Add(ctx, int64(usage.InputTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "input"),
	))
	o.inst.TokenUsage.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "output"),
	))
	o.inst.CostTotal.Add(ctx, cost, attrs)
	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrLLMMethod.String(method),
		attribute.String("status", status),
	))
	o.inst.LLMDuration.Record(ctx, durationMs, attrs)

	// Structured log
	var rec reeflog.Record
	rec.SetSeverity(reeflog.SeverityInfo)
	rec.SetBody(reeflog.StringValue("llm call completed"))
	rec.AddAttributes(
		reeflog.String("llm.model", model),
		reeflog.String("llm.provider", o.inner.Name()),
		reeflog.String("llm.method", method),
		reeflog.Int("llm.tokens.input", usage.InputTokens),
		reeflog.Int("llm.tokens.output", usage.OutputTokens),
		reeflog.Float64("llm.cost_usd", cost),
		reeflog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}

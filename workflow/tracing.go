package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blingmoon/dialog-workflow/workflow"

// 没有配置全局 TracerProvider 时 otel 返回 noop 实现, 不需要额外判断
func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (c *Controller) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("workflow.name", c.definition.Name),
		attribute.String("workflow.run_id", c.RunID()),
	)
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Insecure       bool
	SamplingRate   float64
	Enabled        bool
}

// TracingProvider wraps OpenTelemetry tracing functionality
type TracingProvider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracingProvider creates a provider. When disabled every span is a no-op.
func NewTracingProvider(ctx context.Context, cfg TracingConfig, logger *zap.Logger) (*TracingProvider, error) {
	if !cfg.Enabled {
		logger.Info("Tracing is disabled")
		return &TracingProvider{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName), logger: logger}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "create otlp exporter")
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, eris.Wrap(err, "create resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("otlp_endpoint", cfg.OTLPEndpoint),
		zap.Float64("sampling_rate", cfg.SamplingRate),
	)

	return &TracingProvider{
		tracer:   tp.Tracer(cfg.ServiceName),
		provider: tp,
		logger:   logger,
	}, nil
}

// StartSpan starts a new span with the given name and options
func (t *TracingProvider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// HTTPMiddleware opens a server span per request, continuing any propagated trace
func (t *TracingProvider) HTTPMiddleware(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := t.tracer.Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			span.SetName(fmt.Sprintf("%s %s", r.Method, rctx.RoutePattern()))
			span.SetAttributes(attribute.String("http.route", rctx.RoutePattern()))
		}
		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// TraceText wraps a text model so each call gets a client span
func (t *TracingProvider) TraceText(model outbound.TextModel) outbound.TextModel {
	return &tracedTextModel{next: model, tracer: t.tracer}
}

// TraceVision wraps a vision model so each call gets a client span
func (t *TracingProvider) TraceVision(model outbound.VisionModel) outbound.VisionModel {
	return &tracedVisionModel{next: model, tracer: t.tracer}
}

type tracedTextModel struct {
	next   outbound.TextModel
	tracer trace.Tracer
}

func (m *tracedTextModel) ExtractFromText(ctx context.Context, source cookcard.SourceEvidence, title string) (outbound.ModelExtraction, error) {
	ctx, span := m.tracer.Start(ctx, "ai.extract_text",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cookcard.source_kind", string(source.Kind)),
			attribute.Int("cookcard.source_chars", len(source.Text)),
		),
	)
	defer span.End()

	out, err := m.next.ExtractFromText(ctx, source, title)
	finishModelSpan(span, out, err)
	return out, err
}

type tracedVisionModel struct {
	next   outbound.VisionModel
	tracer trace.Tracer
}

func (m *tracedVisionModel) ExtractFromVideo(ctx context.Context, sourceURL string, durationSeconds int) (outbound.ModelExtraction, error) {
	ctx, span := m.tracer.Start(ctx, "ai.extract_video",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("cookcard.duration_seconds", durationSeconds)),
	)
	defer span.End()

	out, err := m.next.ExtractFromVideo(ctx, sourceURL, durationSeconds)
	finishModelSpan(span, out, err)
	return out, err
}

func finishModelSpan(span trace.Span, out outbound.ModelExtraction, err error) {
	span.SetAttributes(
		attribute.String("ai.model", out.Usage.Model),
		attribute.Int64("ai.input_tokens", out.Usage.InputTokens),
		attribute.Int64("ai.output_tokens", out.Usage.OutputTokens),
		attribute.Int("ai.candidates", len(out.Ingredients)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Shutdown flushes pending spans
func (t *TracingProvider) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	var traceID string
	handler := RequestID(Tracing("placereviews")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/reviews/123", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	req.Header.Set(RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %q, want propagated parent trace", traceID)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "GET /reviews/{id}" {
		t.Errorf("span name = %q", got)
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "request.id" && kv.Value.AsString() == "req-1" {
			found = true
		}
	}
	if !found {
		t.Error("span missing request.id attribute")
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if got := GetTraceID(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("GetTraceID() = %q, want empty", got)
	}
}

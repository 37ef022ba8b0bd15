package history

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("taxhist.history")

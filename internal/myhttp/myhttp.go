package myhttp

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

func newServerMux(logger *slog.Logger, httpRequestsDurationMicroSeconds metric.Int64Histogram) *router {
	return &router{
		ServeMux:                         http.NewServeMux(),
		logger:                           logger,
		httpRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
	}
}

// NewServerMux returns a ServeMux whose *WithMiddleware registrations are
// traced, timed, profiled and get a trace-correlated logr.Logger in the
// request context.
var NewServerMux = newServerMux

package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sproutworks/nursery/internal/domain/identity"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerRequestID = "X-Request-ID"
)

// withIdentity resolves the acting principal from headers set by the
// upstream auth service. Credentials were already verified there; an absent
// or malformed identity is rejected, never defaulted.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		role, err := identity.ParseRole(r.Header.Get(headerUserRole))
		if userID == "" || err != nil {
			writeMessage(w, http.StatusUnauthorized, "missing or invalid identity")
			return
		}

		actor := identity.Actor{UserID: userID, Role: role}
		next.ServeHTTP(w, r.WithContext(contextWithActor(r.Context(), actor)))
	})
}

// withRequestLogger binds a request-scoped logger so downstream layers log
// with request id and actor fields without re-deriving them.
func (h *Handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := h.log
		if reqID := r.Header.Get(headerRequestID); reqID != "" {
			logger = logger.With(observability.F("request_id", reqID))
		}
		if actor, ok := actorFromContext(r.Context()); ok {
			logger = logger.With(
				observability.F("actor_id", actor.UserID),
				observability.F("actor_role", string(actor.Role)),
			)
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			logger = logger.With(
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}

		next.ServeHTTP(w, r.WithContext(logctx.With(r.Context(), logger)))
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("nursery.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctxWithSpan, span := tracer.Start(parentCtx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records request counts and latency with the stable route
// template as the label, keeping cardinality low.
func (h *Handler) withHTTPMetrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.requests.Add(1, labels...)
		h.duration.Observe(time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", route),
		)
	})
}

// withAccessLog writes a single access log line after the handler completes.
func (h *Handler) withAccessLog(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", route),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

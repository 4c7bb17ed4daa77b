// Package server provides HTTP routing, middleware, and the JSON handlers of the round pipeline and maintenance scheduler.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Endpoints
//
//   - POST /round/stage1-init : candidate artists of a round (bearer token required)
//   - POST /round/stage2-candidates : candidate track pool (bearer token required)
//   - GET|POST /maintenance/tick : one maintenance pass; always 200, failures are in the payload
//   - POST /maintenance/healing : report bad data, deduplicated per (type, entity)
//   - GET /healthz, GET /metrics
//
// Errors are written as {"error": "..."} with the status from [shared.StatusCode].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// The maintenance endpoints are registered this way.
package server

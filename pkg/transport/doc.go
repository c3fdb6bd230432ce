// Package transport defines the handler interfaces and middleware chain for
// the llmrouter HTTP/SSE front end.
//
// The transport layer sits between clients and the router. It decodes
// incoming chat requests into the common schema defined in pkg/api,
// dispatches them, and writes results back either as a single JSON
// completion or as a stream of completion chunks.
//
// # Handler Interfaces
//
//   - ChatHandler handles one chat completion call. Dispatch adapts any
//     Chatter (such as *router.Router) into a ChatHandler that drains
//     streaming results into the ResponseWriter.
//   - ModelLister serves model listings, optionally narrowed to one host.
//
// The ResponseWriter interface abstracts streaming and non-streaming
// output so handlers can emit chunks or a whole completion without knowing
// the wire format.
//
// # Middleware
//
// The middleware chain wraps ChatHandler with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
//
// # Errors
//
// APIErrorFromError maps routing, translation, and backend errors onto
// an *api.APIError and the HTTP status to answer with.
package transport

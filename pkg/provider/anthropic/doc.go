// Package anthropic bridges the common chat-completion schema to the
// Anthropic Messages API.
//
// The bridge is a set of mappers around a small HTTP client:
//
//   - [MapRequest] and [MapContent]: common request to Messages request
//     (system prompt extraction, role re-encoding, token limit defaults)
//   - [MapResponse] and [RenderBlock]: unary Messages response to a single
//     assistant choice
//   - [StreamMapper]: per-event transform of the Messages event stream into
//     chat completion chunks
//   - [MapFinishReason]: stop reason table
//
// Tool definitions and tool choice are never forwarded. Audio content is
// rejected with [api.ModalityNotSupportedError].
package anthropic

// Package api defines the common chat-completion schema shared by every host
// adapter in llmrouter, plus the error taxonomy raised by the router and the
// protocol bridge.
//
// The common schema mirrors the OpenAI Chat Completions wire format so that
// any OpenAI-compatible client can talk to the router unchanged. Backend
// adapters translate to and from their own native schema at the edge.
//
// Core types:
//   - [ChatCompletionRequest]: client request (messages, sampling parameters, stream flag)
//   - [ChatMessage] / [MessageContent] / [ContentPart]: role-tagged conversation turns
//   - [ChatCompletion]: unary response with a single choice
//   - [ChatCompletionChunk]: one increment of a streaming response
//   - [Model] / [ModelList]: model listing entries
//
// Errors:
//   - [HostNotFoundError], [ModelNotFoundError]: routing failures
//   - [ModalityNotSupportedError]: content the target backend cannot express
//   - [APIError]: structured transport-level error
//
// The package performs no I/O and depends only on the standard library.
package api

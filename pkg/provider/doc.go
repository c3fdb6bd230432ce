// Package provider defines the interface every LLM host adapter implements.
// Adapters accept and return the common chat-completion schema from package
// api; backend protocol details stay inside the adapter packages
// (openaicompat for hosts that speak the common schema natively, anthropic
// for the Messages protocol bridge).
//
// Streaming results are exposed as a pull-based [ChunkStream]: the consumer
// drives the backend read by calling Recv, so nothing is buffered ahead of
// demand.
package provider

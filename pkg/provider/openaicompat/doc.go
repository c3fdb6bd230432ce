// Package openaicompat adapts hosts that already speak the OpenAI Chat
// Completions protocol (OpenAI, DeepSeek, Gemini's compatibility endpoint,
// OpenRouter, xAI).
//
// Requests and responses pass through in the common schema. The only
// per-host behavior is a quirk table: a small set of declarative patches
// (hide a model from listings, drop a parameter, rewrite a role, pin a
// parameter) applied to a copy of the request before it is sent.
package openaicompat

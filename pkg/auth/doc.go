// Package auth provides pluggable authentication for the llmrouter front end.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from
// routing. An optional per-subject rate limiter runs after a successful
// authentication.
package auth

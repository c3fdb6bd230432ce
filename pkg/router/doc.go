// Package router dispatches chat calls to backend hosts by host-qualified
// model id (<model>@<host>) and aggregates model listings across hosts.
//
// The host table is built once, from configuration or an explicit map,
// and is immutable afterwards. A Router is safe for concurrent use.
package router

// Package types defines Go types shared by the agent and the server.
// These are the canonical in-memory representations of metric statuses and
// reports, and they double as the JSON wire format between the two binaries.
package types

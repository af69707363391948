// Package ws streams project health to dashboard clients over WebSocket.
//
// Every message carries the full snapshot (the GET /api/v1/snapshot body):
//
//	{"event": "snapshot", "data": {...}}
//	{"event": "report", "project": "alpha", "data": {...}}
//
// "snapshot" is sent on connect and on every tick. "report" is sent as soon
// as the receiver accepts a report; Hub implements receiver.Evaluator for
// that. The server mounts the hub at /ws/stream.
package ws

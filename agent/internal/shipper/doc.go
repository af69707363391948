// Package shipper posts project reports to healthboard-server as JSON
// (POST {server_endpoint}/api/v1/reports).
//
// Shipper.Ship() is non-blocking: reports are placed in an in-memory channel
// (capacity agent.buffer_size). When the buffer is full the oldest report is
// evicted so the latest health data is always preserved.
//
// Shipper.Run() drains the buffer, retrying with truncated exponential
// backoff (1s→60s, ±25% jitter) while the server is unreachable or answers
// 5xx. Rejections (4xx other than 408 and 429) discard the report.
//
// Auth: mTLS, API key header, bearer or basic, through the same HTTP client
// the sources use.
package shipper
